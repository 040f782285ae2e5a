package ingest

// Normalize expands one submission into zero or more flat records: one per
// element of the resolved payload, all sharing the submission's metadata,
// in payload order. A submission with no payload produces no records and
// is not an error.
func Normalize(sub RawSubmission) []FlatRecord {
	payload := sub.payload()
	if len(payload) == 0 {
		return nil
	}

	records := make([]FlatRecord, 0, len(payload))
	for _, value := range payload {
		records = append(records, FlatRecord{
			Time:           sub.Time,
			Host:           sub.Host,
			Plugin:         sub.Plugin,
			PluginInstance: sub.PluginInstance,
			Type:           sub.Type,
			TypeInstance:   sub.TypeInstance,
			Value:          value,
		})
	}
	return records
}

// NormalizeAll flattens a parsed request body, preserving submission order.
func NormalizeAll(subs []RawSubmission) []FlatRecord {
	var records []FlatRecord
	for _, sub := range subs {
		records = append(records, Normalize(sub)...)
	}
	return records
}
