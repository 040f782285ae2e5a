package ingest

import (
	"bytes"
	"encoding/json"
)

// nullLiteral is the JSON null token; a "value": null is treated the same
// as an absent value.
var nullLiteral = []byte("null")

// RawSubmission is one inbound record in collectd's write_http JSON format.
// Every field is optional; collectd also sends fields like interval,
// dstypes and dsnames, which are accepted and ignored. A submission
// carries its payload in either value (one JSON value) or values (an
// ordered sequence); when both are set, values wins.
type RawSubmission struct {
	Time           *float64          `json:"time"`
	Host           *string           `json:"host"`
	Plugin         *string           `json:"plugin"`
	PluginInstance *string           `json:"plugin_instance"`
	Type           *string           `json:"type"`
	TypeInstance   *string           `json:"type_instance"`
	Value          json.RawMessage   `json:"value"`
	Values         []json.RawMessage `json:"values"`
}

// payload resolves the value/values union once. A present values sequence
// (even an empty one) takes precedence over value; a missing or null value
// yields nothing.
func (s *RawSubmission) payload() []json.RawMessage {
	if s.Values != nil {
		return s.Values
	}
	if len(s.Value) > 0 && !bytes.Equal(s.Value, nullLiteral) {
		return []json.RawMessage{s.Value}
	}
	return nil
}

// FlatRecord is one normalized, single-valued metric unit. Absent metadata
// fields serialize as explicit nulls. A FlatRecord is never modified after
// normalization produces it.
type FlatRecord struct {
	Time           *float64        `json:"time"`
	Host           *string         `json:"host"`
	Plugin         *string         `json:"plugin"`
	PluginInstance *string         `json:"plugin_instance"`
	Type           *string         `json:"type"`
	TypeInstance   *string         `json:"type_instance"`
	Value          json.RawMessage `json:"value"`
}
