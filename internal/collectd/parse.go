// Package collectd decodes the collectd binary network protocol (the
// format the network plugin sends on UDP port 25826) into the same raw
// submissions the HTTP path produces.
package collectd

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/collectd-forward/agent/internal/ingest"
)

// Part type codes.
const (
	partHost           = 0x0000
	partTime           = 0x0001
	partPlugin         = 0x0002
	partPluginInstance = 0x0003
	partType           = 0x0004
	partTypeInstance   = 0x0005
	partValues         = 0x0006
	partInterval       = 0x0007
	partTimeHR         = 0x0008
	partIntervalHR     = 0x0009
	partMessage        = 0x0100
	partSeverity       = 0x0101
)

// Data source type codes inside a VALUES part.
const (
	dsCounter  = 0
	dsGauge    = 1
	dsDerive   = 2
	dsAbsolute = 3
)

const (
	partHeaderSize   = 4                  // uint16 type + uint16 length
	valuesHeaderSize = partHeaderSize + 2 // part header + uint16 count
	bytesPerValue    = 1 + 8              // type byte + 8-byte value
	numberPartSize   = partHeaderSize + 8

	// MaxPacketSize is the receive buffer size, larger than the biggest
	// packet collectd emits (65531 bytes).
	MaxPacketSize = 65535
)

// cdtimeToSeconds converts collectd's high-resolution 2^-30 second
// timestamp format to floating-point epoch seconds.
func cdtimeToSeconds(cdt uint64) float64 {
	sec := cdt >> 30
	nsec := (float64(cdt&(1<<30-1)) / 1.073741824) / 1e9
	return float64(sec) + nsec
}

// packetState is the running metadata carried across parts; each VALUES
// part snapshots it into one submission.
type packetState struct {
	time           *float64
	host           *string
	plugin         *string
	pluginInstance *string
	typ            *string
	typeInstance   *string
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// Parse decodes one datagram. Each VALUES part yields one submission with
// the metadata seen so far; notification parts (message, severity) and
// intervals are decoded but yield nothing. Any malformed or unrecognized
// part fails the whole packet.
func Parse(buf []byte) ([]ingest.RawSubmission, error) {
	var subs []ingest.RawSubmission
	var st packetState

	off := 0
	for off < len(buf) {
		if len(buf)-off < partHeaderSize {
			return nil, fmt.Errorf("truncated part header at offset %d", off)
		}
		ptype := binary.BigEndian.Uint16(buf[off:])
		plen := int(binary.BigEndian.Uint16(buf[off+2:]))
		if plen == 0 {
			return nil, fmt.Errorf("part with size=0 at offset %d (type 0x%04x)", off, ptype)
		}
		if plen > len(buf)-off {
			return nil, fmt.Errorf("part size %d exceeds remaining %d bytes at offset %d", plen, len(buf)-off, off)
		}
		part := buf[off : off+plen]

		switch ptype {
		case partHost:
			s, err := decodeString(part)
			if err != nil {
				return nil, err
			}
			st.host = strPtr(s)
		case partPlugin:
			s, err := decodeString(part)
			if err != nil {
				return nil, err
			}
			st.plugin = strPtr(s)
		case partPluginInstance:
			s, err := decodeString(part)
			if err != nil {
				return nil, err
			}
			st.pluginInstance = strPtr(s)
		case partType:
			s, err := decodeString(part)
			if err != nil {
				return nil, err
			}
			st.typ = strPtr(s)
		case partTypeInstance:
			s, err := decodeString(part)
			if err != nil {
				return nil, err
			}
			st.typeInstance = strPtr(s)
		case partTime:
			n, err := decodeNumber(part)
			if err != nil {
				return nil, err
			}
			st.time = floatPtr(float64(n))
		case partTimeHR:
			n, err := decodeNumber(part)
			if err != nil {
				return nil, err
			}
			st.time = floatPtr(cdtimeToSeconds(n))
		case partInterval, partIntervalHR, partSeverity:
			if _, err := decodeNumber(part); err != nil {
				return nil, err
			}
		case partMessage:
			// Notifications carry no metric values; decode and drop.
			if _, err := decodeString(part); err != nil {
				return nil, err
			}
		case partValues:
			values, err := decodeValues(part)
			if err != nil {
				return nil, err
			}
			subs = append(subs, ingest.RawSubmission{
				Time:           st.time,
				Host:           st.host,
				Plugin:         st.plugin,
				PluginInstance: st.pluginInstance,
				Type:           st.typ,
				TypeInstance:   st.typeInstance,
				Values:         values,
			})
		default:
			return nil, fmt.Errorf("unrecognized part type 0x%04x at offset %d", ptype, off)
		}

		off += plen
	}
	return subs, nil
}

// decodeString strips the part header and the trailing NUL.
func decodeString(part []byte) (string, error) {
	if len(part) < partHeaderSize+1 {
		return "", fmt.Errorf("string part too short (%d bytes)", len(part))
	}
	return string(part[partHeaderSize : len(part)-1]), nil
}

func decodeNumber(part []byte) (uint64, error) {
	if len(part) != numberPartSize {
		return 0, fmt.Errorf("number part has %d bytes, want %d", len(part), numberPartSize)
	}
	return binary.BigEndian.Uint64(part[partHeaderSize:]), nil
}

// decodeValues unpacks a VALUES part: a count, count data-source type
// bytes, then count 8-byte values. Gauges are little-endian doubles;
// counters and absolutes are unsigned and derives signed big-endian
// integers. Each value is rendered as a JSON number (NaN and infinite
// gauges become null).
func decodeValues(part []byte) ([]json.RawMessage, error) {
	if len(part) < valuesHeaderSize {
		return nil, fmt.Errorf("values part too short (%d bytes)", len(part))
	}
	n := int(binary.BigEndian.Uint16(part[partHeaderSize:]))
	if want := valuesHeaderSize + n*bytesPerValue; want != len(part) {
		return nil, fmt.Errorf("values part size %d does not match %d declared values (want %d)", len(part), n, want)
	}

	types := part[valuesHeaderSize : valuesHeaderSize+n]
	values := make([]json.RawMessage, 0, n)
	off := valuesHeaderSize + n
	for _, dsType := range types {
		raw := part[off : off+8]
		off += 8

		switch dsType {
		case dsGauge:
			g := math.Float64frombits(binary.LittleEndian.Uint64(raw))
			if math.IsNaN(g) || math.IsInf(g, 0) {
				values = append(values, json.RawMessage("null"))
				continue
			}
			values = append(values, json.RawMessage(strconv.FormatFloat(g, 'g', -1, 64)))
		case dsCounter, dsAbsolute:
			values = append(values, json.RawMessage(strconv.FormatUint(binary.BigEndian.Uint64(raw), 10)))
		case dsDerive:
			values = append(values, json.RawMessage(strconv.FormatInt(int64(binary.BigEndian.Uint64(raw)), 10)))
		default:
			return nil, fmt.Errorf("unsupported data source type %d", dsType)
		}
	}
	return values, nil
}
