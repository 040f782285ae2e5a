package sink

import (
	"encoding/json"
	"net"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/ingest"
)

// UDPSink transmits each batch as a single datagram whose payload is a
// JSON array of records in batch order. There is no size guard: a batch
// whose serialized form exceeds the maximum datagram size fails the send
// or is dropped by the network layer.
type UDPSink struct {
	conn net.Conn
}

// NewUDP binds an ephemeral local endpoint connected to target.
func NewUDP(target string) (*UDPSink, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, errors.Wrapf(err, "connect UDP target %s", target)
	}
	log.WithField("target", target).Info("udp sink ready")
	return &UDPSink{conn: conn}, nil
}

func (u *UDPSink) Flush(batch []ingest.FlatRecord) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "serialize batch")
	}
	if _, err := u.conn.Write(payload); err != nil {
		return errors.Wrap(err, "send batch datagram")
	}
	return nil
}

func (u *UDPSink) Close() error {
	return u.conn.Close()
}
