package collectd

import (
	"errors"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/ingest"
	"github.com/collectd-forward/agent/internal/metrics"
)

// dropLogCooldown is the minimum time between warnings for the same drop
// reason, so a malformed sender or a dead queue cannot flood the log.
const dropLogCooldown = 10 * time.Second

// Listener receives binary-protocol datagrams and feeds decoded records
// into the same ingest queue the HTTP handlers use. UDP has no reply
// channel, so records that cannot be decoded or enqueued are counted,
// logged and dropped.
type Listener struct {
	conn  net.PacketConn
	queue *ingest.Queue

	dropLogMu sync.Mutex
	dropLogAt map[string]time.Time
}

// NewListener binds addr for datagrams.
func NewListener(addr string, q *ingest.Queue) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn, queue: q, dropLogAt: make(map[string]time.Time)}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.conn.LocalAddr()
}

// Run reads datagrams until the socket is closed.
func (l *Listener) Run() {
	log.WithField("addr", l.Addr().String()).Info("binary protocol listener started")
	buf := make([]byte, MaxPacketSize)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.WithError(err).Warn("read datagram")
			continue
		}

		subs, err := Parse(buf[:n])
		if err != nil {
			metrics.RecordsDropped.WithLabelValues("bad_packet").Inc()
			if l.shouldLogDrop("bad_packet") {
				log.WithError(err).WithField("from", from.String()).Warn("dropping malformed packet")
			}
			continue
		}

		enqueued := 0
		for _, rec := range ingest.NormalizeAll(subs) {
			if err := l.queue.Push(rec); err != nil {
				metrics.RecordsDropped.WithLabelValues("queue_closed").Inc()
				if l.shouldLogDrop("queue_closed") {
					log.WithError(err).Warn("dropping records: batch writer gone")
				}
				break
			}
			enqueued++
		}
		if enqueued > 0 {
			metrics.RecordsEnqueued.Add(float64(enqueued))
		}
	}
}

// Close stops the listener; Run returns once the pending read fails.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// shouldLogDrop rate-limits drop warnings per reason.
func (l *Listener) shouldLogDrop(reason string) bool {
	l.dropLogMu.Lock()
	defer l.dropLogMu.Unlock()

	last, seen := l.dropLogAt[reason]
	if !seen || time.Since(last) >= dropLogCooldown {
		l.dropLogAt[reason] = time.Now()
		return true
	}
	return false
}
