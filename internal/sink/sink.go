// Package sink implements the batch destinations: append-only file, UDP
// datagram stream, S3 bucket, and Redis list. The variant is chosen once
// at startup and never changes.
package sink

import (
	"context"

	"github.com/pkg/errors"

	"github.com/collectd-forward/agent/internal/config"
	"github.com/collectd-forward/agent/internal/ingest"
)

// Sink persists or transmits one batch of flat records in buffer order.
// Flush is only ever called from the batch writer goroutine, so
// implementations keep state (open files, sockets, clients) without
// locking. A Flush error is fatal to the writer: it is never retried and
// the batch is lost.
type Sink interface {
	Flush(batch []ingest.FlatRecord) error
	Close() error
}

// New opens the sink variant selected by cfg.OutputMode.
func New(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch cfg.OutputMode {
	case config.ModeDisk:
		return NewDisk(cfg.OutputFile)
	case config.ModeUDP:
		return NewUDP(cfg.UDPTarget)
	case config.ModeS3:
		return NewS3(ctx, cfg.S3Bucket, cfg.S3Prefix)
	case config.ModeRedis:
		return NewRedis(cfg.RedisURL, cfg.RedisQueue)
	}
	return nil, errors.Errorf("unknown output mode %q", cfg.OutputMode)
}
