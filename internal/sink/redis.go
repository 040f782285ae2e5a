package sink

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/collectd-forward/agent/internal/ingest"
)

// RedisSink pushes each record onto a Redis list as one msgpack message,
// for downstream consumers that pop from the list. A flush issues all of
// its RPUSHes in a single pipeline, preserving batch order.
type RedisSink struct {
	client *redis.Client
	queue  string
}

// NewRedis connects to the Redis instance named by url.
func NewRedis(url, queue string) (*RedisSink, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "parse redis URL %s", url)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	log.WithField("queue", queue).Info("redis sink ready")
	return &RedisSink{client: client, queue: queue}, nil
}

func (r *RedisSink) Flush(batch []ingest.FlatRecord) error {
	ctx := context.Background()
	pipe := r.client.Pipeline()
	for i := range batch {
		payload, err := msgpack.Marshal(&batch[i])
		if err != nil {
			return errors.Wrap(err, "serialize record")
		}
		pipe.RPush(ctx, r.queue, payload)
	}
	_, err := pipe.Exec(ctx)
	return errors.Wrap(err, "push batch to redis")
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
