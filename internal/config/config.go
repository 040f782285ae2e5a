// Package config loads and validates receiver configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Output modes.
const (
	ModeDisk  = "disk"
	ModeUDP   = "udp"
	ModeS3    = "s3"
	ModeRedis = "redis"
)

type Config struct {
	// Server
	ListenAddress string // e.g. "0.0.0.0:8080"
	MaxBodyBytes  int64

	// Batching
	BatchSize     int
	FlushInterval time.Duration

	// Sink selection
	OutputMode string // disk, udp, s3, redis
	OutputFile string // disk mode
	UDPTarget  string // udp mode, host:port
	S3Bucket   string // s3 mode
	S3Prefix   string
	RedisURL   string // redis mode
	RedisQueue string

	// Optional collectd network-protocol listener; empty disables it.
	BinaryListen string

	// General
	LogLevel string
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func parseInt64(key string, defaultValue int64) int64 {
	value, err := strconv.ParseInt(getEnv(key, strconv.FormatInt(defaultValue, 10)), 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func parseInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errors.New("listen address cannot be empty")
	}

	if c.BatchSize <= 0 {
		return errors.New("batch size must be > 0")
	}

	if c.FlushInterval <= 0 {
		return errors.New("flush interval must be > 0")
	}

	if c.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be > 0")
	}

	switch c.OutputMode {
	case ModeDisk:
		if c.OutputFile == "" {
			return errors.New("disk mode requires an output file")
		}
	case ModeUDP:
		if c.UDPTarget == "" {
			return errors.New("udp mode requires a target address")
		}
	case ModeS3:
		if c.S3Bucket == "" {
			return errors.New("s3 mode requires a bucket")
		}
	case ModeRedis:
		if c.RedisURL == "" || c.RedisQueue == "" {
			return errors.New("redis mode requires a URL and a queue key")
		}
	default:
		return fmt.Errorf("invalid output mode %q (want disk, udp, s3, or redis)", c.OutputMode)
	}

	return nil
}

// Load reads configuration from COLLECTD_* environment variables, applying
// defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddress: getEnv("COLLECTD_LISTEN", "0.0.0.0:8080"),
		MaxBodyBytes:  parseInt64("COLLECTD_MAX_BODY_BYTES", 10*1024*1024),

		BatchSize:     parseInt("COLLECTD_BATCH_SIZE", 100),
		FlushInterval: time.Duration(parseInt64("COLLECTD_FLUSH_INTERVAL_MS", 1000)) * time.Millisecond,

		OutputMode: getEnv("COLLECTD_OUTPUT_MODE", ModeDisk),
		OutputFile: getEnv("COLLECTD_OUTPUT_FILE", "collectd.out"),
		UDPTarget:  getEnv("COLLECTD_UDP_TARGET", "localhost:9999"),
		S3Bucket:   getEnv("COLLECTD_S3_BUCKET", ""),
		S3Prefix:   getEnv("COLLECTD_S3_PREFIX", "collectd"),
		RedisURL:   getEnv("COLLECTD_REDIS_URL", "redis://127.0.0.1/"),
		RedisQueue: getEnv("COLLECTD_REDIS_QUEUE", "collectd_records"),

		BinaryListen: getEnv("COLLECTD_BINARY_LISTEN", ""),

		LogLevel: getEnv("COLLECTD_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return cfg, nil
}
