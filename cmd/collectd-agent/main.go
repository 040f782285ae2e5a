// collectd-agent receives collectd write_http JSON submissions over HTTP
// (and optionally the binary network protocol over UDP), flattens them
// into single-valued records, and forwards them in batches to a configured
// sink: append-only file, UDP datagram stream, S3 bucket, or Redis list.
//
// Batches flush when they reach COLLECTD_BATCH_SIZE records or when
// COLLECTD_FLUSH_INTERVAL_MS elapses with records pending. A sink failure
// kills the batch writer permanently; every request after that gets a 500
// until the process restarts.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/batch"
	"github.com/collectd-forward/agent/internal/collectd"
	"github.com/collectd-forward/agent/internal/config"
	"github.com/collectd-forward/agent/internal/health"
	"github.com/collectd-forward/agent/internal/ingest"
	"github.com/collectd-forward/agent/internal/metrics"
	"github.com/collectd-forward/agent/internal/sink"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration error")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	log.WithFields(log.Fields{
		"mode":       cfg.OutputMode,
		"batch_size": cfg.BatchSize,
		"interval":   cfg.FlushInterval,
	}).Info("starting collectd receiver")

	out, err := sink.New(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open sink")
	}

	queue := ingest.NewQueue()
	metrics.RegisterQueueDepth(queue.Depth)

	writer := batch.New(queue, out, cfg.BatchSize, cfg.FlushInterval)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		if err := writer.Run(); err != nil {
			log.WithError(err).Error("batch writer failed; rejecting records until restart")
		}
	}()

	var listener *collectd.Listener
	if cfg.BinaryListen != "" {
		listener, err = collectd.NewListener(cfg.BinaryListen, queue)
		if err != nil {
			log.WithError(err).Fatal("failed to bind binary protocol listener")
		}
		go listener.Run()
	}

	probes := health.New(queue)
	mux := http.NewServeMux()
	mux.Handle("POST /{$}", ingest.NewHandler(queue, cfg.MaxBodyBytes))
	mux.Handle("POST /collectd", ingest.NewHandler(queue, cfg.MaxBodyBytes))
	mux.HandleFunc("GET /healthz", health.LiveHandler(probes))
	mux.HandleFunc("GET /readyz", health.ReadyHandler(probes))
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.ListenAddress, Handler: mux}
	go func() {
		log.WithField("addr", cfg.ListenAddress).Info("listening for collectd submissions")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	// Stop producers first, then close the queue so the writer drains the
	// buffer with one final flush before exit.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown")
	}
	if listener != nil {
		listener.Close()
	}
	queue.Close()
	<-writerDone
	if err := out.Close(); err != nil {
		log.WithError(err).Warn("sink close")
	}
}
