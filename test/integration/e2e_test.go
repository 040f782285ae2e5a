// Package integration_test wires the whole pipeline together in-process —
// HTTP handler, queue, batch writer, sink — and verifies end-to-end
// behaviour: no record loss under concurrent producers, shutdown flushes,
// and permanent degradation after a sink failure.
package integration_test

import (
	"bufio"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/collectd-forward/agent/internal/batch"
	"github.com/collectd-forward/agent/internal/config"
	"github.com/collectd-forward/agent/internal/health"
	"github.com/collectd-forward/agent/internal/ingest"
	"github.com/collectd-forward/agent/internal/sink"
)

// pipeline is one fully wired receiver instance backed by snk.
type pipeline struct {
	queue      *ingest.Queue
	server     *httptest.Server
	writerDone chan error
}

func startPipeline(t *testing.T, snk sink.Sink, batchSize int, interval time.Duration) *pipeline {
	t.Helper()

	queue := ingest.NewQueue()
	writer := batch.New(queue, snk, batchSize, interval)
	writerDone := make(chan error, 1)
	go func() { writerDone <- writer.Run() }()

	probes := health.New(queue)
	mux := http.NewServeMux()
	mux.Handle("POST /{$}", ingest.NewHandler(queue, 1024*1024))
	mux.Handle("POST /collectd", ingest.NewHandler(queue, 1024*1024))
	mux.HandleFunc("GET /healthz", health.LiveHandler(probes))
	mux.HandleFunc("GET /readyz", health.ReadyHandler(probes))

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &pipeline{queue: queue, server: server, writerDone: writerDone}
}

// shutdown closes the queue and waits for the writer's final flush.
func (p *pipeline) shutdown(t *testing.T) error {
	t.Helper()
	p.queue.Close()
	select {
	case err := <-p.writerDone:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("batch writer did not exit after queue close")
		return nil
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

// --- end to end: disk ---

func TestPipeline_ConcurrentProducersLoseNoRecords(t *testing.T) {
	const producers = 8
	const requestsPerProducer = 10
	// Each request body expands to 3 records: values of length 2, one
	// scalar, and one payloadless submission.
	const body = `[{"host":"web1","values":[1,2]},{"host":"web2","value":3},{"host":"web3"}]`
	const recordsPerRequest = 3

	path := filepath.Join(t.TempDir(), "out.ndjson")
	snk, err := sink.New(nil, &config.Config{OutputMode: config.ModeDisk, OutputFile: path})
	if err != nil {
		t.Fatalf("sink.New() error = %v", err)
	}
	defer snk.Close()

	// An odd batch size forces both size-triggered and final flushes.
	p := startPipeline(t, snk, 7, 20*time.Millisecond)

	errs := make(chan error, producers)
	for w := 0; w < producers; w++ {
		go func() {
			for i := 0; i < requestsPerProducer; i++ {
				resp, err := http.Post(p.server.URL+"/collectd", "application/json", strings.NewReader(body))
				if err != nil {
					errs <- err
					return
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errs <- fmt.Errorf("status = %d, want 200", resp.StatusCode)
					return
				}
			}
			errs <- nil
		}()
	}
	for w := 0; w < producers; w++ {
		if err := <-errs; err != nil {
			t.Fatalf("producer failed: %v", err)
		}
	}

	if err := p.shutdown(t); err != nil {
		t.Fatalf("writer error = %v, want nil", err)
	}

	want := producers * requestsPerProducer * recordsPerRequest
	if got := countLines(t, path); got != want {
		t.Errorf("persisted %d records, want %d", got, want)
	}
}

func TestPipeline_ShutdownFlushesPartialBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	snk, err := sink.New(nil, &config.Config{OutputMode: config.ModeDisk, OutputFile: path})
	if err != nil {
		t.Fatalf("sink.New() error = %v", err)
	}
	defer snk.Close()

	p := startPipeline(t, snk, 100, time.Hour)

	if resp := post(t, p.server.URL+"/", `{"values":[1,2]}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if err := p.shutdown(t); err != nil {
		t.Fatalf("writer error = %v, want nil", err)
	}
	if got := countLines(t, path); got != 2 {
		t.Errorf("persisted %d records, want 2", got)
	}
}

// --- probes ---

func TestPipeline_ProbesReportHealthyWhileRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ndjson")
	snk, err := sink.New(nil, &config.Config{OutputMode: config.ModeDisk, OutputFile: path})
	if err != nil {
		t.Fatalf("sink.New() error = %v", err)
	}
	defer snk.Close()

	p := startPipeline(t, snk, 10, time.Hour)
	defer p.shutdown(t)

	for _, route := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(p.server.URL + route)
		if err != nil {
			t.Fatalf("GET %s: %v", route, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", route, resp.StatusCode)
		}
	}
}

// --- sink failure ---

// brokenSink fails every flush.
type brokenSink struct{}

func (brokenSink) Flush([]ingest.FlatRecord) error { return errors.New("disk full") }
func (brokenSink) Close() error                    { return nil }

func TestPipeline_SinkFailureDegradesServicePermanently(t *testing.T) {
	p := startPipeline(t, brokenSink{}, 2, time.Hour)

	// Two records hit the size threshold and the failing flush.
	post(t, p.server.URL+"/", `{"values":[1,2]}`)

	select {
	case err := <-p.writerDone:
		if err == nil {
			t.Fatal("writer exited nil, want the sink error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not die on sink failure")
	}

	if resp := post(t, p.server.URL+"/", `{"value":1}`); resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("POST after writer death status = %d, want 500", resp.StatusCode)
	}

	resp, err := http.Get(p.server.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /readyz status = %d, want 503", resp.StatusCode)
	}
}
