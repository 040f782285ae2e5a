// Package health implements the /healthz and /readyz probe handlers.
package health

import (
	"fmt"
	"net/http"
)

type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
)

// CheckResult is one named readiness check.
type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// ReadinessReport is the JSON body served on /readyz.
type ReadinessReport struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// IngestStatus is implemented by the ingest queue.
type IngestStatus interface {
	Depth() int
	Accepting() bool
}

// Health aggregates component status for the probe handlers.
type Health struct {
	ingest IngestStatus
}

func New(ingest IngestStatus) *Health {
	return &Health{ingest: ingest}
}

// Live reports process liveness; it succeeds as long as we can answer.
func (h *Health) Live() (int, string) {
	return http.StatusOK, "ok"
}

// Ready reports whether the pipeline can still accept records. Once the
// batch writer has died the queue stops accepting and readiness degrades
// permanently; restarting the process is the only recovery.
func (h *Health) Ready() (int, ReadinessReport) {
	code := http.StatusOK
	status := StatusOK
	checks := []CheckResult{}

	if h.ingest != nil {
		check := CheckResult{
			Name:    "ingest",
			Status:  StatusOK,
			Message: fmt.Sprintf("queue depth %d", h.ingest.Depth()),
		}
		if !h.ingest.Accepting() {
			check.Status = StatusDegraded
			check.Message = "batch writer stopped; queue no longer accepting records"
			status = StatusDegraded
			code = http.StatusServiceUnavailable
		}
		checks = append(checks, check)
	}

	return code, ReadinessReport{Status: string(status), Checks: checks}
}
