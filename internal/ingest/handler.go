package ingest

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/metrics"
)

// Handler serves POST / and POST /collectd. It decodes the body, expands
// submissions into flat records, and pushes every record onto the queue.
//
//	200 "OK\n"  every record enqueued
//	400         body is neither a submission object nor an array
//	500         the batch writer has terminated (permanent until restart)
type Handler struct {
	queue        *Queue
	maxBodyBytes int64
}

// NewHandler wires the ingest queue into an HTTP handler. maxBodyBytes
// caps the request body size.
func NewHandler(q *Queue, maxBodyBytes int64) *Handler {
	return &Handler{queue: q, maxBodyBytes: maxBodyBytes}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqLog := log.WithField("request_id", uuid.New().String())

	subs, err := DecodeRequestFromHTTP(r, w, h.maxBodyBytes)
	if err != nil {
		var tooLarge *BodyTooLargeError
		switch {
		case errors.As(err, &tooLarge):
			reqLog.WithError(err).Warn("rejecting oversized body")
			h.reply(w, http.StatusRequestEntityTooLarge, "request body too large")
		default:
			reqLog.WithError(err).Warn("failed to parse JSON body")
			h.reply(w, http.StatusBadRequest, "invalid JSON")
		}
		return
	}
	reqLog.WithField("submissions", len(subs)).Debug("received submissions")

	enqueued := 0
	for _, sub := range subs {
		for _, rec := range Normalize(sub) {
			if err := h.queue.Push(rec); err != nil {
				reqLog.WithError(err).Warn("failed to enqueue record")
				h.reply(w, http.StatusInternalServerError, "internal server error")
				return
			}
			enqueued++
		}
	}
	metrics.RecordsEnqueued.Add(float64(enqueued))
	reqLog.WithField("records", enqueued).Debug("enqueued records")

	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(http.StatusOK)).Inc()
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK\n")
}

func (h *Handler) reply(w http.ResponseWriter, code int, msg string) {
	metrics.RequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	http.Error(w, msg, code)
}
