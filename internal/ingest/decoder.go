// Package ingest accepts collectd write_http submissions, flattens them
// into single-valued records, and hands them to the batch writer through
// an unbounded queue.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrInvalidJSON is returned when the request body parses as neither a
// single submission object nor an array of them.
var ErrInvalidJSON = errors.New("invalid JSON")

// BodyTooLargeError is returned when the request body exceeds the configured limit.
type BodyTooLargeError struct {
	Max int64
}

func (e *BodyTooLargeError) Error() string {
	return fmt.Sprintf("request body exceeds limit of %d bytes", e.Max)
}

// DecodeBody parses a request body as collectd write_http JSON. The
// single-object form is attempted first; on failure the array form is
// tried. Unknown fields (interval, dstypes, dsnames, ...) are ignored.
func DecodeBody(body []byte) ([]RawSubmission, error) {
	var single RawSubmission
	if err := json.Unmarshal(body, &single); err == nil {
		return []RawSubmission{single}, nil
	}

	var many []RawSubmission
	if err := json.Unmarshal(body, &many); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, err)
	}
	return many, nil
}

// DecodeRequestFromHTTP reads and decodes submissions from an HTTP request,
// enforcing maxBodyBytes. Returns BodyTooLargeError if the body exceeds the limit.
func DecodeRequestFromHTTP(r *http.Request, w http.ResponseWriter, maxBodyBytes int64) ([]RawSubmission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, &BodyTooLargeError{Max: maxBodyBytes}
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, err)
	}
	return DecodeBody(body)
}
