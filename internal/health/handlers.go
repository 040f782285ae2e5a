package health

import (
	"encoding/json"
	"io"
	"net/http"
)

// LiveHandler serves GET /healthz.
func LiveHandler(h *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, body := h.Live()
		w.WriteHeader(code)
		io.WriteString(w, body+"\n")
	}
}

// ReadyHandler serves GET /readyz as JSON.
func ReadyHandler(h *Health) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code, report := h.Ready()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(report)
	}
}
