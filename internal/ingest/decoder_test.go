package ingest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// singleJSON is one collectd write_http submission, including the extra
// fields collectd sends that the receiver ignores.
const singleJSON = `{
	"host": "web1",
	"plugin": "cpu",
	"plugin_instance": "0",
	"type": "gauge",
	"type_instance": "idle",
	"time": 1700000000.5,
	"interval": 10.0,
	"values": [97.2],
	"dstypes": ["gauge"],
	"dsnames": ["value"]
}`

// --- DecodeBody: single object form ---

func TestDecodeBody_SingleObject(t *testing.T) {
	subs, err := DecodeBody([]byte(singleJSON))
	if err != nil {
		t.Fatalf("DecodeBody() error = %v, want nil", err)
	}
	if len(subs) != 1 {
		t.Fatalf("len(subs) = %d, want 1", len(subs))
	}
	if subs[0].Host == nil || *subs[0].Host != "web1" {
		t.Errorf("Host = %v, want web1", subs[0].Host)
	}
	if len(subs[0].Values) != 1 || string(subs[0].Values[0]) != "97.2" {
		t.Errorf("Values = %v, want [97.2]", subs[0].Values)
	}
}

func TestDecodeBody_EmptyObjectIsValid(t *testing.T) {
	subs, err := DecodeBody([]byte(`{}`))
	if err != nil {
		t.Fatalf("DecodeBody({}) error = %v, want nil", err)
	}
	if len(subs) != 1 {
		t.Errorf("len(subs) = %d, want 1 (empty submission, drops at normalization)", len(subs))
	}
}

// --- DecodeBody: array form ---

func TestDecodeBody_ArrayForm(t *testing.T) {
	body := `[{"host":"a","value":1},{"host":"b","value":2}]`
	subs, err := DecodeBody([]byte(body))
	if err != nil {
		t.Fatalf("DecodeBody() error = %v, want nil", err)
	}
	if len(subs) != 2 {
		t.Fatalf("len(subs) = %d, want 2", len(subs))
	}
	if *subs[0].Host != "a" || *subs[1].Host != "b" {
		t.Errorf("hosts = %s, %s, want a, b", *subs[0].Host, *subs[1].Host)
	}
}

func TestDecodeBody_EmptyArrayYieldsNoSubmissions(t *testing.T) {
	subs, err := DecodeBody([]byte(`[]`))
	if err != nil {
		t.Fatalf("DecodeBody([]) error = %v, want nil", err)
	}
	if len(subs) != 0 {
		t.Errorf("len(subs) = %d, want 0", len(subs))
	}
}

// --- DecodeBody: malformed input ---

func TestDecodeBody_MalformedJSONReturnsErrInvalidJSON(t *testing.T) {
	for _, body := range []string{"", "not json", `{"host":`, `[{"host":"a"}`, `42`, `"text"`} {
		_, err := DecodeBody([]byte(body))
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("DecodeBody(%q): errors.Is(err, ErrInvalidJSON) = false, got %v", body, err)
		}
	}
}

// --- DecodeRequestFromHTTP ---

func TestDecodeRequestFromHTTP_ValidRequestSucceeds(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(singleJSON))
	w := httptest.NewRecorder()

	subs, err := DecodeRequestFromHTTP(r, w, 1024*1024)
	if err != nil {
		t.Fatalf("DecodeRequestFromHTTP() error = %v, want nil", err)
	}
	if len(subs) != 1 {
		t.Errorf("len(subs) = %d, want 1", len(subs))
	}
}

func TestDecodeRequestFromHTTP_OversizedBodyReturnsBodyTooLargeError(t *testing.T) {
	body := strings.Repeat("x", 100)
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	_, err := DecodeRequestFromHTTP(r, w, 10)
	if err == nil {
		t.Fatal("DecodeRequestFromHTTP() returned nil for oversized body, want error")
	}

	var tooLarge *BodyTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("errors.As(err, *BodyTooLargeError) = false, got %T: %v", err, err)
	}
	if tooLarge.Max != 10 {
		t.Errorf("BodyTooLargeError.Max = %d, want 10", tooLarge.Max)
	}
}

func TestDecodeRequestFromHTTP_BodyAtExactLimitIsAccepted(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(singleJSON))
	w := httptest.NewRecorder()

	if _, err := DecodeRequestFromHTTP(r, w, int64(len(singleJSON))); err != nil {
		t.Errorf("DecodeRequestFromHTTP() error = %v for body at exact limit, want nil", err)
	}
}
