package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/context", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Errorf("request id = %q, want req_ prefix", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("header id %q does not match context id %q", rec.Header().Get(RequestIDHeader), seen)
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 1 || metrics.ServerErrors != 1 {
		t.Errorf("unexpected metrics %+v", metrics)
	}
}

func TestMiddleware_ReusesIncomingID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("id = %q, want abc-123", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id<script>")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "bad id<script>" {
		t.Error("malformed incoming id should be replaced")
	}
}

func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	_, _ = rw.Write([]byte("chunk"))
	rw.Flush()
	if !rec.Flushed {
		t.Error("expected underlying recorder to be flushed")
	}
}
