package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/burlingtondeals/dealsapi/internal/model"
)

func parseLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("failed to parse log %q: %v", buf.String(), err)
	}
	return entry
}

func TestLoggingMiddleware_Fields(t *testing.T) {
	var buf bytes.Buffer
	handler := NewRequestIDMiddleware()(NewLoggingMiddleware(jsonLogger(&buf))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})))

	req := httptest.NewRequest(http.MethodPost, "/api/deals", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseLogLine(t, &buf)
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["method"] != "POST" {
		t.Errorf("method = %v", entry["method"])
	}
	if entry["path"] != "/api/deals" {
		t.Errorf("path = %v", entry["path"])
	}
	if entry["status"] != float64(201) {
		t.Errorf("status = %v", entry["status"])
	}
	if entry["request_id"] != "abc-123" {
		t.Errorf("request_id = %v", entry["request_id"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Error("duration_ms missing")
	}
	if _, ok := entry["user_id"]; ok {
		t.Error("user_id should be omitted for anonymous requests")
	}
}

func TestLoggingMiddleware_IncludesAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	finder := finderReturning(&model.User{ID: 42, IsActive: true}, nil)
	verifier := validVerifier()
	handler := NewRequestIDMiddleware()(NewLoggingMiddleware(jsonLogger(&buf))(
		NewAuthMiddleware(verifier, finder, discardLogger())(okHandler())))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := parseLogLine(t, &buf)
	if entry["user_id"] != float64(42) {
		t.Errorf("user_id = %v, want 42", entry["user_id"])
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		handler := NewLoggingMiddleware(jsonLogger(&buf))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if got := parseLogLine(t, &buf)["level"]; got != tt.want {
			t.Errorf("status %d: level = %v, want %s", tt.status, got, tt.want)
		}
	}
}

// WriteHeaderを呼ばずにWriteした場合は200として記録する。
func TestStatusRecorder_ImplicitOK(t *testing.T) {
	rec := newStatusRecorder(httptest.NewRecorder())
	rec.Write([]byte("ok"))
	rec.WriteHeader(http.StatusTeapot)

	if rec.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rec.statusCode)
	}
}

type recordedRequest struct {
	method, route string
	status        int
}

type fakeRequestRecorder struct {
	got []recordedRequest
}

func (f *fakeRequestRecorder) RecordHTTPRequest(method, route string, status int, _ time.Duration) {
	f.got = append(f.got, recordedRequest{method, route, status})
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	recorder := &fakeRequestRecorder{}
	r := chi.NewRouter()
	r.Use(NewMetricsMiddleware(recorder))
	r.Get("/api/deals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/deals/17", nil))

	if len(recorder.got) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(recorder.got))
	}
	want := recordedRequest{"GET", "/api/deals/{id}", http.StatusNoContent}
	if recorder.got[0] != want {
		t.Errorf("recorded %+v, want %+v", recorder.got[0], want)
	}
}
