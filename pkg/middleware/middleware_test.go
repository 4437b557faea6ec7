package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventdetection/event-detection/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRequestIDReusesHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "abc123" || rec.Header().Get(RequestIDHeader) != "abc123" {
		t.Errorf("expected request id to be reused, got ctx=%q header=%q", seen, rec.Header().Get(RequestIDHeader))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(seen) != 16 {
		t.Errorf("expected generated 16-char id, got %q", seen)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		method      string
		origin      string
		preflight   bool
		wantCode    int
		wantAllow   string
		wantHandled bool
	}{
		{"preflight from allowed origin", []string{"*"}, http.MethodOptions, "http://localhost:3000", true, http.StatusNoContent, "http://localhost:3000", false},
		{"plain options passes through", []string{"*"}, http.MethodOptions, "http://localhost:3000", false, http.StatusOK, "http://localhost:3000", true},
		{"simple request from listed origin", []string{"https://events.example.org"}, http.MethodPost, "https://events.example.org", false, http.StatusOK, "https://events.example.org", true},
		{"unlisted origin", []string{"https://events.example.org"}, http.MethodGet, "https://evil.example.com", false, http.StatusOK, "", true},
		{"disabled", nil, http.MethodOptions, "http://localhost:3000", true, http.StatusOK, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handled := false
			h := CORS(tt.origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handled = true
			}))
			req := httptest.NewRequest(tt.method, "/api/v1/score", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if handled != tt.wantHandled {
				t.Errorf("handler called = %v, want %v", handled, tt.wantHandled)
			}
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/api/v1/score", "/api/v1/score"},
		{"/api/v1/articles/a1/keywords", "/api/v1/articles/:id/keywords"},
		{"/api/v1/articles/a1", "/api/v1/articles/:id"},
		{"/api/v1/articles/", "/api/v1/articles/"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/api/v1/score", http.StatusOK, "/api/v1/score"},
		{"/wp-login.php", http.StatusNotFound, unmatchedRoute},
		{"/api/v1/articles/a9/keywords", http.StatusNotFound, "/api/v1/articles/:id/keywords"},
		{"/api/v1/expand", http.StatusBadRequest, "/api/v1/expand"},
	}
	for _, tt := range tests {
		if got := routeLabel(tt.path, tt.status); got != tt.want {
			t.Errorf("routeLabel(%q, %d) = %q, want %q", tt.path, tt.status, got, tt.want)
		}
	}
}

func TestMetricsRecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)
	h := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/articles/a1/keywords", nil))

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range families {
		if f.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["status"] == "418" && labels["path"] == "/api/v1/articles/:id/keywords" {
				return
			}
		}
	}
	t.Error("expected http_requests_total with status 418 and normalized path")
}

func TestTimeout(t *testing.T) {
	h := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
		time.Sleep(5 * time.Millisecond)
		w.Write([]byte("late"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "timed out") {
		t.Errorf("body = %q", rec.Body.String())
	}

	fast := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	rec = httptest.NewRecorder()
	fast.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("fast handler: %d %q", rec.Code, rec.Body.String())
	}
}
