package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/florinutz/rowsync/health"
	"github.com/florinutz/rowsync/metrics"
)

func TestRouter(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("destination")
	checker.SetStatus("destination", health.StatusUp)
	readiness := health.NewReadinessChecker()

	metrics.Cycles.WithLabelValues("synced").Inc()

	srv := httptest.NewServer(Router(checker, readiness))
	defer srv.Close()

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, `"status":"up"`},
		{"/readyz", http.StatusServiceUnavailable, `"ready":false`},
		{"/metrics", http.StatusOK, "rowsync_cycles_total"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		if err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != tt.code {
			t.Errorf("GET %s: status %d, want %d", tt.path, resp.StatusCode, tt.code)
		}
		if tt.body != "" && !strings.Contains(string(body), tt.body) {
			t.Errorf("GET %s: body missing %q", tt.path, tt.body)
		}
	}
}

func TestRouter_NilCheckers(t *testing.T) {
	srv := httptest.NewServer(Router(nil, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 without a checker, got %d", resp.StatusCode)
	}
}
