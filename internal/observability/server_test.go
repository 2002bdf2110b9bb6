package observability

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func testObsLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv := NewServer(":0", testObsLogger())

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("health body = %q, want 'healthy'", rec.Body.String())
	}
}

func TestServer_ReadyEndpoint(t *testing.T) {
	srv := NewServer(":0", testObsLogger())

	rec := httptest.NewRecorder()
	srv.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before SetReady: status = %d, want 503", rec.Code)
	}

	srv.SetReady(true)
	rec = httptest.NewRecorder()
	srv.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after SetReady: status = %d, want 200", rec.Code)
	}

	srv.SetReady(false)
	rec = httptest.NewRecorder()
	srv.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("after SetReady(false): status = %d, want 503", rec.Code)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv := NewServer("127.0.0.1:0", testObsLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after shutdown, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestMetrics_Registered(t *testing.T) {
	Metrics.UploadsTotal.WithLabelValues("incident").Inc()
	Metrics.UploadErrorsTotal.WithLabelValues("incident", "transport").Inc()
	Metrics.UploadDuration.WithLabelValues("incident").Observe(0.2)
	Metrics.UploadedBytesTotal.WithLabelValues("incident").Add(42)

	rec := httptest.NewRecorder()
	srv := NewServer(":0", testObsLogger())
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, metric := range []string{
		"snattach_uploads_total",
		"snattach_upload_errors_total",
		"snattach_upload_duration_seconds",
		"snattach_uploaded_bytes_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
