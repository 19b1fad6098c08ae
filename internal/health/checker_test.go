package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCheckerAggregatesResults(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("ok", CheckableFunc(func(context.Context) error { return nil }))
	checker.AddCheck("broken", CheckableFunc(func(context.Context) error { return errors.New("down") }))

	results, healthy := checker.Check(context.Background())

	if healthy {
		t.Error("expected unhealthy aggregate")
	}
	if results["ok"] != "OK" {
		t.Errorf("results[ok] = %q, want OK", results["ok"])
	}
	if results["broken"] != "down" {
		t.Errorf("results[broken] = %q, want down", results["broken"])
	}
}

func TestCheckerHandlerStatusCodes(t *testing.T) {
	checker := NewChecker(testLogger())
	checker.AddCheck("ok", CheckableFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	checker.AddCheck("broken", CheckableFunc(func(context.Context) error { return errors.New("down") }))

	rec = httptest.NewRecorder()
	checker.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}
