package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/clinicware/vet-reminders/internal/config"
	"github.com/clinicware/vet-reminders/internal/notify"
	"github.com/clinicware/vet-reminders/internal/practice"
	"github.com/clinicware/vet-reminders/internal/send"
	"github.com/clinicware/vet-reminders/internal/store/memory"
	"github.com/clinicware/vet-reminders/pkg/logging"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.New("error")
	store := memory.New()
	worker := send.NewWorker(store, notify.NewStubEmailSender(logger), notify.NewStubSMSSender(logger), nil, logger, send.Options{})
	mr := miniredis.RunT(t)
	practiceStore := practice.NewStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	cfg := &appconfig.Config{AdminJWTSecret: "test-secret"}
	return newRouter(cfg, logger, store, worker, practiceStore)
}

func TestHealthz(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	r := testRouter(t)
	for _, path := range []string{"/admin/reminders/stats", "/admin/practices/default/settings"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", path, rec.Code)
		}
	}
}
