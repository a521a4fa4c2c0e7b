package handler

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/model"
)

func newTestRouter(withChat bool) (http.Handler, *bytes.Buffer) {
	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).RecordPollTick("sessions")

	deps := &RouterDeps{
		Session:  &mockSession{},
		Cart:     &mockCart{},
		Notices:  &mockNotices{},
		Gatherer: reg,
		Location: time.UTC,
		Logger:   slog.New(slog.NewJSONHandler(&logs, nil)),
	}
	if withChat {
		deps.Chat = &mockChat{sessions: []model.ChatSession{{ID: 1, SessionID: "tok"}}}
	}
	return NewRouter(deps), &logs
}

func TestNewRouter_Routes(t *testing.T) {
	router, _ := newTestRouter(true)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/api/state", http.StatusOK},
		{"/api/chat/sessions", http.StatusOK},
		{"/api/chat/stats", http.StatusOK},
		{"/api/chat/export", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.want {
				t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
			}
		})
	}
}

func TestNewRouter_WithoutChat_OmitsChatRoutes(t *testing.T) {
	router, _ := newTestRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat/sessions", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestNewRouter_MetricsExposesCollector(t *testing.T) {
	router, _ := newTestRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `guestdesk_poll_ticks_total{loop="sessions"} 1`) {
		t.Errorf("metrics output missing poll tick counter:\n%s", body)
	}
}

func TestNewRouter_AppliesMiddleware(t *testing.T) {
	router, logs := newTestRouter(false)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if !strings.Contains(logs.String(), `"request_id"`) {
		t.Errorf("access log should contain request_id: %s", logs.String())
	}
}
