package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/session"
)

func setTestEnv(t *testing.T, baseURL string) {
	t.Helper()
	t.Setenv("API_BASE_URL", baseURL)
	t.Setenv("MEDIA_BASE_URL", "")
	t.Setenv("SESSION_FILE", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("API_RATE_LIMIT", "0")
	t.Setenv("LOG_LEVEL", "error")
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t, "http://localhost:8000/api")
	t.Setenv("LOG_LEVEL", "info")

	var buf bytes.Buffer
	cfg, log, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg == nil || log == nil {
		t.Fatal("expected non-nil config and logger")
	}
	if cfg.APIBaseURL != "http://localhost:8000/api" {
		t.Errorf("APIBaseURL = %q, want http://localhost:8000/api", cfg.APIBaseURL)
	}

	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	setTestEnv(t, "")

	var buf bytes.Buffer
	cfg, _, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing API_BASE_URL, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func newTestApp(t *testing.T) (*App, *fakeBackend) {
	t.Helper()
	fb, srv := newFakeBackend(t)
	setTestEnv(t, srv.URL)

	var logs bytes.Buffer
	cfg, log, err := Init(&logs)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	a, err := New(context.Background(), cfg, log, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(a.Close)
	return a, fb
}

func TestNew_StartsAnonymousWithoutDatabase(t *testing.T) {
	a, _ := newTestApp(t)

	if a.Session.State() != session.Anonymous {
		t.Errorf("state = %v, want anonymous", a.Session.State())
	}
	if a.DB != nil || a.Reports != nil {
		t.Error("database components should be nil without DATABASE_URL")
	}
}

func TestNew_LoginTokenIsSentToBackend(t *testing.T) {
	a, fb := newTestApp(t)
	ctx := context.Background()

	if _, err := a.Session.Login(ctx, model.Credentials{Email: "alice@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	cart, err := a.Cart.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if cart.ID != 1 {
		t.Errorf("cart.ID = %d, want 1", cart.ID)
	}
	if fb.requested("GET /cart/") != 1 {
		t.Errorf("GET /cart/ requests = %d, want 1", fb.requested("GET /cart/"))
	}
}

func TestNew_UnauthorizedResponseExpiresSessionAndResetsCart(t *testing.T) {
	a, fb := newTestApp(t)
	ctx := context.Background()

	if _, err := a.Session.Login(ctx, model.Credentials{Email: "alice@example.com", Password: "secret"}); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := a.Cart.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	fb.mu.Lock()
	fb.expired = true
	fb.mu.Unlock()

	_, err := a.Cart.Refresh(ctx)
	if !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("Refresh() error = %v, want ErrUnauthorized", err)
	}
	if a.Session.State() != session.Anonymous {
		t.Errorf("state = %v, want anonymous", a.Session.State())
	}
	if _, loaded := a.Cart.Snapshot(); loaded {
		t.Error("cart snapshot should be discarded after the session expires")
	}
}
