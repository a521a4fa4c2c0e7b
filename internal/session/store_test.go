package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// --- モック ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, creds model.Credentials) (model.Identity, error)
	logoutFn       func(ctx context.Context) error
	logoutCalls    int
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, creds model.Credentials) (model.Identity, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, creds)
	}
	return model.Identity{ID: 1, Email: creds.Email, Role: model.RoleCustomer, Token: "tok"}, nil
}

func (m *mockAuthenticator) Logout(ctx context.Context) error {
	m.logoutCalls++
	if m.logoutFn != nil {
		return m.logoutFn(ctx)
	}
	return nil
}

type mockPersister struct {
	mu      sync.Mutex
	stored  *model.Identity
	loadErr error
	saveErr error
	cleared int
}

func (m *mockPersister) Load(_ context.Context) (*model.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.stored, nil
}

func (m *mockPersister) Save(_ context.Context, id model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.stored = &id
	return nil
}

func (m *mockPersister) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	m.cleared++
	return nil
}

type recordingNavigator struct {
	mu      sync.Mutex
	reasons []string
}

func (n *recordingNavigator) ToLogin(reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNavigator) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reasons) == 0 {
		return ""
	}
	return n.reasons[len(n.reasons)-1]
}

func newTestStore(auth *mockAuthenticator, p *mockPersister) (*Store, *recordingNavigator) {
	nav := &recordingNavigator{}
	var buf bytes.Buffer
	return NewStore(auth, p, nav, newTestLogger(&buf)), nav
}

// --- Login ---

func TestLogin_Success_TransitionsToAuthenticated(t *testing.T) {
	p := &mockPersister{}
	s, _ := newTestStore(&mockAuthenticator{}, p)

	id, err := s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if s.State() != Authenticated {
		t.Errorf("State = %v, want authenticated", s.State())
	}
	if s.Token() != "tok" {
		t.Errorf("Token = %q, want tok", s.Token())
	}
	if p.stored == nil || p.stored.Email != id.Email {
		t.Error("Identityが永続化されていない")
	}
}

func TestLogin_Failure_StaysAnonymous(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(context.Context, model.Credentials) (model.Identity, error) {
			return model.Identity{}, model.NewServerError(400, []byte(`{"message":"Invalid credentials"}`))
		},
	}
	p := &mockPersister{}
	s, _ := newTestStore(auth, p)

	_, err := s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "bad"})
	if err == nil {
		t.Fatal("エラーを返すべき")
	}
	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	if p.stored != nil {
		t.Error("失敗時は永続化してはならない")
	}
}

func TestLogin_PersistFailure_StillAuthenticated(t *testing.T) {
	p := &mockPersister{saveErr: errors.New("disk full")}
	s, _ := newTestStore(&mockAuthenticator{}, p)

	if _, err := s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"}); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	if s.State() != Authenticated {
		t.Error("永続化に失敗してもログイン状態になるべき")
	}
}

// --- Logout ---

func TestLogout_ClearsEvenWhenBackendFails(t *testing.T) {
	auth := &mockAuthenticator{
		logoutFn: func(context.Context) error { return model.NewNetworkError(errors.New("refused")) },
	}
	p := &mockPersister{}
	s, nav := newTestStore(auth, p)
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})

	s.Logout(context.Background())

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	if s.Token() != "" {
		t.Error("トークンが残っている")
	}
	if p.stored != nil {
		t.Error("永続化されたIdentityが残っている")
	}
	if auth.logoutCalls != 1 {
		t.Errorf("logoutCalls = %d, want 1", auth.logoutCalls)
	}
	if nav.last() != ReasonLogout {
		t.Errorf("navigation = %q, want %q", nav.last(), ReasonLogout)
	}
}

func TestLogout_BackendUnauthorized_NavigatesOnce(t *testing.T) {
	auth := &mockAuthenticator{}
	s, nav := newTestStore(auth, &mockPersister{})
	// クライアントの401ハンドラーと同じくExpireを呼んでからエラーを返す
	auth.logoutFn = func(context.Context) error {
		s.Expire()
		return model.NewUnauthorizedError(nil)
	}
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})
	before := len(nav.reasons)

	s.Logout(context.Background())

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	got := nav.reasons[before:]
	if len(got) != 1 || got[0] != ReasonExpired {
		t.Errorf("navigations = %v, want [%s]", got, ReasonExpired)
	}
}

func TestLogout_AnonymousSkipsBackend(t *testing.T) {
	auth := &mockAuthenticator{}
	s, _ := newTestStore(auth, &mockPersister{})

	s.Logout(context.Background())
	if auth.logoutCalls != 0 {
		t.Errorf("logoutCalls = %d, want 0", auth.logoutCalls)
	}
}

// --- Expire ---

func TestExpire_ClearsAndNavigates(t *testing.T) {
	auth := &mockAuthenticator{}
	p := &mockPersister{}
	s, nav := newTestStore(auth, p)
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})

	s.Expire()

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	if p.stored != nil {
		t.Error("永続化されたIdentityが残っている")
	}
	if nav.last() != ReasonExpired {
		t.Errorf("navigation = %q, want %q", nav.last(), ReasonExpired)
	}
	if auth.logoutCalls != 0 {
		t.Error("Expireはバックエンドを呼び出してはならない")
	}
}

// --- Bootstrap ---

func TestBootstrap_RestoresPersistedIdentity(t *testing.T) {
	p := &mockPersister{stored: &model.Identity{ID: 5, Email: "a@example.com", Token: "saved"}}
	s, _ := newTestStore(&mockAuthenticator{}, p)

	s.Bootstrap(context.Background())

	id, ok := s.Current()
	if !ok || id.ID != 5 || s.Token() != "saved" {
		t.Errorf("restored = %+v, ok = %v", id, ok)
	}
}

func TestBootstrap_ParseFailure_TreatedAsLogout(t *testing.T) {
	p := &mockPersister{loadErr: errors.New("invalid character")}
	s, _ := newTestStore(&mockAuthenticator{}, p)

	s.Bootstrap(context.Background())

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	if p.cleared != 1 {
		t.Errorf("cleared = %d, want 1", p.cleared)
	}
}

func TestBootstrap_ExpiredIdentity_TreatedAsLogout(t *testing.T) {
	p := &mockPersister{stored: &model.Identity{ID: 5, Token: "old", ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}}
	s, _ := newTestStore(&mockAuthenticator{}, p)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	s.Bootstrap(context.Background())

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
}

func TestBootstrap_WithFilePersister_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	fp := NewFilePersister(path)
	if err := writeFile(path, "{not json"); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	var buf bytes.Buffer
	s := NewStore(&mockAuthenticator{}, fp, nil, newTestLogger(&buf))
	s.Bootstrap(context.Background())

	if s.State() != Anonymous {
		t.Errorf("State = %v, want anonymous", s.State())
	}
	if id, err := fp.Load(context.Background()); err != nil || id != nil {
		t.Errorf("壊れたファイルは削除されるべき: id=%v err=%v", id, err)
	}
}

// --- RequireAuthenticated ---

func TestRequireAuthenticated_Anonymous(t *testing.T) {
	s, nav := newTestStore(&mockAuthenticator{}, &mockPersister{})

	_, err := s.RequireAuthenticated()
	if !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("expected NotAuthenticated, got %v", err)
	}
	if nav.last() != ReasonRequired {
		t.Errorf("navigation = %q, want %q", nav.last(), ReasonRequired)
	}
}

func TestRequireAuthenticated_MissingUserID_LogsOut(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(context.Context, model.Credentials) (model.Identity, error) {
			return model.Identity{Token: "tok"}, nil
		},
	}
	s, _ := newTestStore(auth, &mockPersister{})
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})

	_, err := s.RequireAuthenticated()
	if !errors.Is(err, model.ErrNotAuthenticated) {
		t.Errorf("expected NotAuthenticated, got %v", err)
	}
	if s.State() != Anonymous {
		t.Error("ユーザーIDが不明な場合はログアウトするべき")
	}
}

func TestRequireAuthenticated_ReturnsIdentity(t *testing.T) {
	s, _ := newTestStore(&mockAuthenticator{}, &mockPersister{})
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})

	id, err := s.RequireAuthenticated()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.ID != 1 {
		t.Errorf("ID = %d, want 1", id.ID)
	}
}

// --- Subscribe ---

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	s, _ := newTestStore(&mockAuthenticator{}, &mockPersister{})

	var states []State
	unsubscribe := s.Subscribe(func(st State, _ model.Identity) { states = append(states, st) })

	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})
	s.Expire()
	unsubscribe()
	s.Login(context.Background(), model.Credentials{Email: "a@example.com", Password: "pw"})

	want := []State{Authenticated, Anonymous}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Errorf("states[%d] = %v, want %v", i, states[i], want[i])
		}
	}
}
