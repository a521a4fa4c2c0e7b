// Package session はログイン中のユーザー情報（Identity）を保持するセッションストアを提供する。
//
// ストアは Anonymous と Authenticated の2状態を持ち、状態遷移は
// Login、Logout、Expire（401受信時）、Bootstrap（起動時の復元）でのみ起こる。
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

// State はセッションの状態を表す。
type State int

const (
	// Anonymous は未ログイン状態。
	Anonymous State = iota
	// Authenticated はログイン済み状態。
	Authenticated
)

// String は状態名を返す。
func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Authenticator はバックエンドへのログイン・ログアウトを行う。
type Authenticator interface {
	Authenticate(ctx context.Context, creds model.Credentials) (model.Identity, error)
	Logout(ctx context.Context) error
}

// Persister はIdentityを永続化する。
// 保存されていない場合、Loadは (nil, nil) を返す。
type Persister interface {
	Load(ctx context.Context) (*model.Identity, error)
	Save(ctx context.Context, id model.Identity) error
	Clear(ctx context.Context) error
}

// Navigator はログイン画面への遷移を通知する。
type Navigator interface {
	ToLogin(reason string)
}

// NavigatorFunc は関数をNavigatorとして使うためのアダプタ。
type NavigatorFunc func(reason string)

// ToLogin はNavigatorを実装する。
func (f NavigatorFunc) ToLogin(reason string) { f(reason) }

// ログイン画面へ遷移する理由
const (
	ReasonLogout   = "logout"
	ReasonExpired  = "expired"
	ReasonRequired = "login_required"
)

// Listener は状態遷移を受け取る。Anonymousの場合identityはゼロ値。
type Listener func(state State, identity model.Identity)

// Store はセッションストア。並行利用しても安全。
type Store struct {
	auth      Authenticator
	persister Persister
	nav       Navigator
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	identity  *model.Identity
	listeners map[int]Listener
	nextID    int
}

// NewStore は新しいStoreを生成する。初期状態はAnonymous。
func NewStore(auth Authenticator, persister Persister, nav Navigator, logger *slog.Logger) *Store {
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		auth:      auth,
		persister: persister,
		nav:       nav,
		logger:    logger,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Bootstrap は永続化されたIdentityを読み込む。
// 読み込みやパースに失敗した場合、または有効期限切れの場合はログアウト扱いとし、
// エラーは返さない。
func (s *Store) Bootstrap(ctx context.Context) {
	id, err := s.persister.Load(ctx)
	if err != nil {
		s.logger.Warn("保存されたセッションの読み込みに失敗しました。ログアウト状態で起動します",
			slog.String("error", err.Error()),
		)
		s.clearPersisted(ctx)
		return
	}
	if id == nil || id.Token == "" {
		return
	}
	if !id.ExpiresAt.IsZero() && !s.now().Before(id.ExpiresAt) {
		s.logger.Info("保存されたセッションは有効期限切れです",
			slog.Time("expires_at", id.ExpiresAt),
		)
		s.clearPersisted(ctx)
		return
	}

	s.set(id)
	s.logger.Info("セッションを復元しました",
		slog.Int64("user_id", id.ID),
		slog.String("role", string(id.Role)),
	)
}

// Login はバックエンドで認証し、成功した場合にAuthenticatedへ遷移する。
// 失敗した場合はAnonymousのままエラーを返す。
func (s *Store) Login(ctx context.Context, creds model.Credentials) (model.Identity, error) {
	id, err := s.auth.Authenticate(ctx, creds)
	if err != nil {
		s.logger.Warn("ログインに失敗しました", slog.String("error", err.Error()))
		return model.Identity{}, err
	}

	if err := s.persister.Save(ctx, id); err != nil {
		s.logger.Warn("セッションの保存に失敗しました", slog.String("error", err.Error()))
	}
	s.set(&id)

	s.logger.Info("ログインしました",
		slog.Int64("user_id", id.ID),
		slog.String("role", string(id.Role)),
	)
	return id, nil
}

// Logout はバックエンドのログアウトを試み、結果に関わらずローカルの状態を破棄する。
func (s *Store) Logout(ctx context.Context) {
	if s.State() == Authenticated {
		if err := s.auth.Logout(ctx); err != nil {
			s.logger.Warn("バックエンドのログアウトに失敗しました",
				slog.String("error", err.Error()),
			)
		}
		// ログアウトAPIの401でExpire済みなら破棄と遷移の通知も済んでいる
		if s.State() == Anonymous {
			return
		}
	}
	s.clearPersisted(ctx)
	s.set(nil)
	s.nav.ToLogin(ReasonLogout)
}

// Expire は401受信時にローカルの状態を破棄してログイン画面へ遷移させる。
// バックエンドは呼び出さない。
func (s *Store) Expire() {
	if s.State() == Anonymous {
		s.nav.ToLogin(ReasonExpired)
		return
	}
	s.logger.Warn("セッションの有効期限が切れました")
	s.clearPersisted(context.Background())
	s.set(nil)
	s.nav.ToLogin(ReasonExpired)
}

// State は現在の状態を返す。
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Anonymous
	}
	return Authenticated
}

// Current は現在のIdentityを返す。Anonymousの場合はfalse。
func (s *Store) Current() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// Token は現在の認証トークンを返す。apiclient.TokenSourceを満たす。
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Token
}

// RequireAuthenticated はAuthenticatedであることを確認する。
// Anonymousの場合、またはユーザーIDが不明な場合はログイン画面へ遷移させ、
// NotAuthenticatedエラーを返す。
func (s *Store) RequireAuthenticated() (model.Identity, error) {
	id, ok := s.Current()
	if !ok {
		s.nav.ToLogin(ReasonRequired)
		return model.Identity{}, model.NewNotAuthenticatedError()
	}
	if id.ID == 0 {
		s.logger.Warn("ユーザーIDが不明なためログアウトします")
		s.clearPersisted(context.Background())
		s.set(nil)
		s.nav.ToLogin(ReasonRequired)
		return model.Identity{}, model.NewNotAuthenticatedError()
	}
	return id, nil
}

// Subscribe は状態遷移のリスナーを登録し、登録解除関数を返す。
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// set はIdentityを差し替え、リスナーに通知する。
func (s *Store) set(id *model.Identity) {
	s.mu.Lock()
	s.identity = id
	state := Anonymous
	var current model.Identity
	if id != nil {
		state = Authenticated
		current = *id
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(state, current)
	}
}

func (s *Store) clearPersisted(ctx context.Context) {
	if err := s.persister.Clear(ctx); err != nil {
		s.logger.Warn("保存されたセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}
}
