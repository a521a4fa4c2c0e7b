// Package chat はチャットセッションとメッセージのポーリング同期を提供する。
//
// セッション一覧のループは Start から、メッセージのループは Open から始まり、
// ビューの破棄（Close, Stop）または認証の喪失で停止する。
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/guestdesk/internal/apiclient"
	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
	"github.com/hitoshi/guestdesk/internal/security"
)

// Backend はチャットAPIの呼び出しを抽象化する。
type Backend interface {
	ListChatSessions(ctx context.Context) ([]model.ChatSession, error)
	ListMessages(ctx context.Context, sessionID int64) ([]model.Message, error)
	CreateChatSession(ctx context.Context, req apiclient.CreateSessionRequest) (model.ChatSession, error)
	SendMessage(ctx context.Context, sessionID int64, sender model.Sender, body string) (model.Message, error)
	DeleteChatSession(ctx context.Context, sessionID int64) error
}

// Identities はログイン中のユーザーを返す。
type Identities interface {
	Current() (model.Identity, bool)
}

// Notifier は自動で消える通知を発行する。
type Notifier interface {
	Post(scope string, level notify.Level, message string, ttl time.Duration) uint64
}

// Confirmer は取り消せない操作の前にユーザーの確認を得る。
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc は関数をConfirmerとして使うためのアダプタ。
type ConfirmFunc func(prompt string) bool

// Confirm はConfirmerを実装する。
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// ViewState は開いているセッションの読み込み状態を表す。
type ViewState string

const (
	StateIdle    ViewState = "idle"
	StateLoading ViewState = "loading"
	StateLoaded  ViewState = "loaded"
)

// ScopeChat はチャット通知のスコープ。
const ScopeChat = "chat"

// DeletePrompt はセッション削除時の確認文言。
const DeletePrompt = "Are you sure you want to delete this chat session?"

// ポーリングループ名（メトリクスのラベル）
const (
	loopSessions = "chat_sessions"
	loopMessages = "chat_messages"
)

// Options はSyncerの生成オプション。
type Options struct {
	SessionInterval time.Duration
	MessageInterval time.Duration
	NoticeTTL       time.Duration
	Source          RefreshSource
	Sanitizer       security.TextSanitizer
	Metrics         metrics.MetricsCollector
	Logger          *slog.Logger
}

// Syncer はチャットセッション一覧と開いているセッションのメッセージを
// ポーリングで同期し、ローカルのビューを保持する。並行利用しても安全。
type Syncer struct {
	backend   Backend
	ids       Identities
	notifier  Notifier
	source    RefreshSource
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	sessionInterval time.Duration
	messageInterval time.Duration
	noticeTTL       time.Duration
	now             func() time.Time
	newToken        func() string

	mu       sync.Mutex
	sessions []model.ChatSession
	unread   map[int64]int
	lastSeen map[int64]time.Time

	active   *model.ChatSession
	messages []model.Message
	pending  map[int64]model.Message // 送信済みでまだポーリング結果に含まれないメッセージ
	state    ViewState
	viewGen  uint64 // Open/Closeのたびに進む
	listGen  uint64 // Start/Stopのたびに進む
	draft    string
	sending  bool

	stopSessions context.CancelFunc
	stopMessages context.CancelFunc
	wg           sync.WaitGroup
}

// NewSyncer は新しいSyncerを生成する。
func NewSyncer(backend Backend, ids Identities, notifier Notifier, opts Options) *Syncer {
	if opts.SessionInterval <= 0 {
		opts.SessionInterval = 10 * time.Second
	}
	if opts.MessageInterval <= 0 {
		opts.MessageInterval = 3 * time.Second
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 3 * time.Second
	}
	if opts.Source == nil {
		opts.Source = TickerSource{}
	}
	if opts.Sanitizer == nil {
		opts.Sanitizer = security.NewTextSanitizer()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Syncer{
		backend:         backend,
		ids:             ids,
		notifier:        notifier,
		source:          opts.Source,
		sanitizer:       opts.Sanitizer,
		metrics:         opts.Metrics,
		logger:          opts.Logger,
		sessionInterval: opts.SessionInterval,
		messageInterval: opts.MessageInterval,
		noticeTTL:       opts.NoticeTTL,
		now:             time.Now,
		newToken:        func() string { return "session_" + uuid.NewString() },
		unread:          make(map[int64]int),
		lastSeen:        make(map[int64]time.Time),
		pending:         make(map[int64]model.Message),
		state:           StateIdle,
	}
}

// --- ループ ---

// Start はセッション一覧のポーリングを開始する。既に開始している場合は何もしない。
func (s *Syncer) Start(ctx context.Context) error {
	if _, ok := s.ids.Current(); !ok {
		return model.NewNotAuthenticatedError()
	}

	s.mu.Lock()
	if s.stopSessions != nil {
		s.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.stopSessions = cancel
	s.listGen++
	s.mu.Unlock()

	s.logger.Info("チャットセッションの同期を開始しました",
		slog.Duration("interval", s.sessionInterval),
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(loopCtx, loopSessions, s.sessionInterval, s.RefreshSessions)
	}()
	return nil
}

// Stop は全てのループを停止し、開いているセッションを閉じる。
// 停止後に届いたレスポンスはビューに反映されない。
func (s *Syncer) Stop() {
	s.mu.Lock()
	if s.stopSessions != nil {
		s.stopSessions()
		s.stopSessions = nil
	}
	s.listGen++
	s.mu.Unlock()

	s.Close()
	s.wg.Wait()
	s.logger.Info("チャットの同期を停止しました")
}

// Reset はStopに加えてローカルのビューを全て破棄する。ログアウト時に呼ばれる。
func (s *Syncer) Reset() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.unread = make(map[int64]int)
	s.lastSeen = make(map[int64]time.Time)
	s.draft = ""
}

// run は起動直後に1回実行し、以降はシグナルごとに実行する。
// 認証が失われた場合は自分自身を停止する。
func (s *Syncer) run(ctx context.Context, loop string, interval time.Duration, refresh func(context.Context) error) {
	tick := func() bool {
		if _, ok := s.ids.Current(); !ok {
			s.logger.Info("認証が失われたため同期を停止します", slog.String("loop", loop))
			go s.Stop()
			return false
		}
		s.metrics.RecordPollTick(loop)
		if err := refresh(ctx); err != nil && ctx.Err() == nil {
			s.metrics.RecordPollFailure(loop)
			s.logger.Warn("チャットの同期に失敗しました",
				slog.String("loop", loop),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, model.ErrUnauthorized) {
				go s.Stop()
				return false
			}
		}
		return true
	}

	if !tick() {
		return
	}
	signals := s.source.Refreshes(ctx, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if !tick() {
				return
			}
		}
	}
}

// --- セッション一覧 ---

// RefreshSessions はセッション一覧を取得してビューを置き換える。
// 利用客には自分のセッションのみを表示する。
// アクティブでないセッションの更新日時が進んでいれば未読数を加算する。
func (s *Syncer) RefreshSessions(ctx context.Context) error {
	id, ok := s.ids.Current()
	if !ok {
		return model.NewNotAuthenticatedError()
	}

	s.mu.Lock()
	gen := s.listGen
	s.mu.Unlock()

	sessions, err := s.backend.ListChatSessions(ctx)
	if err != nil {
		return err
	}

	if !id.IsStaff() {
		own := make([]model.ChatSession, 0, len(sessions))
		for _, cs := range sessions {
			if cs.Customer.ID == id.ID {
				own = append(own, cs)
			}
		}
		sessions = own
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.listGen {
		return nil
	}

	seen := make(map[int64]time.Time, len(sessions))
	for _, cs := range sessions {
		prev, known := s.lastSeen[cs.ID]
		isActive := s.active != nil && s.active.ID == cs.ID
		if known && !isActive && cs.UpdatedAt.After(prev) {
			s.unread[cs.ID]++
		}
		seen[cs.ID] = cs.UpdatedAt
	}
	for sid := range s.unread {
		if _, ok := seen[sid]; !ok {
			delete(s.unread, sid)
		}
	}
	s.lastSeen = seen
	s.sessions = sessions
	return nil
}

// Sessions は表示中のセッション一覧のコピーを返す。
func (s *Syncer) Sessions() []model.ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatSession(nil), s.sessions...)
}

// Unread はセッションごとの未読数のコピーを返す。
func (s *Syncer) Unread() map[int64]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(s.unread))
	for k, v := range s.unread {
		out[k] = v
	}
	return out
}

// --- メッセージ ---

// Open はセッションを開き、メッセージのポーリングを開始する。
// 既に開いているセッションは閉じられる。未読数は0に戻る。
func (s *Syncer) Open(ctx context.Context, session model.ChatSession) error {
	if _, ok := s.ids.Current(); !ok {
		return model.NewNotAuthenticatedError()
	}

	s.mu.Lock()
	if s.stopMessages != nil {
		s.stopMessages()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.stopMessages = cancel
	s.viewGen++
	active := session
	s.active = &active
	s.messages = nil
	s.pending = make(map[int64]model.Message)
	s.state = StateLoading
	s.unread[session.ID] = 0
	s.mu.Unlock()

	s.logger.Info("チャットセッションを開きました",
		slog.Int64("session_id", session.ID),
		slog.Duration("interval", s.messageInterval),
	)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(loopCtx, loopMessages, s.messageInterval, s.RefreshMessages)
	}()
	return nil
}

// Close は開いているセッションを閉じ、メッセージのポーリングを止める。
func (s *Syncer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopMessages != nil {
		s.stopMessages()
		s.stopMessages = nil
	}
	s.viewGen++
	s.active = nil
	s.messages = nil
	s.pending = make(map[int64]model.Message)
	s.state = StateIdle
}

// RefreshMessages は開いているセッションのメッセージを取得して
// ビューを置き換える。送信済みでまだ結果に含まれないメッセージは残す。
func (s *Syncer) RefreshMessages(ctx context.Context) error {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return nil
	}
	sessionID := s.active.ID
	gen := s.viewGen
	s.state = StateLoading
	s.mu.Unlock()

	msgs, err := s.backend.ListMessages(ctx, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.viewGen {
		return nil
	}
	if err != nil {
		if s.messages != nil {
			s.state = StateLoaded
		}
		return err
	}

	for i := range msgs {
		msgs[i].Body = s.sanitizer.Sanitize(msgs[i].Body)
	}
	s.messages = reconcile(msgs, s.pending)
	s.state = StateLoaded
	return nil
}

// reconcile はサーバーの一覧に未反映の送信済みメッセージを加え、
// IDで重複を除いて時系列に並べる。サーバーの一覧に現れたものはpendingから消す。
func reconcile(server []model.Message, pending map[int64]model.Message) []model.Message {
	out := make([]model.Message, 0, len(server)+len(pending))
	seen := make(map[int64]bool, len(server)+len(pending))
	for _, m := range server {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
		delete(pending, m.ID)
	}

	extra := make([]model.Message, 0, len(pending))
	for _, m := range pending {
		extra = append(extra, m)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].ID < extra[j].ID })
	out = append(out, extra...)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Active は開いているセッションを返す。
func (s *Syncer) Active() (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return model.ChatSession{}, false
	}
	return *s.active, true
}

// Messages は表示中のメッセージのコピーを時系列順で返す。
func (s *Syncer) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// State は開いているセッションの読み込み状態を返す。
func (s *Syncer) State() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// --- 送信 ---

// SetDraft は入力中のメッセージを設定する。
func (s *Syncer) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Draft は入力中のメッセージを返す。
func (s *Syncer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SendDraft は入力中のメッセージを送信する。
// 空白のみ、セッション未選択、送信中の場合はネットワークを呼ばずにfalseを返す。
// 成功時はメッセージを即座にビューへ追加し、入力を空にする。
// 失敗時は入力を残したままエラーを返す。
func (s *Syncer) SendDraft(ctx context.Context) (model.Message, bool, error) {
	id, ok := s.ids.Current()
	if !ok {
		return model.Message{}, false, model.NewNotAuthenticatedError()
	}

	s.mu.Lock()
	text := strings.TrimSpace(s.draft)
	if text == "" || s.active == nil || s.sending {
		s.mu.Unlock()
		return model.Message{}, false, nil
	}
	s.sending = true
	sessionID := s.active.ID
	gen := s.viewGen
	s.mu.Unlock()

	sender := model.SenderCustomer
	if id.IsStaff() {
		sender = model.SenderAdmin
	}

	msg, err := s.backend.SendMessage(ctx, sessionID, sender, text)
	s.metrics.RecordChatSend(err == nil)

	s.mu.Lock()
	s.sending = false
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("メッセージの送信に失敗しました",
			slog.Int64("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		s.notifier.Post(ScopeChat, notify.LevelError, "Failed to send message", s.noticeTTL)
		return model.Message{}, false, err
	}

	msg.Body = s.sanitizer.Sanitize(msg.Body)
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	if gen == s.viewGen {
		s.pending[msg.ID] = msg
		s.messages = reconcile(withoutID(s.messages, msg.ID), map[int64]model.Message{msg.ID: msg})
	}
	if s.draft != "" && strings.TrimSpace(s.draft) == text {
		s.draft = ""
	}
	now := s.now()
	for i := range s.sessions {
		if s.sessions[i].ID == sessionID {
			s.sessions[i].UpdatedAt = now
			s.sessions[i].MessageCount++
			s.lastSeen[sessionID] = now
		}
	}
	s.mu.Unlock()

	if id.IsStaff() {
		s.notifier.Post(ScopeChat, notify.LevelSuccess, "Message sent", s.noticeTTL)
	}
	return msg, true, nil
}

func withoutID(msgs []model.Message, id int64) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

// --- セッションの作成・削除 ---

// CreateSession は新しいセッションを作成し、一覧の先頭に追加して開く。
// 利用客はサポート宛てのセッションを作成する（customerIDは無視する）。
// スタッフは対象の利用客IDが必須。
func (s *Syncer) CreateSession(ctx context.Context, customerID int64) (model.ChatSession, error) {
	id, ok := s.ids.Current()
	if !ok {
		return model.ChatSession{}, model.NewNotAuthenticatedError()
	}

	req := apiclient.CreateSessionRequest{SessionID: s.newToken()}
	if id.IsStaff() {
		if customerID <= 0 {
			err := model.NewValidationError("customer_id", "required")
			s.notifier.Post(ScopeChat, notify.LevelError, "Please enter a customer ID", s.noticeTTL)
			return model.ChatSession{}, err
		}
		admin := id.ID
		req.Customer = customerID
		req.AdminUser = &admin
	} else {
		req.Customer = id.ID
	}

	created, err := s.backend.CreateChatSession(ctx, req)
	if err != nil {
		s.logger.Error("チャットセッションの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		s.notifier.Post(ScopeChat, notify.LevelError, "Failed to create chat session", s.noticeTTL)
		return model.ChatSession{}, err
	}

	s.mu.Lock()
	s.sessions = append([]model.ChatSession{created}, withoutSession(s.sessions, created.ID)...)
	s.lastSeen[created.ID] = created.UpdatedAt
	s.mu.Unlock()

	s.logger.Info("チャットセッションを作成しました",
		slog.Int64("session_id", created.ID),
		slog.String("token", created.SessionID),
	)
	s.notifier.Post(ScopeChat, notify.LevelSuccess, "New chat session created", s.noticeTTL)
	if err := s.Open(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// DeleteSession は確認を得た上でセッションを削除する。
// 削除したセッションが開いていた場合のみビューを閉じる。
// 確認が得られなかった場合はfalseを返す。
func (s *Syncer) DeleteSession(ctx context.Context, sessionID int64, confirm Confirmer) (bool, error) {
	if _, ok := s.ids.Current(); !ok {
		return false, model.NewNotAuthenticatedError()
	}
	if confirm == nil || !confirm.Confirm(DeletePrompt) {
		return false, nil
	}

	if err := s.backend.DeleteChatSession(ctx, sessionID); err != nil {
		s.logger.Error("チャットセッションの削除に失敗しました",
			slog.Int64("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		s.notifier.Post(ScopeChat, notify.LevelError, "Failed to delete chat session", s.noticeTTL)
		return false, err
	}

	s.mu.Lock()
	s.sessions = withoutSession(s.sessions, sessionID)
	delete(s.unread, sessionID)
	delete(s.lastSeen, sessionID)
	wasActive := s.active != nil && s.active.ID == sessionID
	s.mu.Unlock()

	if wasActive {
		s.Close()
	}
	s.logger.Info("チャットセッションを削除しました", slog.Int64("session_id", sessionID))
	s.notifier.Post(ScopeChat, notify.LevelSuccess, "Chat session deleted", s.noticeTTL)
	return true, nil
}

func withoutSession(sessions []model.ChatSession, id int64) []model.ChatSession {
	out := make([]model.ChatSession, 0, len(sessions))
	for _, cs := range sessions {
		if cs.ID != id {
			out = append(out, cs)
		}
	}
	return out
}
