package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/guestdesk/internal/chat"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
	"github.com/hitoshi/guestdesk/internal/session"
)

// SessionView はステータスハンドラーが参照するセッション状態。
type SessionView interface {
	State() session.State
	Current() (model.Identity, bool)
}

// CartView はステータスハンドラーが参照するカートのスナップショット。
type CartView interface {
	Snapshot() (model.Cart, bool)
	LastOrder() (model.Order, bool)
}

// ChatView はチャット同期ループのローカルビュー。
type ChatView interface {
	Sessions() []model.ChatSession
	Unread() map[int64]int
	Active() (model.ChatSession, bool)
	Messages() []model.Message
	State() chat.ViewState
}

// NoticeView は表示中の通知を返す。
type NoticeView interface {
	Active(scope string) []notify.Notice
}

// HealthChecker はDB接続の疎通確認を行う。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// identityResponse はトークンを除いたログインユーザー情報。
type identityResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type chatStateResponse struct {
	View          chat.ViewState     `json:"view"`
	Sessions      int                `json:"sessions"`
	Unread        map[int64]int      `json:"unread"`
	ActiveSession *model.ChatSession `json:"active_session,omitempty"`
	Messages      []model.Message    `json:"messages"`
}

type stateResponse struct {
	Session   string             `json:"session"`
	Identity  *identityResponse  `json:"identity,omitempty"`
	Cart      *model.Cart        `json:"cart,omitempty"`
	LastOrder *model.Order       `json:"last_order,omitempty"`
	Chat      *chatStateResponse `json:"chat,omitempty"`
	Notices   []notify.Notice    `json:"notices"`
}

// StatusHandler はクライアント状態を公開するHTTPハンドラー。
type StatusHandler struct {
	session SessionView
	cart    CartView
	chat    ChatView
	notices NoticeView
	health  HealthChecker
}

// NewStatusHandler はStatusHandlerを生成する。
// cart、chat、healthはnilでもよい。
func NewStatusHandler(sess SessionView, cart CartView, chatView ChatView, notices NoticeView, health HealthChecker) *StatusHandler {
	return &StatusHandler{
		session: sess,
		cart:    cart,
		chat:    chatView,
		notices: notices,
		health:  health,
	}
}

// Health はヘルスチェックを返す。
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := h.health.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unavailable",
				"database": "unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// State はセッション・カート・チャットの現在値を返す。
// GET /api/state
func (h *StatusHandler) State(w http.ResponseWriter, r *http.Request) {
	resp := stateResponse{
		Session: h.session.State().String(),
		Notices: h.notices.Active(""),
	}

	if id, ok := h.session.Current(); ok {
		ir := &identityResponse{
			ID:    id.ID,
			Email: id.Email,
			Name:  id.DisplayName(),
			Role:  id.Role,
		}
		if !id.ExpiresAt.IsZero() {
			exp := id.ExpiresAt
			ir.ExpiresAt = &exp
		}
		resp.Identity = ir
	}

	if h.cart != nil {
		if c, ok := h.cart.Snapshot(); ok {
			resp.Cart = &c
		}
		if o, ok := h.cart.LastOrder(); ok {
			resp.LastOrder = &o
		}
	}

	if h.chat != nil {
		cs := &chatStateResponse{
			View:     h.chat.State(),
			Sessions: len(h.chat.Sessions()),
			Unread:   h.chat.Unread(),
			Messages: h.chat.Messages(),
		}
		if active, ok := h.chat.Active(); ok {
			cs.ActiveSession = &active
		}
		resp.Chat = cs
	}

	writeJSON(w, http.StatusOK, resp)
}
