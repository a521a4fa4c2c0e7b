package handler

import (
	"context"

	"github.com/hitoshi/guestdesk/internal/chat"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
	"github.com/hitoshi/guestdesk/internal/session"
)

// --- モック定義 ---

type mockSession struct {
	identity *model.Identity
}

func (m *mockSession) State() session.State {
	if m.identity != nil {
		return session.Authenticated
	}
	return session.Anonymous
}

func (m *mockSession) Current() (model.Identity, bool) {
	if m.identity == nil {
		return model.Identity{}, false
	}
	return *m.identity, true
}

type mockCart struct {
	cart  *model.Cart
	order *model.Order
}

func (m *mockCart) Snapshot() (model.Cart, bool) {
	if m.cart == nil {
		return model.Cart{}, false
	}
	return *m.cart, true
}

func (m *mockCart) LastOrder() (model.Order, bool) {
	if m.order == nil {
		return model.Order{}, false
	}
	return *m.order, true
}

type mockChat struct {
	sessions []model.ChatSession
	unread   map[int64]int
	active   *model.ChatSession
	messages []model.Message
	state    chat.ViewState
}

func (m *mockChat) Sessions() []model.ChatSession { return m.sessions }
func (m *mockChat) Unread() map[int64]int         { return m.unread }
func (m *mockChat) Messages() []model.Message     { return m.messages }
func (m *mockChat) State() chat.ViewState         { return m.state }

func (m *mockChat) Active() (model.ChatSession, bool) {
	if m.active == nil {
		return model.ChatSession{}, false
	}
	return *m.active, true
}

type mockNotices struct {
	notices []notify.Notice
}

func (m *mockNotices) Active(scope string) []notify.Notice {
	var out []notify.Notice
	for _, n := range m.notices {
		if scope == "" || n.Scope == scope {
			out = append(out, n)
		}
	}
	return out
}

type mockHealth struct {
	err error
}

func (m *mockHealth) PingContext(ctx context.Context) error { return m.err }
