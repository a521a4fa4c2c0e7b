// Package notify はスコープ付きで自動的に消える通知を管理する。
//
// カート操作やチャット送信の成否は通知として発行され、
// TTL経過後に自動で取り下げられる。自動リトライは行わない。
package notify

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

// Level は通知の重要度を表す。
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice は表示中の通知1件を表す。
type Notice struct {
	ID        uint64    `json:"id"`
	Scope     string    `json:"scope"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Center は通知の発行・自動取り下げを行う。並行利用しても安全。
type Center struct {
	mu        sync.Mutex
	seq       uint64
	notices   map[uint64]Notice
	timers    map[uint64]*time.Timer
	listeners []func(Notice)
	logger    *slog.Logger
	now       func() time.Time
}

// NewCenter は新しいCenterを生成する。
func NewCenter(logger *slog.Logger) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		notices: make(map[uint64]Notice),
		timers:  make(map[uint64]*time.Timer),
		logger:  logger,
		now:     time.Now,
	}
}

// OnPost は通知発行時に呼ばれるリスナーを登録する。
func (c *Center) OnPost(fn func(Notice)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Post は通知を発行し、IDを返す。ttlが0以下の場合は自動で取り下げない。
// 同じスコープの同じレベルの通知は置き換える。
func (c *Center) Post(scope string, level Level, message string, ttl time.Duration) uint64 {
	c.mu.Lock()
	for id, n := range c.notices {
		if n.Scope == scope && n.Level == level {
			c.removeLocked(id)
		}
	}

	c.seq++
	id := c.seq
	now := c.now()
	n := Notice{
		ID:        id,
		Scope:     scope,
		Level:     level,
		Message:   message,
		CreatedAt: now,
	}
	if ttl > 0 {
		n.ExpiresAt = now.Add(ttl)
		c.timers[id] = time.AfterFunc(ttl, func() { c.Dismiss(id) })
	}
	c.notices[id] = n
	listeners := append([]func(Notice){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(n)
	}
	return id
}

// Success は成功通知を発行する。
func (c *Center) Success(scope, message string, ttl time.Duration) uint64 {
	return c.Post(scope, LevelSuccess, message, ttl)
}

// Error はエラー通知を発行し、エラー内容をログに記録する。
func (c *Center) Error(scope string, err error, ttl time.Duration) uint64 {
	c.logger.Warn("操作に失敗しました",
		slog.String("scope", scope),
		slog.String("error", err.Error()),
	)
	return c.Post(scope, LevelError, MessageFor(err), ttl)
}

// Dismiss は通知を取り下げる。存在しないIDは無視する。
func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

// ClearScope は指定スコープの通知を全て取り下げる。
func (c *Center) ClearScope(scope string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, n := range c.notices {
		if n.Scope == scope {
			c.removeLocked(id)
		}
	}
}

// Active は指定スコープの表示中の通知を発行順に返す。
// scopeが空の場合は全スコープを返す。
func (c *Center) Active(scope string) []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Notice, 0, len(c.notices))
	for _, n := range c.notices {
		if scope == "" || n.Scope == scope {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close は保留中のタイマーを全て停止する。
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
}

func (c *Center) removeLocked(id uint64) {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	delete(c.notices, id)
}

// MessageFor はエラーからユーザー向けのメッセージを組み立てる。
// サーバーのバリデーションエラーは "field: msg" をセミコロンで連結する。
func MessageFor(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.Kind == model.KindServer && apiErr.Message == "An error occurred" {
		if fields := apiErr.FieldErrors(); len(fields) > 0 {
			return strings.Join(fields, "; ")
		}
	}
	return apiErr.Message
}
