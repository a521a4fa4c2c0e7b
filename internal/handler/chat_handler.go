package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/guestdesk/internal/chat"
	"github.com/hitoshi/guestdesk/internal/middleware"
	"github.com/hitoshi/guestdesk/internal/model"
)

// ChatHandler は管理者向けチャット一覧のHTTPハンドラー。
type ChatHandler struct {
	chat ChatView
	loc  *time.Location
	now  func() time.Time
}

// NewChatHandler はChatHandlerを生成する。locはCSVの日時表記に使う。
func NewChatHandler(view ChatView, loc *time.Location) *ChatHandler {
	if loc == nil {
		loc = time.Local
	}
	return &ChatHandler{
		chat: view,
		loc:  loc,
		now:  time.Now,
	}
}

type chatSessionsResponse struct {
	Sessions []model.ChatSession `json:"sessions"`
	Unread   map[int64]int       `json:"unread"`
	Total    int                 `json:"total"`
}

// ListSessions は検索・モード・並び替えを適用したセッション一覧を返す。
// GET /api/chat/sessions?search=&mode=&sort=&order=
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, ok := h.filtered(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, chatSessionsResponse{
		Sessions: sessions,
		Unread:   h.chat.Unread(),
		Total:    len(h.chat.Sessions()),
	})
}

// Stats はセッション一覧の集計値を返す。
// GET /api/chat/stats
func (h *ChatHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, chat.ComputeStats(h.chat.Sessions(), h.now()))
}

// Export は絞り込み後のセッション一覧をCSVで返す。
// GET /api/chat/export
func (h *ChatHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessions, ok := h.filtered(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+chat.ExportFileName(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	chat.ExportCSV(w, sessions, h.loc)
}

// filtered はクエリパラメータを解釈し、絞り込み・並び替え済みの一覧を返す。
// パラメータが不正な場合は400を書き込んでfalseを返す。
func (h *ChatHandler) filtered(w http.ResponseWriter, r *http.Request) ([]model.ChatSession, bool) {
	q := r.URL.Query()

	mode, err := chat.ParseMode(q.Get("mode"))
	if err != nil {
		middleware.WriteError(w, model.NewValidationError("mode", err.Error()))
		return nil, false
	}

	key, err := parseSortKey(q.Get("sort"))
	if err != nil {
		middleware.WriteError(w, err)
		return nil, false
	}

	now := h.now()
	sessions := chat.FilterSessions(h.chat.Sessions(), h.chat.Unread(), chat.Filter{
		Search: q.Get("search"),
		Mode:   mode,
	}, now)
	return chat.SortSessions(sessions, key, strings.EqualFold(q.Get("order"), "asc")), true
}

func parseSortKey(s string) (chat.SortKey, error) {
	switch chat.SortKey(s) {
	case "":
		return chat.SortUpdated, nil
	case chat.SortUpdated, chat.SortCreated, chat.SortMessages, chat.SortCustomer:
		return chat.SortKey(s), nil
	default:
		return "", model.NewValidationError("sort", "unknown sort key: "+s)
	}
}
