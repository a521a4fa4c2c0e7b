package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

// Status は最終更新からの経過時間によるセッションの状態。
type Status string

const (
	StatusActive   Status = "active"   // 5分未満
	StatusIdle     Status = "idle"     // 1時間未満
	StatusInactive Status = "inactive" // それ以上
)

// Mode はセッション一覧の絞り込み条件。
type Mode string

const (
	ModeAll      Mode = "all"
	ModeUnread   Mode = "unread"
	ModeActive   Mode = "active"
	ModeIdle     Mode = "idle"
	ModeInactive Mode = "inactive"
)

// ParseMode は文字列をModeに変換する。空文字列はModeAll。
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAll, nil
	case ModeAll, ModeUnread, ModeActive, ModeIdle, ModeInactive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown filter mode: %q", s)
	}
}

// Filter はセッション一覧の検索条件。
type Filter struct {
	Search string
	Mode   Mode
}

// SessionStatus はセッションの状態を返す。
func SessionStatus(s model.ChatSession, now time.Time) Status {
	diff := now.Sub(s.UpdatedAt)
	switch {
	case diff < 5*time.Minute:
		return StatusActive
	case diff < time.Hour:
		return StatusIdle
	default:
		return StatusInactive
	}
}

// FilterSessions は検索語とモードの両方に一致するセッションを元の順序で返す。
// 検索語はセッショントークン、利用客のユーザー名・メールアドレスに対して
// 大文字小文字を区別せずに部分一致させる。
func FilterSessions(sessions []model.ChatSession, unread map[int64]int, f Filter, now time.Time) []model.ChatSession {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]model.ChatSession, 0, len(sessions))
	for _, s := range sessions {
		if !matchesSearch(s, term) {
			continue
		}
		if !matchesMode(s, unread, f.Mode, now) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesSearch(s model.ChatSession, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.SessionID), term) ||
		strings.Contains(strings.ToLower(s.Customer.Username), term) ||
		strings.Contains(strings.ToLower(s.Customer.Email), term)
}

func matchesMode(s model.ChatSession, unread map[int64]int, mode Mode, now time.Time) bool {
	switch mode {
	case "", ModeAll:
		return true
	case ModeUnread:
		return unread[s.ID] > 0
	case ModeActive:
		return SessionStatus(s, now) == StatusActive
	case ModeIdle:
		return SessionStatus(s, now) == StatusIdle
	case ModeInactive:
		return SessionStatus(s, now) == StatusInactive
	default:
		return false
	}
}

// SortKey はセッション一覧の並び替えキー。
type SortKey string

const (
	SortUpdated  SortKey = "updated_at"
	SortCreated  SortKey = "created_at"
	SortMessages SortKey = "message_count"
	SortCustomer SortKey = "customer"
)

// SortSessions はセッションを並び替えた新しいスライスを返す。
// 同値の場合は元の順序を保つ。
func SortSessions(sessions []model.ChatSession, key SortKey, ascending bool) []model.ChatSession {
	out := append([]model.ChatSession(nil), sessions...)
	less := func(a, b model.ChatSession) bool {
		switch key {
		case SortCreated:
			return a.CreatedAt.Before(b.CreatedAt)
		case SortMessages:
			return a.MessageCount < b.MessageCount
		case SortCustomer:
			return strings.ToLower(a.Customer.Username) < strings.ToLower(b.Customer.Username)
		default:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return less(out[i], out[j])
		}
		return less(out[j], out[i])
	})
	return out
}

// Stats は管理画面に表示する集計値。
type Stats struct {
	TotalSessions int `json:"total_sessions"`
	ActiveToday   int `json:"active_today"`
	TotalMessages int `json:"total_messages"`
}

// ComputeStats はセッション一覧から集計値を求める。
// 本日（nowのタイムゾーンの0時以降）に更新されたセッションをActiveTodayとして数える。
func ComputeStats(sessions []model.ChatSession, now time.Time) Stats {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	st := Stats{TotalSessions: len(sessions)}
	for _, s := range sessions {
		if !s.UpdatedAt.Before(today) {
			st.ActiveToday++
		}
		st.TotalMessages += s.MessageCount
	}
	return st
}

// FormatRelative はメッセージ時刻を "Just now"、"5m ago"、"3h ago"、日付のいずれかで表す。
func FormatRelative(ts, now time.Time) string {
	diff := now.Sub(ts)
	switch {
	case diff < time.Minute:
		return "Just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	default:
		return ts.In(now.Location()).Format("2006-01-02")
	}
}
