package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/guestdesk/internal/model"
)

func TestSessionStatus(t *testing.T) {
	now := baseTime
	tests := []struct {
		name string
		ago  time.Duration
		want Status
	}{
		{"直後", 0, StatusActive},
		{"4分59秒前", 4*time.Minute + 59*time.Second, StatusActive},
		{"ちょうど5分前", 5 * time.Minute, StatusIdle},
		{"59分前", 59 * time.Minute, StatusIdle},
		{"ちょうど1時間前", time.Hour, StatusInactive},
		{"1日前", 24 * time.Hour, StatusInactive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := model.ChatSession{UpdatedAt: now.Add(-tt.ago)}
			assert.Equal(t, tt.want, SessionStatus(s, now))
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)

	m, err = ParseMode(" Unread ")
	require.NoError(t, err)
	assert.Equal(t, ModeUnread, m)

	_, err = ParseMode("archived")
	assert.Error(t, err)
}

func filterFixture() ([]model.ChatSession, map[int64]int) {
	sessions := []model.ChatSession{
		{ID: 1, SessionID: "session_abc", Customer: model.UserRef{Username: "Alice", Email: "alice@example.com"}, UpdatedAt: baseTime.Add(-time.Minute)},
		{ID: 2, SessionID: "session_def", Customer: model.UserRef{Username: "bob", Email: "bob@example.com"}, UpdatedAt: baseTime.Add(-30 * time.Minute)},
		{ID: 3, SessionID: "session_ghi", Customer: model.UserRef{Username: "carol", Email: "carol@hotel.test"}, UpdatedAt: baseTime.Add(-48 * time.Hour)},
		{ID: 4, SessionID: "session_alx", Customer: model.UserRef{Username: "dave", Email: "dave@example.com"}, UpdatedAt: baseTime.Add(-2 * time.Minute)},
	}
	unread := map[int64]int{2: 3, 3: 0, 4: 1}
	return sessions, unread
}

func ids(sessions []model.ChatSession) []int64 {
	out := make([]int64, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func TestFilterSessions(t *testing.T) {
	sessions, unread := filterFixture()
	tests := []struct {
		name   string
		filter Filter
		want   []int64
	}{
		{"条件なし", Filter{}, []int64{1, 2, 3, 4}},
		{"ユーザー名（大文字小文字無視）", Filter{Search: "ALICE"}, []int64{1}},
		{"メールアドレス", Filter{Search: "hotel.test"}, []int64{3}},
		{"トークン", Filter{Search: "_al"}, []int64{4}},
		{"未読", Filter{Mode: ModeUnread}, []int64{2, 4}},
		{"アクティブ", Filter{Mode: ModeActive}, []int64{1, 4}},
		{"アイドル", Filter{Mode: ModeIdle}, []int64{2}},
		{"非アクティブ", Filter{Mode: ModeInactive}, []int64{3}},
		{"検索とモードはAND", Filter{Search: "example.com", Mode: ModeUnread}, []int64{2, 4}},
		{"一致なし", Filter{Search: "zzz"}, []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterSessions(sessions, unread, tt.filter, baseTime)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilterSessions_DoesNotModifyInput(t *testing.T) {
	sessions, unread := filterFixture()
	before := ids(sessions)

	FilterSessions(sessions, unread, Filter{Mode: ModeUnread}, baseTime)
	assert.Equal(t, before, ids(sessions))
}

func TestSortSessions(t *testing.T) {
	sessions := []model.ChatSession{
		{ID: 1, MessageCount: 5, Customer: model.UserRef{Username: "carol"}, CreatedAt: baseTime.Add(-time.Hour), UpdatedAt: baseTime},
		{ID: 2, MessageCount: 1, Customer: model.UserRef{Username: "Alice"}, CreatedAt: baseTime.Add(-3 * time.Hour), UpdatedAt: baseTime.Add(-time.Hour)},
		{ID: 3, MessageCount: 5, Customer: model.UserRef{Username: "bob"}, CreatedAt: baseTime.Add(-2 * time.Hour), UpdatedAt: baseTime.Add(time.Hour)},
	}

	assert.Equal(t, []int64{3, 1, 2}, ids(SortSessions(sessions, SortUpdated, false)))
	assert.Equal(t, []int64{2, 3, 1}, ids(SortSessions(sessions, SortCreated, true)))
	assert.Equal(t, []int64{2, 3, 1}, ids(SortSessions(sessions, SortCustomer, true)))
	// 同値は元の順序を保つ
	assert.Equal(t, []int64{1, 3, 2}, ids(SortSessions(sessions, SortMessages, false)))
	assert.Equal(t, []int64{1, 2, 3}, ids(sessions), "元のスライスは変更しない")
}

func TestComputeStats(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	sessions := []model.ChatSession{
		{ID: 1, MessageCount: 3, UpdatedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)},
		{ID: 2, MessageCount: 4, UpdatedAt: time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)},
		{ID: 3, MessageCount: 0, UpdatedAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)},
	}

	st := ComputeStats(sessions, now)
	assert.Equal(t, Stats{TotalSessions: 3, ActiveToday: 2, TotalMessages: 7}, st)
	assert.Equal(t, Stats{}, ComputeStats(nil, now))
}

func TestFormatRelative(t *testing.T) {
	now := baseTime
	assert.Equal(t, "Just now", FormatRelative(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", FormatRelative(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", FormatRelative(now.Add(-3*time.Hour-10*time.Minute), now))
	assert.Equal(t, "2026-03-07", FormatRelative(now.Add(-3*24*time.Hour), now))
}
