package chat

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

var csvHeader = []string{"Session ID", "Customer", "Email", "Messages Count", "Created Date", "Last Updated"}

// ExportCSV はセッション一覧をCSVとして書き出す。
// 日付はlocのタイムゾーンで YYYY-MM-DD 形式にする。
func ExportCSV(w io.Writer, sessions []model.ChatSession, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}
	for _, s := range sessions {
		customer := s.Customer.Username
		if customer == "" {
			customer = "Unknown"
		}
		email := s.Customer.Email
		if email == "" {
			email = "No email"
		}
		row := []string{
			s.SessionID,
			customer,
			email,
			strconv.Itoa(s.MessageCount),
			s.CreatedAt.In(loc).Format("2006-01-02"),
			s.UpdatedAt.In(loc).Format("2006-01-02"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("CSV行の書き込みに失敗しました: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFileName はエクスポートファイル名を返す。
func ExportFileName(now time.Time) string {
	return "chat_sessions_" + now.Format("2006-01-02") + ".csv"
}
