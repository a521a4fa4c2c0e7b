package model

import "time"

// Sender はメッセージの送信者種別を表す。
type Sender string

const (
	// SenderCustomer は利用客からのメッセージ。
	SenderCustomer Sender = "C"
	// SenderAdmin は管理者からのメッセージ。
	SenderAdmin Sender = "A"
)

// ChatSession はチャットセッションを表す。
type ChatSession struct {
	ID           int64     `json:"id"`
	SessionID    string    `json:"session_id"`
	Customer     UserRef   `json:"customer"`
	AdminUser    *UserRef  `json:"admin_user,omitempty"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message はチャットメッセージを表す。追記のみで変更されない。
type Message struct {
	ID        int64     `json:"id"`
	Sender    Sender    `json:"sender"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
