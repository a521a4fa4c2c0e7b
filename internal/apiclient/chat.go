package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/guestdesk/internal/model"
)

// CreateSessionRequest はチャットセッション作成のリクエスト。
type CreateSessionRequest struct {
	SessionID string `json:"session_id"`
	Customer  int64  `json:"customer"`
	AdminUser *int64 `json:"admin_user"`
}

type sendMessageRequest struct {
	Sender  model.Sender `json:"sender"`
	Message string       `json:"message"`
}

// ListChatSessions はチャットセッション一覧を取得する。
func (c *Client) ListChatSessions(ctx context.Context) ([]model.ChatSession, error) {
	return getList[model.ChatSession](ctx, c, "/chat/sessions/")
}

// ListMessages はセッションのメッセージ一覧を取得する。
func (c *Client) ListMessages(ctx context.Context, sessionID int64) ([]model.Message, error) {
	return getList[model.Message](ctx, c, fmt.Sprintf("/chat/sessions/%d/messages/", sessionID))
}

// CreateChatSession はチャットセッションを作成する。
func (c *Client) CreateChatSession(ctx context.Context, req CreateSessionRequest) (model.ChatSession, error) {
	return requestOne[model.ChatSession](ctx, c, http.MethodPost, "/chat/sessions/", req)
}

// SendMessage はセッションにメッセージを送信し、作成されたメッセージを返す。
func (c *Client) SendMessage(ctx context.Context, sessionID int64, sender model.Sender, body string) (model.Message, error) {
	req := sendMessageRequest{Sender: sender, Message: body}
	return requestOne[model.Message](ctx, c, http.MethodPost, fmt.Sprintf("/chat/sessions/%d/messages/", sessionID), req)
}

// DeleteChatSession はチャットセッションを削除する。
func (c *Client) DeleteChatSession(ctx context.Context, sessionID int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/chat/sessions/%d/", sessionID), nil, nil, nil)
}
