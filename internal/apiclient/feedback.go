package apiclient

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/guestdesk/internal/model"
)

type feedbackRequest struct {
	FullName string `json:"full_name"`
	Message  string `json:"message"`
}

// feedbackBody は氏名と本文を検証して送信用のボディを返す。
func feedbackBody(fb model.Feedback) (feedbackRequest, error) {
	body := feedbackRequest{
		FullName: strings.TrimSpace(fb.FullName),
		Message:  strings.TrimSpace(fb.Message),
	}
	if body.FullName == "" {
		return body, model.NewValidationError("full_name", "required")
	}
	if body.Message == "" {
		return body, model.NewValidationError("message", "required")
	}
	return body, nil
}

// SubmitFeedback はフィードバックを送信する。
// 氏名と本文は送信前にローカルで検証する。
func (c *Client) SubmitFeedback(ctx context.Context, fb model.Feedback) error {
	body, err := feedbackBody(fb)
	if err != nil {
		return err
	}
	return c.Do(ctx, http.MethodPost, "/feedback/", body, nil, nil)
}
