package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

// LoginUser はログインレスポンスに含まれるユーザー情報。
type LoginUser struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginResponse はログインAPIのレスポンス。
type LoginResponse struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Token      string    `json:"token"`
	UserType   string    `json:"user_type"`
	User       LoginUser `json:"user"`
	CustomerID *int64    `json:"customer_id"`
	ExpiresIn  int       `json:"expires_in"`
}

// Identity はレスポンスから保持用のIdentityを組み立てる。
func (r LoginResponse) Identity(now time.Time) model.Identity {
	role := model.RoleCustomer
	switch strings.ToLower(r.UserType) {
	case "staff", "admin":
		role = model.RoleStaff
	}

	id := model.Identity{
		ID:       r.User.ID,
		Email:    r.User.Email,
		Username: r.User.Username,
		Name:     strings.TrimSpace(r.User.FirstName + " " + r.User.LastName),
		Role:     role,
		Token:    r.Token,
	}
	if r.ExpiresIn > 0 {
		id.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return id
}

// Login は資格情報でログインする。
// トークンを含まないレスポンスはログイン失敗として扱う。
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*LoginResponse, error) {
	if strings.TrimSpace(creds.Email) == "" {
		return nil, model.NewValidationError("email", "required")
	}
	if creds.Password == "" {
		return nil, model.NewValidationError("password", "required")
	}

	resp, err := c.sendJSON(ctx, http.MethodPost, "/auth/login/", creds, nil)
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := json.Unmarshal(resp.body, &login); err != nil {
		return nil, resp.invalid(err)
	}
	if login.Token == "" {
		// success:falseとmessageで失敗を返すバックエンドがある
		return nil, model.NewServerError(resp.status, resp.body)
	}
	return &login, nil
}

// Logout はバックエンドのログアウトAPIを呼び出す。
func (c *Client) Logout(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/auth/logout/", nil, nil, nil)
}

// Authenticate はログインしてIdentityを返す。session.Authenticatorを満たす。
func (c *Client) Authenticate(ctx context.Context, creds model.Credentials) (model.Identity, error) {
	resp, err := c.Login(ctx, creds)
	if err != nil {
		return model.Identity{}, err
	}
	return resp.Identity(time.Now()), nil
}
