package model

import "time"

// Role はログインユーザーの種別を表す。
type Role string

const (
	// RoleCustomer はホテル利用客。
	RoleCustomer Role = "customer"
	// RoleStaff はスタッフ（管理者）。
	RoleStaff Role = "staff"
)

// Identity はログイン後にクライアントが保持する認証済みユーザー情報を表す。
type Identity struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      Role      `json:"role"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsStaff はスタッフユーザーかどうかを返す。
func (i Identity) IsStaff() bool {
	return i.Role == RoleStaff
}

// DisplayName は表示用の名前を返す。
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Username != "":
		return i.Username
	default:
		return i.Email
	}
}

// Credentials はログインに使用する資格情報。
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserRef はチャットセッションなどが参照するユーザー。
// バックエンドはIDのみ、またはオブジェクトのどちらかを返す。
type UserRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
}
