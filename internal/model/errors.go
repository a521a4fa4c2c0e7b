// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind はエラーの発生箇所による分類を表す。
type ErrorKind string

const (
	// KindServer はレスポンスを受信したが2xx以外だったことを示す。
	KindServer ErrorKind = "server"
	// KindNetwork はレスポンスを受信できなかったことを示す（タイムアウトを含む）。
	KindNetwork ErrorKind = "network"
	// KindClient はリクエストがクライアントから送信されなかったことを示す。
	KindClient ErrorKind = "client"
	// KindLocal はネットワーク呼び出し前のローカル検証で拒否されたことを示す。
	KindLocal ErrorKind = "local"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Kind     ErrorKind // エラー種別
	Code     string    // エラーコード
	Message  string    // エラーメッセージ
	Category string    // カテゴリ: auth, validation, cart, chat, network, system
	Action   string    // ユーザー向け対処方法
	Status   int       // HTTPステータス（レスポンスがない場合は0）
	RawBody  []byte    // サーバーが返したボディ
	Err      error     // 原因エラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.ErrEmptyCart) のように定義済みエラーと比較できる。
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// FieldErrors はDjango形式のバリデーションエラーボディ（{"field": ["msg"]}）を
// "field: msg" 形式の文字列に平坦化する。フィールド名の昇順で返す。
func (e *APIError) FieldErrors() []string {
	if len(e.RawBody) == 0 {
		return nil
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(e.RawBody, &body); err != nil {
		return nil
	}

	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		var list []string
		if err := json.Unmarshal(body[k], &list); err == nil {
			out = append(out, fmt.Sprintf("%s: %s", k, strings.Join(list, ", ")))
			continue
		}
		var single string
		if err := json.Unmarshal(body[k], &single); err == nil {
			out = append(out, fmt.Sprintf("%s: %s", k, single))
		}
	}
	return out
}

// 定義済みエラーコード
const (
	ErrCodeServer           = "SERVER_ERROR"
	ErrCodeNetwork          = "NETWORK_ERROR"
	ErrCodeClient           = "CLIENT_ERROR"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeEmptyCart        = "EMPTY_CART"
	ErrCodeBusy             = "BUSY"
)

// errors.Is 比較用の定義済みエラー。
var (
	ErrUnauthorized     = &APIError{Code: ErrCodeUnauthorized}
	ErrNotAuthenticated = &APIError{Code: ErrCodeNotAuthenticated}
	ErrForbidden        = &APIError{Code: ErrCodeForbidden}
	ErrValidation       = &APIError{Code: ErrCodeValidation}
	ErrEmptyCart        = &APIError{Code: ErrCodeEmptyCart}
	ErrBusy             = &APIError{Code: ErrCodeBusy}
	ErrNetwork          = &APIError{Code: ErrCodeNetwork}
	ErrServer           = &APIError{Code: ErrCodeServer}
)

// defaultServerMessage はサーバーがメッセージを返さなかった場合の文言。
const defaultServerMessage = "An error occurred"

// NewServerError は2xx以外のレスポンスからエラーを生成する。
// メッセージはボディの message → error → detail の順に採用し、
// いずれもなければ汎用メッセージを使う。
func NewServerError(status int, body []byte) *APIError {
	return &APIError{
		Kind:     KindServer,
		Code:     ErrCodeServer,
		Message:  serverMessage(body),
		Category: "system",
		Action:   "入力内容を確認し、もう一度お試しください。",
		Status:   status,
		RawBody:  body,
	}
}

// NewInvalidResponseError は2xxだがボディを解釈できなかったレスポンスのエラーを生成する。
// プロキシのHTMLページや想定外の形のJSONが該当する。
func NewInvalidResponseError(status int, body []byte, cause error) *APIError {
	return &APIError{
		Kind:     KindServer,
		Code:     ErrCodeServer,
		Message:  "Invalid response from server",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
		RawBody:  body,
		Err:      cause,
	}
}

// NewUnauthorizedError は401レスポンスのエラーを生成する。
func NewUnauthorizedError(body []byte) *APIError {
	return &APIError{
		Kind:     KindServer,
		Code:     ErrCodeUnauthorized,
		Message:  "Session expired. Please login again.",
		Category: "auth",
		Action:   "ログインし直してください。",
		Status:   401,
		RawBody:  body,
	}
}

// NewNetworkError はレスポンスを受信できなかった場合のエラーを生成する。
func NewNetworkError(cause error) *APIError {
	return &APIError{
		Kind:     KindNetwork,
		Code:     ErrCodeNetwork,
		Message:  "Network error - please check your connection",
		Category: "network",
		Action:   "接続を確認してから再度お試しください。",
		Err:      cause,
	}
}

// NewClientError はリクエストを送信する前に失敗した場合のエラーを生成する。
func NewClientError(cause error) *APIError {
	msg := "An unexpected error occurred"
	if cause != nil && cause.Error() != "" {
		msg = cause.Error()
	}
	return &APIError{
		Kind:     KindClient,
		Code:     ErrCodeClient,
		Message:  msg,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      cause,
	}
}

// NewValidationError はローカルの入力検証エラーを生成する。
func NewValidationError(field, reason string) *APIError {
	return &APIError{
		Kind:     KindLocal,
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("%s: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewNotAuthenticatedError は未ログイン状態で操作が拒否された場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Kind:     KindLocal,
		Code:     ErrCodeNotAuthenticated,
		Message:  "Please login to continue",
		Category: "auth",
		Action:   "ログインしてから操作してください。",
	}
}

// NewForbiddenError はスタッフ専用の操作を利用客が呼び出した場合のエラーを生成する。
func NewForbiddenError(op string) *APIError {
	return &APIError{
		Kind:     KindLocal,
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("staff only: %s", op),
		Category: "auth",
		Action:   "スタッフアカウントでログインしてください。",
	}
}

// NewEmptyCartError は空のカートで注文しようとした場合のエラーを生成する。
func NewEmptyCartError() *APIError {
	return &APIError{
		Kind:     KindLocal,
		Code:     ErrCodeEmptyCart,
		Message:  "Your cart is empty",
		Category: "cart",
		Action:   "商品をカートに追加してから注文してください。",
	}
}

// NewBusyError は同じ操作が処理中の場合のエラーを生成する。
func NewBusyError(op string) *APIError {
	return &APIError{
		Kind:     KindLocal,
		Code:     ErrCodeBusy,
		Message:  fmt.Sprintf("operation already in progress: %s", op),
		Category: "system",
		Action:   "処理が完了するまでお待ちください。",
	}
}

// serverMessage はエラーボディからユーザー向けメッセージを取り出す。
func serverMessage(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return defaultServerMessage
	}
	for _, key := range []string{"message", "error", "detail"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
	}
	return defaultServerMessage
}
