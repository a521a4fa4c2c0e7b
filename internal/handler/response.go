// Package handler はローカルのステータスサーバーのHTTPハンドラーを提供する。
//
// ステータスサーバーは常駐モード（guestdesk serve）でのみ起動し、
// セッション状態・カート・チャット同期の現在値を読み取り専用で公開する。
package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
