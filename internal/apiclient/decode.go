package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

var errNoArray = errors.New("配列が含まれていません")

// parseList は素の配列、{"data": [...]}、{"results": [...]} のいずれかを読む。
func parseList[T any](raw []byte) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []T{}, nil
	}

	if raw[0] == '[' {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var envelope struct {
		Data    json.RawMessage `json:"data"`
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	inner := envelope.Data
	if len(inner) == 0 {
		inner = envelope.Results
	}
	inner = bytes.TrimSpace(inner)
	if len(inner) == 0 || inner[0] != '[' {
		return nil, errNoArray
	}
	return parseList[T](inner)
}

// parseOne は単体リソースを読む。{"data": {...}} で包まれている場合は中身を取り出す。
func parseOne[T any](raw []byte) (T, error) {
	raw = bytes.TrimSpace(raw)

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &envelope); err == nil {
			inner := bytes.TrimSpace(envelope.Data)
			if len(inner) > 0 && inner[0] == '{' {
				raw = inner
			}
		}
	}

	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}

// decodeList はリスト系エンドポイントのレスポンスをデコードする。
// 解釈できない場合はステータスと生ボディを持つ *model.APIError を返す。
func decodeList[T any](resp *response) ([]T, error) {
	items, err := parseList[T](resp.body)
	if err != nil {
		return nil, resp.invalid(err)
	}
	return items, nil
}

// decodeOne は単体リソースのレスポンスをデコードする。
func decodeOne[T any](resp *response) (T, error) {
	v, err := parseOne[T](resp.body)
	if err != nil {
		var zero T
		return zero, resp.invalid(err)
	}
	return v, nil
}

// getList はGETでリストを取得してデコードする。
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil, "application/json", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp)
}

// requestOne はJSONボディ付きのリクエストを送り、単体リソースをデコードする。
func requestOne[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	resp, err := c.sendJSON(ctx, method, path, body, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeOne[T](resp)
}

// getOne はGETで単体リソースを取得する。
func getOne[T any](ctx context.Context, c *Client, path string) (T, error) {
	return requestOne[T](ctx, c, http.MethodGet, path, nil)
}
