package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Money はサーバーが返す金額の生の表現を保持する。
// バックエンドは文字列（"1200.00"）、数値、nullのいずれかを返すため、
// パースは利用側（レポート集計など）に任せる。
type Money string

// UnmarshalJSON は文字列・数値・nullを受け付ける。
// それ以外の値（trueやオブジェクト）は一覧全体のデコードを止めないよう
// JSONの字面のまま保持し、利用側のパースで不正な金額として扱わせる。
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = ""
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid money value: %w", err)
		}
		*m = Money(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(b, &n); err == nil {
			*m = Money(n.String())
			return nil
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, b); err != nil {
		return fmt.Errorf("invalid money value: %w", err)
	}
	*m = Money(compact.String())
	return nil
}

// UnmarshalJSON はIDのみ（数値または数値文字列）とオブジェクトの両方を受け付ける。
func (r *UserRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	switch b[0] {
	case '{':
		type plain UserRef
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("invalid user reference: %w", err)
		}
		*r = UserRef(p)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("invalid user reference: %w", err)
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user reference: %q", s)
		}
		*r = UserRef{ID: id}
		return nil
	default:
		var id int64
		if err := json.Unmarshal(b, &id); err != nil {
			return fmt.Errorf("invalid user reference: %w", err)
		}
		*r = UserRef{ID: id}
		return nil
	}
}

// UnmarshalJSON はカテゴリIDのみとオブジェクトの両方を受け付ける。
func (c *CategoryRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		type plain CategoryRef
		var p plain
		if err := json.Unmarshal(b, &p); err != nil {
			return fmt.Errorf("invalid category reference: %w", err)
		}
		*c = CategoryRef(p)
		return nil
	}
	var id int64
	if err := json.Unmarshal(b, &id); err != nil {
		return fmt.Errorf("invalid category reference: %w", err)
	}
	*c = CategoryRef{ID: id}
	return nil
}
