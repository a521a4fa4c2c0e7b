package report

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/guestdesk/internal/model"
)

var (
	nonNumeric   = regexp.MustCompile(`[^0-9.\-]+`)
	numberPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseWarning は金額を完全には解釈できなかったことを表す。
// 集計は続行し、解釈できた値（または0）を使う。
type ParseWarning struct {
	ProductID int64  `json:"product_id"`
	Field     string `json:"field"`
	Raw       string `json:"raw"`
	Used      string `json:"used"`
}

// String は警告を1行で表す。
func (w ParseWarning) String() string {
	return fmt.Sprintf("product %d: %s %q を %s として扱いました", w.ProductID, w.Field, w.Raw, w.Used)
}

// ParseMoney はサーバーの金額表現を数値に変換する。
// 数字・小数点・マイナス以外の文字（通貨記号、桁区切り）を除いてから解釈する。
// 空文字列は0として正常に扱う。解釈できない部分が残った場合やJSONのオブジェクト・配列・真偽値の
// 字面だった場合はokがfalseになる。
func ParseMoney(raw model.Money) (d decimal.Decimal, ok bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" {
		return decimal.Zero, true
	}
	if s[0] == '{' || s[0] == '[' {
		// 数値を含むオブジェクトや配列を金額として拾わない
		return decimal.Zero, false
	}
	cleaned := nonNumeric.ReplaceAllString(s, "")
	prefix := numberPrefix.FindString(cleaned)
	if prefix == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSuffix(prefix, "."))
	if err != nil {
		return decimal.Zero, false
	}
	return d, prefix == cleaned
}

// parser は1回の集計で発生した警告を集める。
type parser struct {
	warnings []ParseWarning
}

func (p *parser) money(productID int64, field string, raw model.Money) decimal.Decimal {
	d, ok := ParseMoney(raw)
	if !ok {
		p.warnings = append(p.warnings, ParseWarning{
			ProductID: productID,
			Field:     field,
			Raw:       string(raw),
			Used:      d.String(),
		})
	}
	return d
}
