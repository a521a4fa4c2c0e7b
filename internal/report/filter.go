package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/guestdesk/internal/model"
)

// Status は有効・無効による絞り込み。
type Status string

const (
	StatusAll      Status = "all"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// StockLevel は在庫数の区分。
type StockLevel string

const (
	StockAll StockLevel = "all"
	StockOut StockLevel = "out-of-stock" // 0以下
	StockLow StockLevel = "low-stock"    // 1〜10
	StockIn  StockLevel = "in-stock"     // 11以上
)

const lowStockCeiling = 10

// PriceRange は価格帯による絞り込み。
type PriceRange string

const (
	PriceAll    PriceRange = "all"
	PriceUnder  PriceRange = "under-10000"
	PriceMiddle PriceRange = "10000-50000"
	PriceOver   PriceRange = "over-50000"
)

var (
	priceLow  = decimal.NewFromInt(10000)
	priceHigh = decimal.NewFromInt(50000)
)

// SortBy は商品一覧の並び順。name以外は降順。
type SortBy string

const (
	SortName     SortBy = "name"
	SortPrice    SortBy = "price"
	SortCost     SortBy = "cost"
	SortQuantity SortBy = "quantity"
	SortProfit   SortBy = "profit"
)

// Filter は集計前に適用する絞り込み条件。ゼロ値は全件を対象にする。
// 全ての条件はANDで組み合わされる。
type Filter struct {
	CategoryID int64      `json:"category_id,omitempty"`
	Status     Status     `json:"status,omitempty"`
	StockLevel StockLevel `json:"stock_level,omitempty"`
	PriceRange PriceRange `json:"price_range,omitempty"`
	Search     string     `json:"search,omitempty"`
	DateFrom   time.Time  `json:"date_from,omitempty"`
	DateTo     time.Time  `json:"date_to,omitempty"` // この日の終わりまでを含む
	SortBy     SortBy     `json:"sort_by,omitempty"`
}

// StockLevelOf は在庫数の区分を返す。負の在庫は在庫切れとして扱う。
func StockLevelOf(quantity int) StockLevel {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity <= lowStockCeiling:
		return StockLow
	default:
		return StockIn
	}
}

// ApplyFilter は条件に一致する商品を元の順序で返す。入力は変更しない。
func ApplyFilter(products []model.Product, f Filter) []model.Product {
	term := strings.ToLower(strings.TrimSpace(f.Search))
	var dateToEnd time.Time
	if !f.DateTo.IsZero() {
		y, m, d := f.DateTo.Date()
		dateToEnd = time.Date(y, m, d, 0, 0, 0, 0, f.DateTo.Location()).AddDate(0, 0, 1)
	}

	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if f.CategoryID != 0 && !p.HasCategory(f.CategoryID) {
			continue
		}
		if !matchesStatus(p, f.Status) {
			continue
		}
		if f.StockLevel != "" && f.StockLevel != StockAll && StockLevelOf(p.Quantity) != f.StockLevel {
			continue
		}
		if !matchesPrice(p, f.PriceRange) {
			continue
		}
		if !f.DateFrom.IsZero() && p.CreatedAt.Before(f.DateFrom) {
			continue
		}
		if !dateToEnd.IsZero() && !p.CreatedAt.Before(dateToEnd) {
			continue
		}
		if term != "" && !matchesSearch(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesStatus(p model.Product, s Status) bool {
	switch s {
	case StatusActive:
		return p.IsActive
	case StatusInactive:
		return !p.IsActive
	default:
		return true
	}
}

func matchesPrice(p model.Product, r PriceRange) bool {
	if r == "" || r == PriceAll {
		return true
	}
	price, _ := ParseMoney(p.Price)
	switch r {
	case PriceUnder:
		return price.LessThan(priceLow)
	case PriceMiddle:
		return !price.LessThan(priceLow) && !price.GreaterThan(priceHigh)
	case PriceOver:
		return price.GreaterThan(priceHigh)
	default:
		return true
	}
}

func matchesSearch(p model.Product, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.ProductCode), term) ||
		strings.Contains(strings.ToLower(p.Description), term)
}

// SortProducts は並び替えた新しいスライスを返す。同値は元の順序を保つ。
func SortProducts(products []model.Product, by SortBy) []model.Product {
	out := append([]model.Product(nil), products...)
	var less func(a, b model.Product) bool
	switch by {
	case SortPrice:
		less = func(a, b model.Product) bool { return moneyOf(a.Price).GreaterThan(moneyOf(b.Price)) }
	case SortCost:
		less = func(a, b model.Product) bool { return moneyOf(a.Cost).GreaterThan(moneyOf(b.Cost)) }
	case SortQuantity:
		less = func(a, b model.Product) bool { return a.Quantity > b.Quantity }
	case SortProfit:
		less = func(a, b model.Product) bool { return unitProfit(a).GreaterThan(unitProfit(b)) }
	case SortName, "":
		less = func(a, b model.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func moneyOf(m model.Money) decimal.Decimal {
	d, _ := ParseMoney(m)
	return d
}

func unitProfit(p model.Product) decimal.Decimal {
	return moneyOf(p.Price).Sub(moneyOf(p.Cost))
}

// ParseStatus は文字列をStatusに変換する。
func ParseStatus(s string) (Status, error) {
	switch v := Status(strings.ToLower(strings.TrimSpace(s))); v {
	case "", StatusAll:
		return StatusAll, nil
	case StatusActive, StatusInactive:
		return v, nil
	default:
		return "", fmt.Errorf("unknown status: %q", s)
	}
}

// ParseStockLevel は文字列をStockLevelに変換する。
func ParseStockLevel(s string) (StockLevel, error) {
	switch v := StockLevel(strings.ToLower(strings.TrimSpace(s))); v {
	case "", StockAll:
		return StockAll, nil
	case StockOut, StockLow, StockIn:
		return v, nil
	default:
		return "", fmt.Errorf("unknown stock level: %q", s)
	}
}

// ParsePriceRange は文字列をPriceRangeに変換する。
func ParsePriceRange(s string) (PriceRange, error) {
	switch v := PriceRange(strings.ToLower(strings.TrimSpace(s))); v {
	case "", PriceAll:
		return PriceAll, nil
	case PriceUnder, PriceMiddle, PriceOver:
		return v, nil
	default:
		return "", fmt.Errorf("unknown price range: %q", s)
	}
}

// ParseSortBy は文字列をSortByに変換する。
func ParseSortBy(s string) (SortBy, error) {
	switch v := SortBy(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return SortName, nil
	case SortName, SortPrice, SortCost, SortQuantity, SortProfit:
		return v, nil
	default:
		return "", fmt.Errorf("unknown sort key: %q", s)
	}
}

// ParseDate は YYYY-MM-DD 形式の日付をlocの0時として解釈する。空文字列はゼロ値。
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}
