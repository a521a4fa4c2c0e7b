package report

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/guestdesk/internal/model"
)

// Snapshot は1回の集計に使う商品とカテゴリの取得結果。集計中は変更しない。
type Snapshot struct {
	Products   []model.Product
	Categories []model.Category
	FetchedAt  time.Time
}

// Catalog は商品とカテゴリを取得する。
type Catalog interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// Fetch はカタログからスナップショットを取得する。
func Fetch(ctx context.Context, c Catalog, now time.Time) (Snapshot, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	categories, err := c.ListCategories(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return Snapshot{Products: products, Categories: categories, FetchedAt: now}, nil
}

// Report は絞り込み・並び替え後の商品一覧と集計結果。
type Report struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Filter      Filter          `json:"filter"`
	Products    []model.Product `json:"products"`
	Summary     Summary         `json:"summary"`
}

// Generate はスナップショットに絞り込みを適用して集計する。
func Generate(snap Snapshot, f Filter) Report {
	filtered := SortProducts(ApplyFilter(snap.Products, f), f.SortBy)
	return Report{
		GeneratedAt: snap.FetchedAt,
		Filter:      f,
		Products:    filtered,
		Summary:     Aggregate(filtered, snap.Categories),
	}
}
