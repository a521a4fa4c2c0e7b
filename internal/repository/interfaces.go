// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/report"
)

// IdentityRepository はログイン中のユーザー情報の永続化インターフェース。
// session.Persister として使用できる。
type IdentityRepository interface {
	// Load は保存済みのIdentityを取得する。保存されていない場合はnilを返す。
	Load(ctx context.Context) (*model.Identity, error)
	// Save はIdentityを保存する。既存の値は置き換える。
	Save(ctx context.Context, id model.Identity) error
	// Clear は保存済みのIdentityを削除する。
	Clear(ctx context.Context) error
}

// ReportRepository はレポート集計結果の保存インターフェース。
type ReportRepository interface {
	// Save はレポートの集計結果を保存し、採番されたIDを返す。
	Save(ctx context.Context, r report.Report) (int64, error)
	// ListRecent は生成日時の新しい順にlimit件を返す。
	ListRecent(ctx context.Context, limit int) ([]*ReportArchive, error)
	// FindByID は指定IDの保存結果を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*ReportArchive, error)
}

// ReportArchive は保存されたレポートの要約。
type ReportArchive struct {
	ID              int64           `json:"id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	Filter          json.RawMessage `json:"filter"`
	TotalProducts   int             `json:"total_products"`
	ActiveProducts  int             `json:"active_products"`
	TotalQuantity   int             `json:"total_quantity"`
	InventoryValue  decimal.Decimal `json:"inventory_value"`
	RetailValue     decimal.Decimal `json:"retail_value"`
	PotentialProfit decimal.Decimal `json:"potential_profit"`
	AverageMargin   decimal.Decimal `json:"average_margin"`
	OutOfStock      int             `json:"out_of_stock"`
	LowStock        int             `json:"low_stock"`
	InStock         int             `json:"in_stock"`
	WarningCount    int             `json:"warning_count"`
	Summary         json.RawMessage `json:"summary,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}
