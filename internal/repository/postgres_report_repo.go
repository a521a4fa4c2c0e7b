package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/guestdesk/internal/report"
)

// PostgresReportRepo はPostgreSQLを使用したレポート保存リポジトリ。
type PostgresReportRepo struct {
	db *sql.DB
}

// NewPostgresReportRepo はPostgresReportRepoを生成する。
func NewPostgresReportRepo(db *sql.DB) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

// Save はレポートの集計結果を保存し、採番されたIDを返す。
// 商品一覧は保存せず、絞り込み条件と集計結果のみを保存する。
func (r *PostgresReportRepo) Save(ctx context.Context, rep report.Report) (int64, error) {
	filter, err := json.Marshal(rep.Filter)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report filter: %w", err)
	}
	summary, err := json.Marshal(rep.Summary)
	if err != nil {
		return 0, fmt.Errorf("failed to encode report summary: %w", err)
	}

	s := rep.Summary
	var id int64
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO report_archives (
		   generated_at, filter, total_products, active_products, total_quantity,
		   inventory_value, retail_value, potential_profit, average_margin,
		   out_of_stock, low_stock, in_stock, warning_count, summary)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		rep.GeneratedAt, filter, s.TotalProducts, s.ActiveProducts, s.TotalQuantity,
		s.TotalInventoryValue.Round(2), s.TotalRetailValue.Round(2), s.TotalPotentialProfit.Round(2),
		s.AverageProfitMargin.Round(2),
		s.StockLevels.OutOfStock, s.StockLevels.LowStock, s.StockLevels.InStock, len(s.Warnings), summary,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save report: %w", err)
	}
	return id, nil
}

const reportColumns = `id, generated_at, filter, total_products, active_products, total_quantity,
	inventory_value, retail_value, potential_profit, average_margin,
	out_of_stock, low_stock, in_stock, warning_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReportArchive(row rowScanner, extra ...any) (*ReportArchive, error) {
	a := &ReportArchive{}
	var filter []byte
	dest := []any{
		&a.ID, &a.GeneratedAt, &filter, &a.TotalProducts, &a.ActiveProducts, &a.TotalQuantity,
		&a.InventoryValue, &a.RetailValue, &a.PotentialProfit, &a.AverageMargin,
		&a.OutOfStock, &a.LowStock, &a.InStock, &a.WarningCount, &a.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.Filter = json.RawMessage(filter)
	return a, nil
}

// ListRecent は生成日時の新しい順にlimit件を返す。
func (r *PostgresReportRepo) ListRecent(ctx context.Context, limit int) ([]*ReportArchive, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reportColumns+`
		 FROM report_archives
		 ORDER BY generated_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var archives []*ReportArchive
	for rows.Next() {
		a, err := scanReportArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		archives = append(archives, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return archives, nil
}

// FindByID は指定IDの保存結果を集計結果の全体と共に取得する。
// 見つからない場合はnilを返す。
func (r *PostgresReportRepo) FindByID(ctx context.Context, id int64) (*ReportArchive, error) {
	var summary []byte
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+`, summary
		 FROM report_archives
		 WHERE id = $1`,
		id,
	)
	a, err := scanReportArchive(row, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find report: %w", err)
	}
	a.Summary = json.RawMessage(summary)
	return a, nil
}

// compile-time interface check
var _ ReportRepository = (*PostgresReportRepo)(nil)
