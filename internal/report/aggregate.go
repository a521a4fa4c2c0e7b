// Package report は商品スナップショットから在庫・利益の集計を導出する。
// 集計は純粋関数で、I/Oを行わない。
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/guestdesk/internal/model"
)

// TopN はランキングの最大件数。
const TopN = 5

var hundred = decimal.NewFromInt(100)

// StockLevels は在庫区分ごとの商品数。3つの合計は商品数に一致する。
type StockLevels struct {
	OutOfStock int `json:"out_of_stock"`
	LowStock   int `json:"low_stock"`
	InStock    int `json:"in_stock"`
}

// CategoryBreakdown はカテゴリごとの集計。
type CategoryBreakdown struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	ProductCount  int             `json:"product_count"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TotalQuantity int             `json:"total_quantity"`
}

// RankedProduct はランキングの1件。
type RankedProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Cost        decimal.Decimal `json:"cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
	UnitProfit  decimal.Decimal `json:"unit_profit"`
	TotalProfit decimal.Decimal `json:"total_profit"`
}

// Summary は集計結果。
type Summary struct {
	TotalProducts        int                 `json:"total_products"`
	ActiveProducts       int                 `json:"active_products"`
	InactiveProducts     int                 `json:"inactive_products"`
	TotalInventoryValue  decimal.Decimal     `json:"total_inventory_value"`
	TotalRetailValue     decimal.Decimal     `json:"total_retail_value"`
	TotalQuantity        int                 `json:"total_quantity"`
	TotalPotentialProfit decimal.Decimal     `json:"total_potential_profit"`
	AveragePrice         decimal.Decimal     `json:"average_price"`
	AverageCost          decimal.Decimal     `json:"average_cost"`
	AverageProfitMargin  decimal.Decimal     `json:"average_profit_margin"`
	StockLevels          StockLevels         `json:"stock_levels"`
	Categories           []CategoryBreakdown `json:"categories"`
	TopByValue           []RankedProduct     `json:"top_by_value"`
	TopByQuantity        []RankedProduct     `json:"top_by_quantity"`
	TopByProfit          []RankedProduct     `json:"top_by_profit"`
	Warnings             []ParseWarning      `json:"warnings,omitempty"`
}

// Aggregate は商品とカテゴリのスナップショットから集計値を求める。
// 同じ入力に対して常に同じ結果を返し、入力を変更しない。
// 負の在庫数は0個として金額・数量に算入する。
func Aggregate(products []model.Product, categories []model.Category) Summary {
	p := &parser{}
	ranked := make([]RankedProduct, len(products))
	for i, prod := range products {
		price := p.money(prod.ID, "price", prod.Price)
		cost := p.money(prod.ID, "cost", prod.Cost)
		qty := decimal.NewFromInt(int64(units(prod.Quantity)))
		ranked[i] = RankedProduct{
			ID:          prod.ID,
			Name:        prod.Name,
			ProductCode: prod.ProductCode,
			Quantity:    prod.Quantity,
			Price:       price,
			Cost:        cost,
			TotalValue:  price.Mul(qty),
			UnitProfit:  price.Sub(cost),
			TotalProfit: price.Sub(cost).Mul(qty),
		}
	}

	s := Summary{
		TotalProducts:        len(products),
		TotalInventoryValue:  decimal.Zero,
		TotalRetailValue:     decimal.Zero,
		TotalPotentialProfit: decimal.Zero,
		AveragePrice:         decimal.Zero,
		AverageCost:          decimal.Zero,
		AverageProfitMargin:  decimal.Zero,
		Categories:           []CategoryBreakdown{},
		Warnings:             p.warnings,
	}

	sumPrice, sumCost := decimal.Zero, decimal.Zero
	for i, prod := range products {
		r := ranked[i]
		if prod.IsActive {
			s.ActiveProducts++
		} else {
			s.InactiveProducts++
		}
		qty := decimal.NewFromInt(int64(units(prod.Quantity)))
		s.TotalInventoryValue = s.TotalInventoryValue.Add(r.Cost.Mul(qty))
		s.TotalRetailValue = s.TotalRetailValue.Add(r.TotalValue)
		s.TotalPotentialProfit = s.TotalPotentialProfit.Add(r.TotalProfit)
		s.TotalQuantity += units(prod.Quantity)
		sumPrice = sumPrice.Add(r.Price)
		sumCost = sumCost.Add(r.Cost)

		switch StockLevelOf(prod.Quantity) {
		case StockOut:
			s.StockLevels.OutOfStock++
		case StockLow:
			s.StockLevels.LowStock++
		default:
			s.StockLevels.InStock++
		}
	}

	if n := len(products); n > 0 {
		count := decimal.NewFromInt(int64(n))
		s.AveragePrice = sumPrice.Div(count)
		s.AverageCost = sumCost.Div(count)
	}
	if s.AveragePrice.IsPositive() {
		s.AverageProfitMargin = s.AveragePrice.Sub(s.AverageCost).Div(s.AveragePrice).Mul(hundred)
	}

	for _, c := range categories {
		cb := CategoryBreakdown{ID: c.ID, Name: c.Name, TotalValue: decimal.Zero}
		for i, prod := range products {
			if !prod.HasCategory(c.ID) {
				continue
			}
			cb.ProductCount++
			cb.TotalValue = cb.TotalValue.Add(ranked[i].TotalValue)
			cb.TotalQuantity += units(prod.Quantity)
		}
		if cb.ProductCount > 0 {
			s.Categories = append(s.Categories, cb)
		}
	}

	s.TopByValue = topN(ranked, func(a, b RankedProduct) bool { return a.TotalValue.GreaterThan(b.TotalValue) })
	s.TopByQuantity = topN(ranked, func(a, b RankedProduct) bool { return a.Quantity > b.Quantity })
	s.TopByProfit = topN(ranked, func(a, b RankedProduct) bool { return a.TotalProfit.GreaterThan(b.TotalProfit) })
	return s
}

// units は金額・数量の計算に使う在庫数。負の値は0とする。
func units(quantity int) int {
	if quantity < 0 {
		return 0
	}
	return quantity
}

// topN は降順の安定ソートで上位TopN件を返す。
func topN(ranked []RankedProduct, greater func(a, b RankedProduct) bool) []RankedProduct {
	out := append([]RankedProduct(nil), ranked...)
	sort.SliceStable(out, func(i, j int) bool { return greater(out[i], out[j]) })
	if len(out) > TopN {
		out = out[:TopN]
	}
	if out == nil {
		out = []RankedProduct{}
	}
	return out
}
