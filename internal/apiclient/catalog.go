package apiclient

import (
	"context"

	"github.com/hitoshi/guestdesk/internal/model"
)

// ListRooms は客室一覧を取得する。
func (c *Client) ListRooms(ctx context.Context) ([]model.Room, error) {
	return getList[model.Room](ctx, c, "/rooms/")
}

// AvailableRooms は予約可能（未予約かつ有効）な客室のみを返す。
func (c *Client) AvailableRooms(ctx context.Context) ([]model.Room, error) {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return nil, err
	}
	return FilterAvailableRooms(rooms), nil
}

// FilterAvailableRooms は予約可能な客室を元の順序のまま抽出する。
func FilterAvailableRooms(rooms []model.Room) []model.Room {
	out := make([]model.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Available() {
			out = append(out, r)
		}
	}
	return out
}

// ListProducts は商品一覧を取得する。
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	return getList[model.Product](ctx, c, "/products/")
}

// ListCategories はカテゴリ一覧を取得する。
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	return getList[model.Category](ctx, c, "/categories/")
}
