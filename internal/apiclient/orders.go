package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/guestdesk/internal/model"
)

// DefaultOrderNotes は注文メモが指定されなかった場合の値。
const DefaultOrderNotes = "Order from hotel website"

type createOrderRequest struct {
	Notes  string `json:"notes"`
	UserID int64  `json:"user_id"`
}

// CreateOrder は現在のカートから注文を作成する。
func (c *Client) CreateOrder(ctx context.Context, userID int64, notes string) (model.Order, error) {
	if notes == "" {
		notes = DefaultOrderNotes
	}
	body := createOrderRequest{Notes: notes, UserID: userID}
	return requestOne[model.Order](ctx, c, http.MethodPost, "/orders/", body)
}

// ListOrders は注文履歴を取得する。
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	return getList[model.Order](ctx, c, "/orders/")
}

// GetOrder は注文詳細を取得する。
func (c *Client) GetOrder(ctx context.Context, orderID int64) (model.Order, error) {
	return getOne[model.Order](ctx, c, fmt.Sprintf("/orders/%d/", orderID))
}
