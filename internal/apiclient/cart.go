package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/guestdesk/internal/model"
)

type addCartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UserID    int64 `json:"user_id"`
}

type updateCartItemRequest struct {
	Quantity int   `json:"quantity"`
	UserID   int64 `json:"user_id"`
}

// GetCart はユーザーのカートを取得する。
func (c *Client) GetCart(ctx context.Context, userID int64) (model.Cart, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))

	return getOne[model.Cart](ctx, c, "/cart/?"+q.Encode())
}

// AddCartItem はカートに商品を追加する。
// レスポンスのカート内容は信用せず、呼び出し側で再取得する。
func (c *Client) AddCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	body := addCartItemRequest{ProductID: productID, Quantity: quantity, UserID: userID}
	return c.Do(ctx, http.MethodPost, "/cart/items/", body, nil, nil)
}

// UpdateCartItem はカート明細の数量を変更する。
func (c *Client) UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) error {
	body := updateCartItemRequest{Quantity: quantity, UserID: userID}
	return c.Do(ctx, http.MethodPut, fmt.Sprintf("/cart/items/%d/", itemID), body, nil, nil)
}

// RemoveCartItem はカート明細を削除する。
func (c *Client) RemoveCartItem(ctx context.Context, itemID int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/cart/items/%d/", itemID), nil, nil, nil)
}

// ClearCart はカートを空にする。
func (c *Client) ClearCart(ctx context.Context) error {
	return c.Do(ctx, http.MethodDelete, "/cart/clear/", nil, nil, nil)
}
