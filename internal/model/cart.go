package model

import "time"

// CartItem はカート内の1商品を表す。
type CartItem struct {
	ID        int64     `json:"id"`
	Product   Product   `json:"product"`
	Quantity  int       `json:"quantity"`
	Subtotal  Money     `json:"subtotal"`
	CreatedAt time.Time `json:"created_at"`
}

// Cart はユーザーのカートを表す。
// 合計金額と合計数量は常にサーバーの値を使い、クライアントでは計算しない。
type Cart struct {
	ID          int64      `json:"id"`
	Items       []CartItem `json:"cart_items"`
	TotalAmount Money      `json:"total_amount"`
	TotalItems  int        `json:"total_items"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsEmpty はカートが空かどうかを返す。
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// OrderItem は注文明細を表す。
type OrderItem struct {
	ID       int64   `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    Money   `json:"price"`
	Subtotal Money   `json:"subtotal"`
}

// Order はカートから作成された注文を表す。作成後は変更しない。
type Order struct {
	ID            int64       `json:"id"`
	OrderNumber   string      `json:"order_number"`
	Status        string      `json:"status"`
	StatusDisplay string      `json:"status_display,omitempty"`
	TotalAmount   Money       `json:"total_amount"`
	Notes         string      `json:"notes"`
	Items         []OrderItem `json:"order_items"`
	CreatedAt     time.Time   `json:"created_at"`
}
