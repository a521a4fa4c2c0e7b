package model

import "time"

// Category は商品カテゴリを表す。
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CategoryRef は商品からカテゴリへの参照。
// 商品のcategoriesはIDの配列またはオブジェクトの配列のどちらでも届く。
type CategoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// Product は商品を表す。
type Product struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	ProductCode string        `json:"product_code"`
	Description string        `json:"description"`
	Cost        Money         `json:"cost"`
	Price       Money         `json:"price"`
	Quantity    int           `json:"quantity"`
	IsActive    bool          `json:"is_active"`
	Categories  []CategoryRef `json:"categories"`
	Image       string        `json:"image,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HasCategory は商品が指定カテゴリに属するかを返す。
func (p Product) HasCategory(categoryID int64) bool {
	for _, c := range p.Categories {
		if c.ID == categoryID {
			return true
		}
	}
	return false
}

// Room は客室を表す。
type Room struct {
	ID            int64     `json:"id"`
	RoomCode      string    `json:"room_code"`
	Category      string    `json:"categories"`
	Reserved      bool      `json:"reserved"`
	PricePerNight Money     `json:"price_per_night"`
	Capacity      int       `json:"capacity"`
	Description   string    `json:"description,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Available は予約可能な客室かどうかを返す。
func (r Room) Available() bool {
	return !r.Reserved && r.IsActive
}

// Feedback は利用客からのフィードバックを表す。
type Feedback struct {
	ID        int64     `json:"id,omitempty"`
	FullName  string    `json:"full_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
