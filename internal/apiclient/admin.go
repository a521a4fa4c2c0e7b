package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/guestdesk/internal/model"
)

// 管理画面向けのAPI。権限はバックエンドが判定する。

// orderStatuses はバックエンドが受け付ける注文ステータスのコードと表示名。
var orderStatuses = map[string]string{
	"P":  "Pending",
	"C":  "Confirmed",
	"PR": "Processing",
	"S":  "Shipped",
	"D":  "Delivered",
	"CA": "Cancelled",
	"R":  "Refunded",
}

// OrderStatusCodes は注文ステータスのコードを昇順で返す。
func OrderStatusCodes() []string {
	codes := make([]string, 0, len(orderStatuses))
	for code := range orderStatuses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseOrderStatus はコード（"PR"）または表示名（"processing"）をコードに変換する。
// 大文字小文字は区別しない。
func ParseOrderStatus(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, ok := orderStatuses[strings.ToUpper(s)]; ok {
		return strings.ToUpper(s), nil
	}
	for code, label := range orderStatuses {
		if strings.EqualFold(label, s) {
			return code, nil
		}
	}
	return "", model.NewValidationError("status", fmt.Sprintf("must be one of %s", strings.Join(OrderStatusCodes(), ", ")))
}

// ListAllOrders は全利用客の注文を取得する。
func (c *Client) ListAllOrders(ctx context.Context) ([]model.Order, error) {
	return getList[model.Order](ctx, c, "/admin/orders/")
}

// UpdateOrderStatus は注文のステータスを変更し、更新後の注文を返す。
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (model.Order, error) {
	code, err := ParseOrderStatus(status)
	if err != nil {
		return model.Order{}, err
	}
	body := map[string]string{"status": code}
	return requestOne[model.Order](ctx, c, http.MethodPatch, fmt.Sprintf("/orders/%d/status/", orderID), body)
}

// --- カテゴリ ---

// CategoryInput はカテゴリの作成・更新内容。
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in CategoryInput) normalize() (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, model.NewValidationError("name", "required")
	}
	return in, nil
}

// GetCategory はカテゴリを1件取得する。
func (c *Client) GetCategory(ctx context.Context, id int64) (model.Category, error) {
	return getOne[model.Category](ctx, c, fmt.Sprintf("/categories/%d/", id))
}

// CreateCategory はカテゴリを作成する。
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (model.Category, error) {
	in, err := in.normalize()
	if err != nil {
		return model.Category{}, err
	}
	return requestOne[model.Category](ctx, c, http.MethodPost, "/categories/", in)
}

// UpdateCategory はカテゴリを置き換える。
func (c *Client) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (model.Category, error) {
	in, err := in.normalize()
	if err != nil {
		return model.Category{}, err
	}
	return requestOne[model.Category](ctx, c, http.MethodPut, fmt.Sprintf("/categories/%d/", id), in)
}

// DeleteCategory はカテゴリを削除する。
func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/categories/%d/", id), nil, nil, nil)
}

// --- 商品 ---

// ImageUpload は商品画像のアップロード内容。
type ImageUpload struct {
	FileName string
	Content  io.Reader
}

// ProductInput は商品の作成・更新内容。
// 商品APIはmultipart/form-dataのみ受け付けるため、フォームとして送信する。
type ProductInput struct {
	Name        string
	Description string
	Cost        string
	Price       string
	Quantity    int
	IsActive    bool
	CategoryIDs []int64
	Image       *ImageUpload
}

// ProductInputFrom は既存の商品から更新用の入力を組み立てる。画像は含まない。
func ProductInputFrom(p model.Product) ProductInput {
	in := ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Cost:        string(p.Cost),
		Price:       string(p.Price),
		Quantity:    p.Quantity,
		IsActive:    p.IsActive,
	}
	for _, ref := range p.Categories {
		in.CategoryIDs = append(in.CategoryIDs, ref.ID)
	}
	return in
}

func parseAmount(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, model.NewValidationError(field, "must be a number")
	}
	if d.IsNegative() {
		return decimal.Zero, model.NewValidationError(field, "must not be negative")
	}
	return d, nil
}

// form は入力を検証し、送信するフォームの値を返す。
func (in ProductInput) form() (map[string][]string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, model.NewValidationError("name", "required")
	}
	cost, err := parseAmount("cost", in.Cost)
	if err != nil {
		return nil, err
	}
	price, err := parseAmount("price", in.Price)
	if err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, model.NewValidationError("quantity", "must not be negative")
	}

	fields := map[string][]string{
		"name":        {name},
		"description": {strings.TrimSpace(in.Description)},
		"cost":        {cost.StringFixed(2)},
		"price":       {price.StringFixed(2)},
		"quantity":    {strconv.Itoa(in.Quantity)},
		"is_active":   {strconv.FormatBool(in.IsActive)},
	}
	for _, id := range in.CategoryIDs {
		fields["category_ids"] = append(fields["category_ids"], strconv.FormatInt(id, 10))
	}
	return fields, nil
}

// sendForm はmultipart/form-dataでリクエストを送信する。
func (c *Client) sendForm(ctx context.Context, method, path string, fields map[string][]string, image *ImageUpload) (*response, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range fields[k] {
			if err := mw.WriteField(k, v); err != nil {
				return nil, model.NewClientError(fmt.Errorf("フォームの作成に失敗しました: %w", err))
			}
		}
	}
	if image != nil {
		part, err := mw.CreateFormFile("image", filepath.Base(image.FileName))
		if err != nil {
			return nil, model.NewClientError(fmt.Errorf("画像パートの作成に失敗しました: %w", err))
		}
		if _, err := io.Copy(part, image.Content); err != nil {
			return nil, model.NewClientError(fmt.Errorf("画像の読み込みに失敗しました: %w", err))
		}
	}
	if err := mw.Close(); err != nil {
		return nil, model.NewClientError(fmt.Errorf("フォームの作成に失敗しました: %w", err))
	}
	return c.send(ctx, method, path, &buf, mw.FormDataContentType(), nil)
}

func (c *Client) saveProduct(ctx context.Context, method, path string, in ProductInput) (model.Product, error) {
	fields, err := in.form()
	if err != nil {
		return model.Product{}, err
	}
	resp, err := c.sendForm(ctx, method, path, fields, in.Image)
	if err != nil {
		return model.Product{}, err
	}
	return decodeOne[model.Product](resp)
}

// GetProduct は商品を1件取得する。
func (c *Client) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	return getOne[model.Product](ctx, c, fmt.Sprintf("/products/%d/", id))
}

// CreateProduct は商品を作成する。商品コードはバックエンドが採番する。
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (model.Product, error) {
	return c.saveProduct(ctx, http.MethodPost, "/products/", in)
}

// UpdateProduct は商品を置き換える。
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (model.Product, error) {
	return c.saveProduct(ctx, http.MethodPut, fmt.Sprintf("/products/%d/", id), in)
}

// ReplenishProduct は在庫数を置き換えずにquantity個加算する。
func (c *Client) ReplenishProduct(ctx context.Context, id int64, quantity int) (model.Product, error) {
	if quantity <= 0 {
		return model.Product{}, model.NewValidationError("replenish_quantity", "must be positive")
	}
	fields := map[string][]string{"replenish_quantity": {strconv.Itoa(quantity)}}
	resp, err := c.sendForm(ctx, http.MethodPatch, fmt.Sprintf("/products/%d/", id), fields, nil)
	if err != nil {
		return model.Product{}, err
	}
	return decodeOne[model.Product](resp)
}

// DeleteProduct は商品を削除する。
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/products/%d/", id), nil, nil, nil)
}

// --- フィードバック ---

// ListFeedback は全フィードバックを取得する。
func (c *Client) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	return getList[model.Feedback](ctx, c, "/admin/feedback/")
}

// UpdateFeedback はフィードバックの氏名と本文を置き換える。
func (c *Client) UpdateFeedback(ctx context.Context, id int64, fb model.Feedback) (model.Feedback, error) {
	body, err := feedbackBody(fb)
	if err != nil {
		return model.Feedback{}, err
	}
	return requestOne[model.Feedback](ctx, c, http.MethodPut, fmt.Sprintf("/feedback/%d/", id), body)
}

// DeleteFeedback はフィードバックを削除する。
func (c *Client) DeleteFeedback(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/feedback/%d/", id), nil, nil, nil)
}
