// Package cart はカートと注文の更新操作を管理するコントローラーを提供する。
//
// カートの合計金額・合計数量は常にサーバーの値を正とし、
// 更新操作のたびに（失敗した場合も）カート全体を再取得する。
//
// 再取得が並行した場合は、最後に届いたレスポンスではなく最後に開始した取得の
// 結果を採用する。先に開始した取得の結果は、後から届いても破棄する。
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
)

// Backend はカート・注文APIの呼び出しを抽象化する。
type Backend interface {
	GetCart(ctx context.Context, userID int64) (model.Cart, error)
	AddCartItem(ctx context.Context, userID, productID int64, quantity int) error
	UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveCartItem(ctx context.Context, itemID int64) error
	ClearCart(ctx context.Context) error
	CreateOrder(ctx context.Context, userID int64, notes string) (model.Order, error)
}

// Identities はログイン中のユーザーを解決する。
type Identities interface {
	RequireAuthenticated() (model.Identity, error)
}

// Notifier は自動で消える通知を発行する。
type Notifier interface {
	Post(scope string, level notify.Level, message string, ttl time.Duration) uint64
}

// Op はカート操作の種別を表す。
type Op string

const (
	OpAdd      Op = "add"
	OpUpdate   Op = "update"
	OpRemove   Op = "remove"
	OpClear    Op = "clear"
	OpCheckout Op = "checkout"
)

// 通知のスコープ
const (
	ScopeCart     = "cart"
	ScopeCheckout = "checkout"
)

const sessionExpiredMessage = "Session expired. Please login again."

// failureMessages は操作ごとの失敗時の文言。
var failureMessages = map[Op]string{
	OpAdd:      "Failed to add item to cart. Please try again.",
	OpUpdate:   "Failed to update item quantity.",
	OpRemove:   "Failed to remove item from cart.",
	OpClear:    "Failed to clear cart.",
	OpCheckout: "Failed to create order. Please try again.",
}

// Options はControllerの生成オプション。
type Options struct {
	NoticeTTL         time.Duration
	CheckoutNoticeTTL time.Duration
	Metrics           metrics.MetricsCollector
	Logger            *slog.Logger
}

// Controller はカート操作を実行し、サーバーのカートのスナップショットを保持する。
// 異なる操作は並行に実行でき、同じ操作・同じ対象への重複実行のみを拒否する。
type Controller struct {
	backend     Backend
	ids         Identities
	notifier    Notifier
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	noticeTTL   time.Duration
	checkoutTTL time.Duration

	mu         sync.Mutex
	snapshot   model.Cart
	loaded     bool
	fetchSeq   uint64 // 開始したフェッチの通し番号
	appliedSeq uint64 // スナップショットに反映したフェッチの番号
	generation uint64 // Resetのたびに進む
	busy       map[string]struct{}
	open       bool
	lastOrder  *model.Order
}

// NewController は新しいControllerを生成する。
func NewController(backend Backend, ids Identities, notifier Notifier, opts Options) *Controller {
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = 3 * time.Second
	}
	if opts.CheckoutNoticeTTL <= 0 {
		opts.CheckoutNoticeTTL = 5 * time.Second
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Controller{
		backend:     backend,
		ids:         ids,
		notifier:    notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		noticeTTL:   opts.NoticeTTL,
		checkoutTTL: opts.CheckoutNoticeTTL,
		busy:        make(map[string]struct{}),
	}
}

func busyKey(op Op, target int64) string {
	return fmt.Sprintf("%s:%d", op, target)
}

// Busy は指定操作・対象が処理中かどうかを返す。
func (c *Controller) Busy(op Op, target int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[busyKey(op, target)]
	return ok
}

func (c *Controller) acquire(op Op, target int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := busyKey(op, target)
	if _, ok := c.busy[key]; ok {
		return model.NewBusyError(key)
	}
	c.busy[key] = struct{}{}
	return nil
}

func (c *Controller) release(op Op, target int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, busyKey(op, target))
}

// Snapshot は現在表示中のカートと、一度でも取得済みかどうかを返す。
func (c *Controller) Snapshot() (model.Cart, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot, c.loaded
}

// LastOrder は直近のチェックアウトで作成された注文を返す。
func (c *Controller) LastOrder() (model.Order, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastOrder == nil {
		return model.Order{}, false
	}
	return *c.lastOrder, true
}

// Open はカートUIを開く。未ログインの場合は開かずにエラーを返す。
func (c *Controller) Open() error {
	if _, err := c.ids.RequireAuthenticated(); err != nil {
		c.notifier.Post(ScopeCart, notify.LevelError, "Please login to view your cart", c.noticeTTL)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return nil
}

// Close はカートUIを閉じる。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// IsOpen はカートUIが開いているかどうかを返す。
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reset は表示中のカートを破棄する。ログアウト時に呼ばれる。
// 処理中のフェッチの結果は反映されない。
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.snapshot = model.Cart{}
	c.loaded = false
	c.open = false
	c.lastOrder = nil
}

// Refresh はサーバーからカートを再取得する。
func (c *Controller) Refresh(ctx context.Context) (model.Cart, error) {
	id, err := c.ids.RequireAuthenticated()
	if err != nil {
		c.Reset()
		return model.Cart{}, err
	}
	return c.fetch(ctx, id.ID)
}

// fetch はカートを取得し、より新しいフェッチの結果が反映済みでなければ
// スナップショットを置き換える。
func (c *Controller) fetch(ctx context.Context, userID int64) (model.Cart, error) {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	gen := c.generation
	c.mu.Unlock()

	cart, err := c.backend.GetCart(ctx, userID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("カートの取得に失敗しました",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return c.snapshot, err
	}
	if gen != c.generation {
		return c.snapshot, nil
	}
	if seq > c.appliedSeq {
		c.snapshot = cart
		c.appliedSeq = seq
		c.loaded = true
	}
	return c.snapshot, nil
}

// AddItem は商品をカートに追加する。quantityが0の場合は1個として扱う。
func (c *Controller) AddItem(ctx context.Context, productID int64, quantity int) error {
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return model.NewValidationError("quantity", "must be positive")
	}
	return c.mutate(ctx, OpAdd, productID, "Item added to cart", func(userID int64) error {
		return c.backend.AddCartItem(ctx, userID, productID, quantity)
	})
}

// UpdateQuantity はカート明細の数量を変更する。
// 数量が0以下の場合は RemoveItem と同じ動作になる。
func (c *Controller) UpdateQuantity(ctx context.Context, itemID int64, quantity int) error {
	if quantity <= 0 {
		return c.RemoveItem(ctx, itemID)
	}
	return c.mutate(ctx, OpUpdate, itemID, "", func(userID int64) error {
		return c.backend.UpdateCartItem(ctx, userID, itemID, quantity)
	})
}

// RemoveItem はカート明細を削除する。
func (c *Controller) RemoveItem(ctx context.Context, itemID int64) error {
	return c.mutate(ctx, OpRemove, itemID, "Item removed from cart", func(int64) error {
		return c.backend.RemoveCartItem(ctx, itemID)
	})
}

// Clear はカートを空にする。
func (c *Controller) Clear(ctx context.Context) error {
	return c.mutate(ctx, OpClear, 0, "Cart cleared successfully", func(int64) error {
		return c.backend.ClearCart(ctx)
	})
}

// mutate は更新操作の共通処理。認証確認、重複実行の防止、
// 成否に関わらないカートの再取得、通知を行う。
func (c *Controller) mutate(ctx context.Context, op Op, target int64, successMessage string, call func(userID int64) error) error {
	id, err := c.ids.RequireAuthenticated()
	if err != nil {
		if op == OpAdd {
			c.notifier.Post(ScopeCart, notify.LevelError, "Please login to add items to cart", c.noticeTTL)
		}
		return err
	}
	if err := c.acquire(op, target); err != nil {
		return err
	}
	defer c.release(op, target)

	callErr := call(id.ID)
	c.metrics.RecordCartMutation(string(op), callErr == nil)

	if callErr != nil {
		c.fail(ctx, op, target, id.ID, callErr, c.noticeTTL, ScopeCart)
		return callErr
	}

	c.logger.Info("カートを更新しました",
		slog.String("op", string(op)),
		slog.Int64("target", target),
		slog.Int64("user_id", id.ID),
	)
	// 失敗してもスナップショットは前回値のままなので操作自体は成功とする
	c.fetch(ctx, id.ID)
	if successMessage != "" {
		c.notifier.Post(ScopeCart, notify.LevelSuccess, successMessage, c.noticeTTL)
	}
	return nil
}

// Checkout は現在のカートから注文を作成する。
// 空のカートではネットワークを呼び出さずに EmptyCart エラーを返す。
func (c *Controller) Checkout(ctx context.Context, notes string) (model.Order, error) {
	id, err := c.ids.RequireAuthenticated()
	if err != nil {
		return model.Order{}, err
	}

	c.mu.Lock()
	empty := c.snapshot.IsEmpty()
	c.mu.Unlock()
	if empty {
		emptyErr := model.NewEmptyCartError()
		c.notifier.Post(ScopeCheckout, notify.LevelError, emptyErr.Message, c.checkoutTTL)
		return model.Order{}, emptyErr
	}

	if err := c.acquire(OpCheckout, 0); err != nil {
		return model.Order{}, err
	}
	defer c.release(OpCheckout, 0)

	order, err := c.backend.CreateOrder(ctx, id.ID, notes)
	c.metrics.RecordCartMutation(string(OpCheckout), err == nil)
	if err != nil {
		c.fail(ctx, OpCheckout, 0, id.ID, err, c.checkoutTTL, ScopeCheckout)
		return model.Order{}, err
	}

	c.mu.Lock()
	c.open = false
	c.lastOrder = &order
	c.mu.Unlock()

	c.logger.Info("注文を作成しました",
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", id.ID),
	)
	c.fetch(ctx, id.ID)
	c.notifier.Post(ScopeCheckout, notify.LevelSuccess,
		fmt.Sprintf("Order #%d created successfully!", order.ID), c.checkoutTTL)
	return order, nil
}

// fail は失敗した操作の通知とログ出力を行い、カートを再取得する。
// 401の場合はセッションが破棄されるため再取得しない。
func (c *Controller) fail(ctx context.Context, op Op, target, userID int64, err error, ttl time.Duration, scope string) {
	c.logger.Error("カート操作に失敗しました",
		slog.String("op", string(op)),
		slog.Int64("target", target),
		slog.String("error", err.Error()),
	)

	if errors.Is(err, model.ErrUnauthorized) {
		c.notifier.Post(scope, notify.LevelError, sessionExpiredMessage, ttl)
		return
	}
	c.notifier.Post(scope, notify.LevelError, failureMessages[op], ttl)
	c.fetch(ctx, userID)
}
