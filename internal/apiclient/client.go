// Package apiclient はホテル管理バックエンドのREST APIクライアントを提供する。
// 認証トークンの付与、エラーの正規化、送信レート制御を共通処理として行い、
// リソースごとの呼び出しを Client のメソッドとして公開する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/model"
)

const (
	// DefaultTimeout はHTTPクライアントのデフォルトタイムアウト。
	DefaultTimeout = 30 * time.Second
	// userAgent はバックエンドに送信するUser-Agent。
	userAgent = "guestdesk/1.0"
	// maxResponseBytes はレスポンスボディの最大読み取りサイズ。
	maxResponseBytes = 10 << 20
)

// TokenSource は現在の認証トークンを返す。未ログインの場合は空文字列。
type TokenSource interface {
	Token() string
}

// TokenFunc は関数をTokenSourceとして使うためのアダプタ。
type TokenFunc func() string

// Token はTokenSourceを実装する。
func (f TokenFunc) Token() string { return f() }

// Options はClientの生成オプション。
type Options struct {
	BaseURL    string
	HTTPClient *http.Client // nilの場合はTimeoutとCookieJarを設定したクライアントを生成する
	Timeout    time.Duration
	RateLimit  float64 // 1秒あたりのリクエスト数。0以下で無制限
	RateBurst  int
	Metrics    metrics.MetricsCollector
	Logger     *slog.Logger
}

// Client はバックエンドAPIのクライアント。並行利用しても安全。
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
	logger     *slog.Logger

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized func()
}

// New は新しいClientを生成する。
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		return nil, errors.New("APIのベースURLが指定されていません")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jarの生成に失敗しました: %w", err)
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout, Jar: jar}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	m := opts.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		limiter:    limiter,
		metrics:    m,
		logger:     logger,
	}, nil
}

// SetTokenSource は認証トークンの取得元を設定する。
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// SetUnauthorizedHandler は401レスポンス受信時に呼ばれるハンドラーを設定する。
// セッションの破棄とログイン画面への遷移通知に使う。
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

// BaseURL はAPIのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) unauthorized() {
	c.mu.RLock()
	fn := c.onUnauthorized
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// response は2xxレスポンスのステータスと生ボディ。
type response struct {
	status int
	body   []byte
}

// invalid はボディを解釈できなかった場合のエラーを返す。
func (r *response) invalid(cause error) *model.APIError {
	return model.NewInvalidResponseError(r.status, r.body, cause)
}

// Do はAPIリクエストを実行し、成功時はレスポンスをoutにデコードする。
// pathはベースURLからの相対パス（例: "/cart/?user_id=1"）。
// 失敗時は *model.APIError を返す。自動リトライは行わない。
func (c *Client) Do(ctx context.Context, method, path string, body any, headers http.Header, out any) error {
	resp, err := c.sendJSON(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		c.logger.Error("APIレスポンスのパースに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.status),
			slog.String("error", err.Error()),
		)
		return resp.invalid(err)
	}
	return nil
}

// sendJSON はbodyをJSONにエンコードして送信する。bodyがnilの場合はボディなし。
func (c *Client) sendJSON(ctx context.Context, method, path string, body any, headers http.Header) (*response, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, model.NewClientError(fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err))
		}
		reader = bytes.NewReader(payload)
	}
	return c.send(ctx, method, path, reader, "application/json", headers)
}

// send はリクエストを送信し、2xxの場合はステータスと生ボディを返す。
// 401ではUnauthorizedハンドラーを呼び出す。
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, headers http.Header) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, model.NewClientError(fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Token "+tok)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, model.NewClientError(fmt.Errorf("送信待機中に中断されました: %w", err))
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordAPIRequest(method, 0, time.Since(start))
		c.logger.Warn("APIリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, model.NewNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.RecordAPIRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, model.NewNetworkError(fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("認証エラーを受信しました。セッションを破棄します",
			slog.String("method", method),
			slog.String("path", path),
		)
		c.unauthorized()
		return nil, model.NewUnauthorizedError(raw)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := model.NewServerError(resp.StatusCode, raw)
		c.logger.Warn("APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", apiErr.Message),
		)
		return nil, apiErr
	}
	return &response{status: resp.StatusCode, body: raw}, nil
}
