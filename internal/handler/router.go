package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Session SessionView
	Cart    CartView
	Chat    ChatView
	Notices NoticeView

	// HealthCheckerはDATABASE_URL未設定時はnil
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer

	Location *time.Location
	Logger   *slog.Logger
}

// NewRouter はステータスサーバーのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders
//
// チャット関連のルートはChatがnilの場合は登録しない。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	status := NewStatusHandler(deps.Session, deps.Cart, deps.Chat, deps.Notices, deps.HealthChecker)

	r.Get("/health", status.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", status.State)

		if deps.Chat != nil {
			chatHandler := NewChatHandler(deps.Chat, deps.Location)
			r.Route("/chat", func(r chi.Router) {
				r.Get("/sessions", chatHandler.ListSessions)
				r.Get("/stats", chatHandler.Stats)
				r.Get("/export", chatHandler.Export)
			})
		}
	})

	return r
}
