// Package app はguestdeskの依存関係を組み立て、CLIコマンドを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/guestdesk/internal/apiclient"
	"github.com/hitoshi/guestdesk/internal/cart"
	"github.com/hitoshi/guestdesk/internal/chat"
	"github.com/hitoshi/guestdesk/internal/config"
	"github.com/hitoshi/guestdesk/internal/database"
	"github.com/hitoshi/guestdesk/internal/logger"
	"github.com/hitoshi/guestdesk/internal/metrics"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
	"github.com/hitoshi/guestdesk/internal/repository"
	"github.com/hitoshi/guestdesk/internal/security"
	"github.com/hitoshi/guestdesk/internal/session"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.SetupDefault(w, "info")
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.LogLevel), nil
}

// App はクライアントの全コンポーネントを保持する。
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	Client  *apiclient.Client
	Media   *apiclient.MediaResolver
	Session *session.Store
	Notices *notify.Center
	Cart    *cart.Controller
	Chat    *chat.Syncer

	// DATABASE_URL未設定時はnil
	DB      *sql.DB
	Reports repository.ReportRepository

	unsubscribe func()
}

// New は設定から全コンポーネントを組み立て、保存済みのセッションを復元する。
// DATABASE_URLが設定されている場合はDBに接続してマイグレーションを適用し、
// セッションの保存先をDBにする。
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, nav session.Navigator) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	}
	a.Metrics = metrics.NewCollector(a.Registry)

	// 1. APIクライアント
	client, err := apiclient.New(apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
		Metrics:   a.Metrics,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	a.Client = client

	media, err := apiclient.NewMediaResolver(cfg.MediaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create media resolver: %w", err)
	}
	a.Media = media

	// 2. セッションの保存先
	var persister session.Persister = session.NewFilePersister(cfg.SessionFile)
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.DB = db
		a.Reports = repository.NewPostgresReportRepo(db)
		persister = repository.NewPostgresIdentityRepo(db, repository.DefaultProfile)
		log.Info("データベースに接続しました")
	}

	// 3. セッションストアとAPIクライアントの相互接続
	a.Session = session.NewStore(client, persister, nav, log)
	client.SetTokenSource(a.Session)
	client.SetUnauthorizedHandler(a.Session.Expire)

	// 4. 通知・カート・チャット
	a.Notices = notify.NewCenter(log)
	a.Cart = cart.NewController(client, a.Session, a.Notices, cart.Options{
		NoticeTTL:         cfg.NoticeTTL,
		CheckoutNoticeTTL: cfg.CheckoutNoticeTTL,
		Metrics:           a.Metrics,
		Logger:            log,
	})
	a.Chat = chat.NewSyncer(client, a.Session, a.Notices, chat.Options{
		SessionInterval: cfg.ChatSessionInterval,
		MessageInterval: cfg.ChatMessageInterval,
		NoticeTTL:       cfg.NoticeTTL,
		Sanitizer:       security.NewTextSanitizer(),
		Metrics:         a.Metrics,
		Logger:          log,
	})

	// ログアウト・期限切れ時はユーザー固有の状態を破棄する
	a.unsubscribe = a.Session.Subscribe(func(state session.State, _ model.Identity) {
		if state != session.Anonymous {
			return
		}
		a.Cart.Reset()
		// ポーリングループ内の401からも呼ばれるため別goroutineで止める
		go a.Chat.Reset()
	})

	a.Session.Bootstrap(ctx)
	return a, nil
}

// Close は全てのループとDB接続を閉じる。
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if a.Chat != nil {
		a.Chat.Stop()
	}
	if a.Notices != nil {
		a.Notices.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Warn("データベース接続のクローズに失敗しました", slog.String("error", err.Error()))
		}
	}
}
