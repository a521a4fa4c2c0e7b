package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/database"
	"github.com/hitoshi/guestdesk/internal/handler"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/session"
)

func (c *cli) serveCommand() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat sync loop and the local status server",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := c.application(ctx)
			if err != nil {
				return err
			}
			if port == "" {
				port = a.Config.StatusPort
			}
			return serve(ctx, a, ":"+port)
		}),
	}
	cmd.Flags().StringVar(&port, "port", "", "Status server port (defaults to STATUS_PORT)")
	return cmd
}

// serve はチャット同期ループとステータスサーバーを起動し、ctxの終了でグレースフルシャットダウンする。
func serve(ctx context.Context, a *App, addr string) error {
	// ログイン状態になったら同期を開始する
	unsubscribe := a.Session.Subscribe(func(state session.State, _ model.Identity) {
		if state == session.Authenticated {
			startSync(ctx, a)
		}
	})
	defer unsubscribe()

	if a.Session.State() == session.Authenticated {
		startSync(ctx, a)
	} else {
		a.Logger.Warn("未ログインのため同期を開始しません。guestdesk login でログインしてください")
	}

	var health handler.HealthChecker
	if a.DB != nil {
		health = a.DB
	}
	router := handler.NewRouter(&handler.RouterDeps{
		Session:       a.Session,
		Cart:          a.Cart,
		Chat:          a.Chat,
		Notices:       a.Notices,
		HealthChecker: health,
		Gatherer:      a.Registry,
		Location:      time.Local,
		Logger:        a.Logger,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("ステータスサーバーを起動します", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("ステータスサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.Chat.Stop()
	a.Logger.Info("ステータスサーバーを停止しました")
	return nil
}

// startSync はカートを取得し、チャットセッションの同期を開始する。
func startSync(ctx context.Context, a *App) {
	if _, err := a.Cart.Refresh(ctx); err != nil {
		a.Logger.Warn("カートの取得に失敗しました", slog.String("error", err.Error()))
	}
	if err := a.Chat.Start(ctx); err != nil {
		a.Logger.Warn("チャットの同期を開始できませんでした", slog.String("error", err.Error()))
	}
}

func (c *cli) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			if c.cfg.DatabaseURL == "" {
				return errNoDatabase
			}
			c.logger.Info("running database migrations",
				slog.String("database_url", maskDatabaseURL(c.cfg.DatabaseURL)),
			)
			if err := database.RunMigrations(c.cfg.DatabaseURL); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			version, dirty, err := database.Version(c.cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Schema version: %d (dirty: %t)\n", version, dirty)
			return nil
		}),
	}
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
