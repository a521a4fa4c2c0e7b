package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/config"
	"github.com/hitoshi/guestdesk/internal/model"
	"github.com/hitoshi/guestdesk/internal/notify"
	"github.com/hitoshi/guestdesk/internal/session"
)

// cli はコマンド間で共有する入出力と遅延生成するAppを保持する。
type cli struct {
	stdout io.Writer
	stderr io.Writer
	stdin  *bufio.Reader

	cfg    *config.Config
	logger *slog.Logger
	app    *App
}

// Run はコマンドライン引数を解釈して対応するコマンドを実行する。
// argsにはos.Args[1:]を渡す。
func Run(ctx context.Context, args []string) error {
	root := NewRootCommand(os.Stdout, os.Stderr, os.Stdin)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// NewRootCommand はguestdeskのコマンドツリーを生成する。
// ログはstderr、コマンドの出力と通知はstdoutに書き込む。
func NewRootCommand(stdout, stderr io.Writer, stdin io.Reader) *cobra.Command {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		stdin:  bufio.NewReader(stdin),
	}

	root := &cobra.Command{
		Use:   "guestdesk",
		Short: "Hotel guest management client",
		Long: `guestdesk is a client for the hotel guest management backend.

It keeps the login session, manages the shopping cart and orders,
synchronizes support chat sessions and builds inventory reports.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := Init(c.stderr)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			c.cfg = cfg
			c.logger = log
			return nil
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		c.loginCommand(),
		c.logoutCommand(),
		c.whoamiCommand(),
		c.roomsCommand(),
		c.productsCommand(),
		c.categoriesCommand(),
		c.ordersCommand(),
		c.feedbackCommand(),
		c.cartCommand(),
		c.chatCommand(),
		c.reportCommand(),
		c.serveCommand(),
		c.migrateCommand(),
	)
	return root
}

// runE はエラー時も含めてコマンド終了時にAppを閉じるRunEを返す。
func (c *cli) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer func() {
			if c.app != nil {
				c.app.Close()
				c.app = nil
			}
		}()
		return fn(cmd, args)
	}
}

// application はAppを生成する。同じコマンド内では使い回す。
func (c *cli) application(ctx context.Context) (*App, error) {
	if c.app != nil {
		return c.app, nil
	}
	nav := session.NavigatorFunc(func(reason string) {
		if reason == session.ReasonExpired {
			fmt.Fprintln(c.stdout, "Session expired. Please login again.")
		}
	})
	a, err := New(ctx, c.cfg, c.logger, nav)
	if err != nil {
		return nil, err
	}
	a.Notices.OnPost(func(n notify.Notice) {
		fmt.Fprintf(c.stdout, "[%s] %s\n", n.Level, n.Message)
	})
	c.app = a
	return a, nil
}

// authenticated はログイン済みのAppを返す。未ログインの場合はエラー。
func (c *cli) authenticated(ctx context.Context) (*App, model.Identity, error) {
	a, err := c.application(ctx)
	if err != nil {
		return nil, model.Identity{}, err
	}
	id, err := a.Session.RequireAuthenticated()
	if err != nil {
		return nil, model.Identity{}, err
	}
	return a, id, nil
}

// prompt は1行読み込む。
func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.stdout, label)
	line, err := c.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func parseID(s, field string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError(field, "must be a positive integer")
	}
	return id, nil
}

func (c *cli) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to the backend and store the session",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			if email == "" {
				if email, err = c.prompt("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = c.prompt("Password: "); err != nil {
					return err
				}
			}

			id, err := a.Session.Login(cmd.Context(), model.Credentials{Email: email, Password: password})
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					for _, line := range apiErr.FieldErrors() {
						fmt.Fprintln(c.stdout, line)
					}
				}
				return err
			}
			fmt.Fprintf(c.stdout, "Logged in as %s (%s)\n", id.DisplayName(), id.Role)
			return nil
		}),
	}
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Logout and discard the stored session",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			a.Session.Logout(cmd.Context())
			fmt.Fprintln(c.stdout, "Logged out")
			return nil
		}),
	}
}

func (c *cli) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			id, ok := a.Session.Current()
			if !ok {
				fmt.Fprintln(c.stdout, "Not logged in")
				return nil
			}
			fmt.Fprintf(c.stdout, "%s <%s>\nRole: %s\n", id.DisplayName(), id.Email, id.Role)
			if !id.ExpiresAt.IsZero() {
				fmt.Fprintf(c.stdout, "Expires: %s\n", id.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		}),
	}
}
