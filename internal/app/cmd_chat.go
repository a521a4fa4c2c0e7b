package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/guestdesk/internal/chat"
	"github.com/hitoshi/guestdesk/internal/model"
)

// sessionFilterFlags は一覧とエクスポートで共通の絞り込み条件。
type sessionFilterFlags struct {
	search    string
	mode      string
	sort      string
	ascending bool
}

func (f *sessionFilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.search, "search", "", "Match session token, customer username or email")
	cmd.Flags().StringVar(&f.mode, "mode", "all", "Filter: all, unread, active, idle, inactive")
	cmd.Flags().StringVar(&f.sort, "sort", string(chat.SortUpdated), "Sort key: updated_at, created_at, message_count, customer")
	cmd.Flags().BoolVar(&f.ascending, "asc", false, "Sort ascending")
}

func (f *sessionFilterFlags) apply(a *App, now time.Time) ([]model.ChatSession, error) {
	mode, err := chat.ParseMode(f.mode)
	if err != nil {
		return nil, model.NewValidationError("mode", err.Error())
	}
	key := chat.SortKey(f.sort)
	switch key {
	case chat.SortUpdated, chat.SortCreated, chat.SortMessages, chat.SortCustomer:
	default:
		return nil, model.NewValidationError("sort", "unknown sort key: "+f.sort)
	}
	sessions := chat.FilterSessions(a.Chat.Sessions(), a.Chat.Unread(), chat.Filter{Search: f.search, Mode: mode}, now)
	return chat.SortSessions(sessions, key, f.ascending), nil
}

func (c *cli) chatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Support chat sessions",
	}

	var filters sessionFilterFlags
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.chatReady(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			list, err := filters.apply(a, now)
			if err != nil {
				return err
			}
			unread := a.Chat.Unread()

			tw := newTable(c.stdout)
			fmt.Fprintln(tw, "ID\tTOKEN\tCUSTOMER\tMESSAGES\tUNREAD\tSTATUS\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
					s.ID, s.SessionID, customerLabel(s), s.MessageCount, unread[s.ID],
					chat.SessionStatus(s, now), chat.FormatRelative(s.UpdatedAt, now))
			}
			return tw.Flush()
		}),
	}
	filters.register(sessions)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show chat statistics",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.chatReady(cmd.Context())
			if err != nil {
				return err
			}
			st := chat.ComputeStats(a.Chat.Sessions(), time.Now())
			fmt.Fprintf(c.stdout, "Total sessions: %d\nActive today: %d\nTotal messages: %d\n",
				st.TotalSessions, st.ActiveToday, st.TotalMessages)
			return nil
		}),
	}

	var follow bool
	open := &cobra.Command{
		Use:   "open <session-id>",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, session, err := c.openSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer a.Chat.Close()

			fmt.Fprintf(c.stdout, "Session %s with %s\n", session.SessionID, customerLabel(session))
			printed := make(map[int64]bool)
			c.printNewMessages(a.Chat.Messages(), printed)
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ticker := time.NewTicker(a.Config.ChatMessageInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if _, ok := a.Chat.Active(); !ok {
						return nil
					}
					c.printNewMessages(a.Chat.Messages(), printed)
				}
			}
		}),
	}
	open.Flags().BoolVarP(&follow, "follow", "f", false, "Keep polling for new messages")

	send := &cobra.Command{
		Use:   "send <session-id> <message>...",
		Short: "Send a message to a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, _, err := c.openSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer a.Chat.Close()

			a.Chat.SetDraft(strings.Join(args[1:], " "))
			msg, sent, err := a.Chat.SendDraft(cmd.Context())
			if err != nil {
				return err
			}
			if !sent {
				return model.NewValidationError("message", "required")
			}
			fmt.Fprintf(c.stdout, "Sent message #%d\n", msg.ID)
			return nil
		}),
	}

	var customerID int64
	create := &cobra.Command{
		Use:   "new",
		Short: "Start a new chat session",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.chatReady(cmd.Context())
			if err != nil {
				return err
			}
			created, err := a.Chat.CreateSession(cmd.Context(), customerID)
			if err != nil {
				return err
			}
			defer a.Chat.Close()
			fmt.Fprintf(c.stdout, "Created session %d (%s)\n", created.ID, created.SessionID)
			return nil
		}),
	}
	create.Flags().Int64Var(&customerID, "customer", 0, "Customer ID (required for staff)")

	var yes bool
	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			sessionID, err := parseID(args[0], "session_id")
			if err != nil {
				return err
			}
			a, err := c.chatReady(cmd.Context())
			if err != nil {
				return err
			}
			confirm := chat.ConfirmFunc(func(prompt string) bool {
				if yes {
					return true
				}
				answer, err := c.prompt(prompt + " [y/N]: ")
				if err != nil {
					return false
				}
				answer = strings.ToLower(answer)
				return answer == "y" || answer == "yes"
			})
			deleted, err := a.Chat.DeleteSession(cmd.Context(), sessionID, confirm)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(c.stdout, "Cancelled")
			}
			return nil
		}),
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	var exportFilters sessionFilterFlags
	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export chat sessions as CSV",
		Args:  cobra.NoArgs,
		RunE: c.runE(func(cmd *cobra.Command, args []string) error {
			a, err := c.chatReady(cmd.Context())
			if err != nil {
				return err
			}
			now := time.Now()
			list, err := exportFilters.apply(a, now)
			if err != nil {
				return err
			}

			if output == "" {
				return chat.ExportCSV(c.stdout, list, time.Local)
			}
			if output == "." {
				output = chat.ExportFileName(now)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			if err := chat.ExportCSV(f, list, time.Local); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Exported %d sessions to %s\n", len(list), output)
			return nil
		}),
	}
	exportFilters.register(export)
	export.Flags().StringVarP(&output, "output", "o", "", `Output file ("." for the default name, empty for stdout)`)

	cmd.AddCommand(sessions, stats, open, send, create, del, export)
	return cmd
}

// chatReady はログイン済みであることを確認し、セッション一覧を取得する。
func (c *cli) chatReady(ctx context.Context) (*App, error) {
	a, _, err := c.authenticated(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.Chat.RefreshSessions(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// openSession は指定IDのセッションを開き、メッセージを取得する。
func (c *cli) openSession(ctx context.Context, arg string) (*App, model.ChatSession, error) {
	sessionID, err := parseID(arg, "session_id")
	if err != nil {
		return nil, model.ChatSession{}, err
	}
	a, err := c.chatReady(ctx)
	if err != nil {
		return nil, model.ChatSession{}, err
	}

	for _, s := range a.Chat.Sessions() {
		if s.ID != sessionID {
			continue
		}
		if err := a.Chat.Open(ctx, s); err != nil {
			return nil, model.ChatSession{}, err
		}
		if err := a.Chat.RefreshMessages(ctx); err != nil {
			a.Chat.Close()
			return nil, model.ChatSession{}, err
		}
		return a, s, nil
	}
	return nil, model.ChatSession{}, model.NewValidationError("session_id", fmt.Sprintf("chat session %d not found", sessionID))
}

func (c *cli) printNewMessages(msgs []model.Message, printed map[int64]bool) {
	now := time.Now()
	for _, m := range msgs {
		if printed[m.ID] {
			continue
		}
		printed[m.ID] = true
		who := "Guest"
		if m.Sender == model.SenderAdmin {
			who = "Staff"
		}
		fmt.Fprintf(c.stdout, "[%s] %s: %s\n", chat.FormatRelative(m.Timestamp, now), who, m.Body)
	}
}

func customerLabel(s model.ChatSession) string {
	if s.Customer.Username != "" {
		return s.Customer.Username
	}
	if s.Customer.Email != "" {
		return s.Customer.Email
	}
	return fmt.Sprintf("customer #%d", s.Customer.ID)
}
