package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hitoshi/securenotes/internal/config"
	"github.com/hitoshi/securenotes/internal/model"
)

// readPassword は端末からエコーなしでパスワードを読み取る。
var readPassword = term.ReadPassword

// NewRootCommand はsecurenotesのルートコマンドを生成する。
// wはログとコマンド出力の書き込み先。
// サブコマンド省略時はserveとして起動する。
func NewRootCommand(w io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "securenotes",
		Short:         "Secure Notes server and administration CLI",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withConfig(w, runServeCommand),
	}
	root.SetOut(w)
	root.SetErr(w)

	root.AddCommand(
		newServeCommand(w),
		newWorkerCommand(w),
		newMigrateCommand(w),
		newHealthcheckCommand(),
		newAddUserCommand(w),
		newPromoteCommand(w),
		newUsersCommand(w),
	)
	return root
}

// withConfig は設定読み込みとログ初期化を済ませてからfnを呼び出すRunEを返す。
func withConfig(w io.Writer, fn func(cmd *cobra.Command, cfg *config.Config, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := Init(w)
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		return fn(cmd, cfg, args)
	}
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func runServeCommand(cmd *cobra.Command, cfg *config.Config, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()
	return runServe(ctx, cfg)
}

func newServeCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  withConfig(w, runServeCommand),
	}
}

func newWorkerCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the scheduled session cleanup worker",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cmd *cobra.Command, cfg *config.Config, _ []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()
			return runWorker(ctx, cfg)
		}),
	}
}

func newMigrateCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(_ *cobra.Command, cfg *config.Config, _ []string) error {
			return runMigrate(cfg)
		}),
	}
}

// newHealthcheckCommand は軽量サブコマンドのため、設定全体の読み込みをスキップする。
func newHealthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint (for container health checks)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runHealthcheck(ctx, healthcheckPort())
		},
	}
}

func newAddUserCommand(w io.Writer) *cobra.Command {
	var admin bool

	cmd := &cobra.Command{
		Use:   "adduser <username>",
		Short: "Create a user account (password is read from the terminal or stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: withConfig(w, func(cmd *cobra.Command, cfg *config.Config, args []string) error {
			password, err := promptPassword(cmd)
			if err != nil {
				return err
			}
			return runAddUser(cmd, cfg, args[0], password, admin)
		}),
	}
	cmd.Flags().BoolVar(&admin, "admin", false, "grant the admin role to the new user")
	return cmd
}

func newPromoteCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <username>",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: withConfig(w, func(cmd *cobra.Command, cfg *config.Config, args []string) error {
			return runPromote(cmd, cfg, args[0])
		}),
	}
}

func newUsersCommand(w io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: withConfig(w, func(cmd *cobra.Command, cfg *config.Config, _ []string) error {
			return runListUsers(cmd, cfg)
		}),
	}
}

// runAddUser はユーザーを登録する。adminが真の場合は管理者として作成する。
func runAddUser(cmd *cobra.Command, cfg *config.Config, username, password string, admin bool) error {
	username = strings.TrimSpace(username)
	ctx := cmd.Context()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	authService := newServices(db, cfg).auth
	register := authService.Register
	if admin {
		register = authService.RegisterAdmin
	}
	id, err := register(ctx, username, password)
	if err != nil {
		return describeError("failed to create user", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created user %q (id=%d, admin=%t)\n", username, id, admin)
	return nil
}

// runPromote は既存ユーザーに管理者権限を付与する。
func runPromote(cmd *cobra.Command, cfg *config.Config, username string) error {
	ctx := cmd.Context()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := newServices(db, cfg).users.Promote(ctx, username); err != nil {
		return describeError("failed to promote user", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "user %q is now an admin\n", username)
	return nil
}

// runListUsers は全ユーザーを表形式で出力する。
func runListUsers(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	db, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := newServices(db, cfg).users.ListUsersUnchecked(ctx)
	if err != nil {
		return err
	}

	renderUsers(cmd.OutOrStdout(), users)
	return nil
}

// renderUsers はユーザー一覧をテーブルとして書き出す。
func renderUsers(w io.Writer, users []*model.User) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"ID", "Username", "Admin", "Created At"})
	for _, u := range users {
		t.AppendRow(table.Row{u.ID, u.Username, u.IsAdmin, u.CreatedAt.UTC().Format("2006-01-02 15:04:05")})
	}
	t.AppendFooter(table.Row{"", "Total", len(users), ""})
	t.Render()
}

// promptPassword はパスワードを読み取る。
// 標準入力が端末の場合はエコーなしで2回入力させ、それ以外は1行読み取る。
func promptPassword(cmd *cobra.Command) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		out := cmd.ErrOrStderr()

		fmt.Fprint(out, "Password: ")
		first, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		fmt.Fprint(out, "Confirm password: ")
		second, err := readPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// describeError はAPIErrorのフィールド単位のメッセージをエラー文字列に付加する。
func describeError(prefix string, err error) error {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return fmt.Errorf("%s: %w", prefix, err)
	}

	fields := make([]string, 0, len(apiErr.Fields))
	for field := range apiErr.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+apiErr.Fields[field])
	}
	return fmt.Errorf("%s: %w (%s)", prefix, err, strings.Join(parts, "; "))
}
