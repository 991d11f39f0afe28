// Package cli implements the tithe command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/tithe/internal/auth"
	"github.com/mmynk/tithe/internal/config"
	"github.com/mmynk/tithe/internal/editor"
	"github.com/mmynk/tithe/internal/events"
	"github.com/mmynk/tithe/internal/imaging"
	"github.com/mmynk/tithe/internal/storage"
	"github.com/mmynk/tithe/internal/storage/memory"
	"github.com/mmynk/tithe/internal/storage/sqlite"
	"github.com/mmynk/tithe/pkg/logging"
)

// localPrincipal owns sessions in --memory mode when no user is given.
const localPrincipal = "local"

var errNoUser = errors.New("no user selected: pass --user EMAIL")

// backend is a session store that also keeps user accounts.
type backend interface {
	storage.Store
	auth.UserStorage
}

// App holds the state shared by every command of one invocation.
type App struct {
	out io.Writer
	in  io.Reader

	configPath string
	userEmail  string
	dbPath     string
	memory     bool

	cfg       *config.Config
	store     backend
	publisher *events.AMQPClient
}

// NewRootCmd builds the command tree. Output goes to out, prompts read in.
func NewRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	app := &App{out: out, in: in}

	root := &cobra.Command{
		Use:   "tithe",
		Short: "Contribution calculations with receipt archives",
		Long: `tithe keeps contribution calculations (a base sum, a percentage and
itemized deductions with receipt photos) and exports receipts as zip
archives grouped by year or month.`,
		SilenceUsage:      true,
		PersistentPreRunE: app.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.close()
		},
	}
	root.SetOut(out)
	root.SetIn(in)

	root.PersistentFlags().StringVar(&app.configPath, "config", "", "Config file (default tithe.toml if present)")
	root.PersistentFlags().StringVarP(&app.userEmail, "user", "u", os.Getenv("TITHE_USER"), "Email of the account to act as")
	root.PersistentFlags().StringVar(&app.dbPath, "db", "", "SQLite database path (overrides config)")
	root.PersistentFlags().BoolVar(&app.memory, "memory", false, "Use a throwaway in-memory store")

	root.AddCommand(
		app.calcCmd(),
		app.newCmd(),
		app.listCmd(),
		app.deleteCmd(),
		app.attachCmd(),
		app.exportCmd(),
		app.exportSessionCmd(),
		app.reportCmd(),
		app.userCmd(),
		app.tokenCmd(),
		app.eventsCmd(),
	)
	return root
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout, os.Stdin).ExecuteContext(ctx)
}

func (a *App) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	logging.Setup(cfg.LogLevel)

	if a.memory {
		a.store = memory.New()
		return nil
	}
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store
	return nil
}

func (a *App) close() error {
	if a.publisher != nil {
		a.publisher.Close()
		a.publisher = nil
	}
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// principal resolves --user to a context carrying that user's ID.
func (a *App) principal(ctx context.Context) (context.Context, error) {
	if a.userEmail == "" {
		if a.memory {
			return auth.WithPrincipal(ctx, localPrincipal), nil
		}
		return nil, errNoUser
	}
	user, err := a.store.GetUserByEmail(ctx, a.userEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("unknown user %q: create it with 'tithe user add'", a.userEmail)
	}
	return auth.WithPrincipal(ctx, user.ID), nil
}

func (a *App) compressor() *imaging.Compressor {
	return imaging.NewCompressor(a.cfg.ImagingOptions())
}

func (a *App) editorOptions() editor.Options {
	return editor.Options{DefaultPercent: a.cfg.DefaultPercent}
}

// events returns the configured publisher, or nil when AMQP is off or
// unreachable.
func (a *App) events() events.Publisher {
	if !a.cfg.EventsEnabled() {
		return nil
	}
	if a.publisher == nil {
		p, err := events.NewAMQPClient(a.cfg.AMQP.URL, a.cfg.AMQP.Exchange, a.cfg.AMQP.RoutingKey)
		if err != nil {
			slog.Warn("Session events disabled", "error", err)
			return nil
		}
		a.publisher = p
	}
	return a.publisher
}
