// Package commands implements the sessionctl CLI.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/provider"
)

// BuildInfo is injected at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// options holds the global flags. Every flag overrides the matching
// GOSESSION_* variable only when set explicitly.
type options struct {
	mode       string
	storage    string
	fileDir    string
	redisAddr  string
	badgerDir  string
	logLevel   string
	auditLog   bool
	metrics    bool
	jsonOutput bool
}

// NewRootCommand returns a fresh command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Inspect and drive a goSession authenticator",
		Long: `sessionctl signs a user in, reports the current session and prints
access tokens using the same configuration an application would use.

Configuration is read from GOSESSION_* environment variables and may be
overridden with flags, e.g.

  GOSESSION_MODE=production GOSESSION_PROVIDER_ISSUER=https://login.example.com sessionctl login
  sessionctl --storage file --file-dir ./state whoami

Use "sessionctl [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.mode, "mode", "", "authentication mode (development|production)")
	flags.StringVar(&opts.storage, "storage", "", "storage backend (memory|file|redis|badger)")
	flags.StringVar(&opts.fileDir, "file-dir", "", "directory for the file backend")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "redis address for the redis backend")
	flags.StringVar(&opts.badgerDir, "badger-dir", "", "directory for the badger backend")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug|info|warn|error)")
	flags.BoolVar(&opts.auditLog, "audit", false, "write audit events as JSON lines to stderr")
	flags.BoolVar(&opts.metrics, "metrics", false, "enable in-process metrics")
	flags.BoolVarP(&opts.jsonOutput, "json", "j", false, "print results as JSON")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newTokenCommand(opts),
		newWhoamiCommand(opts),
		newServeCommand(opts),
		newVersionCommand(info),
	)
	root.CompletionOptions.DisableDefaultCmd = true

	return root
}

// config loads the environment configuration and applies explicit flags.
func (o *options) config(cmd *cobra.Command) (goSession.Config, error) {
	cfg, err := goSession.LoadConfigFromEnv()
	if err != nil {
		return goSession.Config{}, err
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		mode, err := goSession.ParseMode(o.mode)
		if err != nil {
			return goSession.Config{}, err
		}
		cfg.Mode = mode
	}
	if changed("storage") {
		cfg.Storage.Backend = goSession.StorageBackend(strings.ToLower(o.storage))
	}
	if changed("file-dir") {
		cfg.Storage.FileDir = o.fileDir
	}
	if changed("redis-addr") {
		cfg.Storage.RedisAddr = o.redisAddr
	}
	if changed("badger-dir") {
		cfg.Storage.BadgerDir = o.badgerDir
	}
	if changed("audit") {
		cfg.Audit.Enabled = o.auditLog
		cfg.Audit.DropIfFull = false
	}
	if changed("metrics") {
		cfg.Metrics.Enabled = o.metrics
	}

	return cfg, cfg.Validate()
}

func (o *options) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", o.logLevel, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// open builds an authenticator for cmd. navigate may be nil in development
// mode.
func (o *options) open(ctx context.Context, cmd *cobra.Command, cfg goSession.Config, navigate provider.Navigator) (goSession.Authenticator, error) {
	logger, err := o.logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	b := goSession.New().WithConfig(cfg).WithLogger(logger)
	if navigate != nil {
		b = b.WithNavigator(navigate)
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(goSession.NewJSONWriterSink(cmd.ErrOrStderr()))
	}
	return b.Build(ctx)
}

// printNavigator prints the sign-in or sign-out URL for the user to open.
func printNavigator(w io.Writer) provider.Navigator {
	return func(_ context.Context, target string) error {
		_, err := fmt.Fprintf(w, "Open this URL in a browser:\n  %s\n", target)
		return err
	}
}
