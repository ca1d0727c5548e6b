package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
)

func newLoginCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in and print the resulting session.

In development mode the mock user is signed in immediately.

In production mode sessionctl listens on the configured redirect URL, prints
the identity provider's sign-in URL and waits for the browser to come back.
The redirect URL must point at a loopback address, e.g.
GOSESSION_PROVIDER_REDIRECT_URL=http://127.0.0.1:8400/callback.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			if cfg.Mode == goSession.ModeProduction {
				return runProductionLogin(cmd, opts, cfg, timeout)
			}
			return runDevelopmentLogin(cmd, opts, cfg)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the browser to return (production)")

	return cmd
}

func runDevelopmentLogin(cmd *cobra.Command, opts *options, cfg goSession.Config) error {
	ctx := cmd.Context()
	auth, err := opts.open(ctx, cmd, cfg, nil)
	if err != nil {
		return err
	}
	defer auth.Close()

	if err := auth.Login(ctx); err != nil {
		return err
	}
	return printSession(cmd.OutOrStdout(), opts.jsonOutput, newSessionView(auth.Mode().String(), auth.Session()))
}

func runProductionLogin(cmd *cobra.Command, opts *options, cfg goSession.Config, timeout time.Duration) error {
	redirect, err := url.Parse(cfg.Provider.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid redirect URL %q", goSession.ErrInvalidConfig, cfg.Provider.RedirectURL)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	auth, err := opts.open(ctx, cmd, cfg, printNavigator(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer auth.Close()

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen on redirect address: %w", err)
	}

	done := make(chan error, 1)
	path := redirect.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		err := goSession.CompleteRedirect(r.Context(), auth, r.URL)
		if err != nil {
			http.Error(w, "sign-in failed", http.StatusBadRequest)
		} else {
			_, _ = fmt.Fprintln(w, "Signed in. You can close this window.")
		}
		select {
		case done <- err:
		default:
		}
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer stop()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := auth.Login(ctx); err != nil {
		return err
	}

	select {
	case err := <-done:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("timed out waiting for the sign-in redirect")
		}
		return ctx.Err()
	}

	return printSession(cmd.OutOrStdout(), opts.jsonOutput, newSessionView(auth.Mode().String(), auth.Session()))
}
