package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
)

var errNoResponse = errors.New("navigation outside of a request")

type responseKey struct{}

// redirectResponse lets the navigator answer the request that started a
// login or logout.
type redirectResponse struct {
	w     http.ResponseWriter
	r     *http.Request
	wrote bool
}

func withResponse(r *http.Request, w http.ResponseWriter) (*http.Request, *redirectResponse) {
	rr := &redirectResponse{w: w, r: r}
	return r.WithContext(context.WithValue(r.Context(), responseKey{}, rr)), rr
}

func navigateResponse(ctx context.Context, target string) error {
	rr, ok := ctx.Value(responseKey{}).(*redirectResponse)
	if !ok {
		return errNoResponse
	}
	http.Redirect(rr.w, rr.r, target, http.StatusFound)
	rr.wrote = true
	return nil
}

func newServeCommand(opts *options) *cobra.Command {
	var (
		addr         string
		otelInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local HTTP server that holds a session",
		Long: `Run a local HTTP server backed by one authenticator.

Routes:
  GET  /login      sign in (production: redirects to the identity provider)
  GET  <redirect>  completes a production sign-in (path of the redirect URL)
  POST /logout     sign out
  GET  /session    current session, without tokens
  GET  /me         signed-in user (401 otherwise)
  GET  /metrics    Prometheus text metrics (with --metrics)

With --otel-interval the same metrics are also collected through an
OpenTelemetry meter provider and logged at that interval.

Examples:
  sessionctl serve --addr 127.0.0.1:8400
  GOSESSION_MODE=production sessionctl serve --metrics
  sessionctl serve --metrics --otel-interval 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			auth, err := opts.open(ctx, cmd, cfg, navigateResponse)
			if err != nil {
				return err
			}
			defer auth.Close()

			logger, err := opts.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			handler, err := newServeMux(auth, cfg)
			if err != nil {
				return err
			}

			if otelInterval > 0 {
				stopOTel, err := startOTelExport(auth, logger.With(slog.String("component", "otel")), otelInterval)
				if err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
					defer cancel()
					if err := stopOTel(stopCtx); err != nil {
						logger.Error("otel shutdown error", slog.Any("error", err))
					}
				}()
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return err
			}
			srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}

			serverDone := make(chan error, 1)
			go func() {
				serverDone <- srv.Serve(ln)
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %s session on http://%s\n", auth.Mode(), ln.Addr())

			select {
			case <-ctx.Done():
				logger.Info("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown error", slog.Any("error", err))
					return err
				}
				return nil
			case err := <-serverDone:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8400", "listen address")
	cmd.Flags().DurationVar(&otelInterval, "otel-interval", 0, "log OpenTelemetry metric collections at this interval (0 disables)")

	return cmd
}

func newServeMux(auth goSession.Authenticator, cfg goSession.Config) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		r, rr := withResponse(r, w)
		if err := auth.Login(r.Context()); err != nil {
			http.Error(w, "sign-in failed", http.StatusBadGateway)
			return
		}
		if !rr.wrote {
			http.Redirect(w, r, "/me", http.StatusFound)
		}
	})

	mux.HandleFunc("POST /logout", func(w http.ResponseWriter, r *http.Request) {
		r, rr := withResponse(r, w)
		if err := auth.Logout(r.Context()); err != nil && !rr.wrote {
			http.Error(w, "sign-out incomplete", http.StatusBadGateway)
			return
		}
		if !rr.wrote {
			w.WriteHeader(http.StatusNoContent)
		}
	})

	if cfg.Mode == goSession.ModeProduction {
		redirect, err := url.Parse(cfg.Provider.RedirectURL)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid redirect URL: %v", goSession.ErrInvalidConfig, err)
		}
		path := redirect.Path
		if path == "" {
			path = "/callback"
		}
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			if err := goSession.CompleteRedirect(r.Context(), auth, r.URL); err != nil {
				http.Error(w, "sign-in failed", http.StatusBadRequest)
				return
			}
			http.Redirect(w, r, "/me", http.StatusFound)
		})
	}

	mux.HandleFunc("GET /session", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = printJSON(w, newSessionView(auth.Mode().String(), auth.Session()))
	})

	mux.Handle("GET /me", middleware.RequireSession(auth)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := middleware.UserFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = printJSON(w, user)
	})))

	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", prometheus.NewPrometheusExporter(auth).Handler())
	}

	return mux, nil
}
