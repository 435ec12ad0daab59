package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pthm/hxdash"
	hxdashecho "github.com/pthm/hxdash/adapters/echo"
	hxdashgin "github.com/pthm/hxdash/adapters/gin"
	"github.com/pthm/hxdash/internal/config"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			d, err := buildDashboard(a.cfg, a.logger)
			if err != nil {
				return err
			}
			// Compute the shared artifacts up front so the first page load
			// doesn't pay for them.
			if err := d.Warm(cmd.Context()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, d)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// router mounts d on the configured adapter. /metrics sits in front of it so
// it never collides with an adapter's catch-all route.
func (a *app) router(d *hxdash.Dashboard) http.Handler {
	var h http.Handler
	switch a.cfg.Server.Adapter {
	case config.AdapterEcho:
		e := echo.New()
		e.HideBanner = true
		e.HidePort = true
		hxdashecho.Mount(e, d)
		h = e
	case config.AdapterGin:
		gin.SetMode(gin.ReleaseMode)
		r := gin.New()
		r.Use(gin.Recovery())
		hxdashgin.Mount(r, d)
		h = r
	default:
		mux := http.NewServeMux()
		mux.Handle(d.BasePath()+"/", d.MountedHandler())
		h = mux
	}
	if !a.cfg.Server.Metrics {
		return h
	}
	outer := http.NewServeMux()
	outer.Handle("/metrics", promhttp.Handler())
	outer.Handle("/", h)
	return outer
}

func (a *app) serve(ctx context.Context, d *hxdash.Dashboard) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.router(d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving dashboard",
			"addr", srv.Addr,
			"adapter", a.cfg.Server.Adapter,
			"base_path", d.BasePath(),
			"model", d.Model().ID())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
