package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the localized site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :$BITPOET_PORT)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	cfg, logger, cleanup, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialise app", zap.Error(err))
		return err
	}
	defer a.Close()

	if addr == "" {
		addr = ":" + cfg.Server.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("web listening", zap.String("addr", addr), zap.Bool("dev", cfg.Server.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown error", zap.Error(err))
		}
		return nil
	})
	if a.listener != nil {
		g.Go(func() error {
			a.listen(gctx)
			return nil
		})
	}
	if cfg.Server.Dev {
		g.Go(func() error {
			if err := a.text.Watch(gctx, logger.Named("i18n")); err != nil {
				logger.Warn("catalog watch stopped", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("web stopped")
	return err
}
