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

	"github.com/focusforward/caseguard/pkg/api"
	"github.com/focusforward/caseguard/pkg/narrative"
	"github.com/focusforward/caseguard/pkg/rules"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			defer a.Close(context.Background())
			return runServe(ctx, a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	svc, err := a.service(ctx, true)
	if err != nil {
		return err
	}
	tallies, err := a.tallies(ctx)
	if err != nil {
		return err
	}
	validator, err := a.validator(ctx)
	if err != nil {
		return err
	}
	limiter, err := a.limiter(ctx)
	if err != nil {
		return err
	}

	handler := api.NewRouter(api.Options{
		Reviewer:    svc,
		Tallies:     tallies,
		Validator:   validator,
		Limiter:     limiter,
		RateRPS:     a.cfg.RateRPS,
		CORSOrigins: a.cfg.CORSOrigins,
		Versions: map[string]string{
			"version":       version,
			"rule_table":    rules.Canonical().Version().String(),
			"prompt_policy": narrative.PolicyVersion,
		},
		Logger: a.logger,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      a.cfg.GenerationTimeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("caseguard listening", "addr", srv.Addr, "version", version)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
