// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/tesseract/services/grid"
	"github.com/AleutianAI/tesseract/services/grid/api"
	"github.com/AleutianAI/tesseract/services/grid/config"
	"github.com/AleutianAI/tesseract/services/grid/layout"
	"github.com/AleutianAI/tesseract/services/grid/pipenet"
	"github.com/AleutianAI/tesseract/services/grid/sim"
	"github.com/AleutianAI/tesseract/services/grid/store"
	"github.com/AleutianAI/tesseract/services/grid/telemetry"
)

func newServeCmd(a *app) *cobra.Command {
	var layoutPath string
	var noStore bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the grid simulation with its HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if layoutPath != "" {
				a.cfg.Layout.Path = layoutPath
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, !noStore)
		},
	}
	cmd.Flags().StringVar(&layoutPath, "layout", "", "layout file to load at startup")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "disable the snapshot database")
	return cmd
}

func (a *app) openStore(gc bool) (*store.Store, error) {
	sc := store.DefaultConfig()
	sc.Path = config.ExpandHome(a.cfg.Store.Path)
	sc.InMemory = a.cfg.Store.InMemory
	sc.SyncWrites = a.cfg.Store.SyncWrites
	sc.Logger = a.logger.Slog().With(slog.String("component", "badger"))
	sc.GCInterval = 0
	if gc {
		sc.GCInterval = a.cfg.Store.GCInterval
	}
	return store.Open(sc)
}

func (a *app) diagnostics() (grid.Diagnostics, error) {
	logDiag := &grid.LogDiagnostics{Logger: a.logger.Slog()}
	if a.cfg.Telemetry.MetricExporter == "none" {
		return logDiag, nil
	}
	metricDiag, err := grid.NewMetricDiagnostics(otel.Meter("tesseract.grid"))
	if err != nil {
		return nil, err
	}
	return grid.MultiDiagnostics{logDiag, metricDiag}, nil
}

// serve runs the runner, the HTTP server and the optional layout watcher
// until ctx is cancelled or one of them fails.
func (a *app) serve(ctx context.Context, withStore bool) error {
	logger := a.logger.Slog()
	cfg := a.cfg

	providers, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	diag, err := a.diagnostics()
	if err != nil {
		return fmt.Errorf("create grid metrics: %w", err)
	}

	var st *store.Store
	if withStore {
		st, err = a.openStore(true)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	hub := sim.NewHub(cfg.Sim.EventBuffer)
	runner := sim.NewRunner(sim.Options{
		Name:         cfg.Sim.Name,
		TickInterval: cfg.Sim.TickInterval,
		Hub:          hub,
		Diagnostics:  diag,
		Logger:       logger,
	})

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.Telemetry.ServiceName))
	if h := providers.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	api.RegisterRoutes(router.Group("/v1"), api.NewHandlers(runner, api.Options{
		Store:              st,
		MutationsPerSecond: cfg.Server.MutationsPerSecond,
		MutationBurst:      cfg.Server.MutationBurst,
		Logger:             logger,
	}))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("grid API listening", slog.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		hub.Close()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if cfg.Layout.Path != "" {
		g.Go(func() error {
			return a.followLayout(gctx, runner)
		})
	}

	a.printer.Success("serving %s on http://%s/v1/grid", cfg.Sim.Name, cfg.Server.Addr)
	err = g.Wait()
	logger.Info("grid API stopped")
	return err
}

// followLayout bulk-loads the configured layout and, when watching, applies
// every later version of the file.
func (a *app) followLayout(ctx context.Context, runner *sim.Runner) error {
	logger := a.logger.Slog()
	path := config.ExpandHome(a.cfg.Layout.Path)

	l, err := layout.ReadFile(path)
	if err != nil {
		return err
	}
	err = runner.Do(ctx, func(w *pipenet.World) error {
		res, err := layout.BulkLoad(ctx, w, l)
		if err == nil {
			logger.Info("layout loaded",
				slog.String("path", path),
				slog.Int("tiles", res.Tiles),
				slog.Int("networks", res.Networks))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("load layout %s: %w", path, err)
	}

	if !a.cfg.Layout.Watch {
		return nil
	}
	watcher, err := layout.NewWatcher(path, func(ctx context.Context, l *layout.Layout) {
		err := runner.Do(ctx, func(w *pipenet.World) error {
			_, err := layout.Apply(ctx, w, l)
			return err
		})
		if err != nil && !errors.Is(err, sim.ErrRunnerStopped) {
			logger.Warn("layout reload failed", slog.String("error", err.Error()))
		}
	}, layout.WatcherOptions{Debounce: a.cfg.Layout.Debounce, Logger: logger})
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}
