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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/tesseract/pkg/logging"
	"github.com/AleutianAI/tesseract/pkg/ux"
	"github.com/AleutianAI/tesseract/services/grid/config"
)

// app is the state shared by every subcommand after the root pre-run.
type app struct {
	configPath string
	logLevel   string
	storePath  string
	plain      bool

	cfg     config.Config
	logger  *logging.Logger
	printer *ux.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gridsim",
		Short:         "Simulate pipe networks on an incremental connectivity grid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return a.logger.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.tesseract/gridsim.yaml)")
	flags.StringVar(&a.logLevel, "log-level", "", "override the configured log level")
	flags.StringVar(&a.storePath, "store", "", "override the snapshot database directory")
	flags.BoolVar(&a.plain, "plain", false, "disable styled output")

	root.AddCommand(
		newServeCmd(a),
		newLoadCmd(a),
		newVerifyCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path := a.configPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	cfg, created, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return err
		}
		cfg.Logging.Level = level
	}
	if a.storePath != "" {
		cfg.Store.Path = a.storePath
		cfg.Store.InMemory = false
	}
	a.cfg = cfg

	logCfg := cfg.Logging
	logCfg.Output = cmd.ErrOrStderr()
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	a.logger = logger
	slog.SetDefault(logger.Slog())

	a.printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	if a.plain {
		a.printer = a.printer.WithPlain(true)
	}

	if cfg.Logging.Level == logging.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if created {
		logger.Slog().Info("first run, wrote default config", slog.String("path", path))
	}
	return nil
}
