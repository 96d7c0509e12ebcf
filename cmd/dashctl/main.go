// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dashctl browses and edits a dashhub dashboard from the terminal.
//
// # Usage
//
//	dashctl tree                       # root sections with their cards
//	dashctl tree <dashboard-id>        # one sub-dashboard
//	dashctl card add --section tools --title Grafana --description Metrics --url https://grafana.local
//	dashctl card edit <card-id> --interactive
//	dashctl --dashboard <id> section add --title Runbooks
//	dashctl section delete <section-id> --yes
//
// Settings come from ~/.dashhub/dashctl.yaml and are overridden by
// DASHHUB_SERVER, DASHHUB_TOKEN and then by flags.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anhmake/dashhub/pkg/logging"
	"github.com/anhmake/dashhub/pkg/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdin).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the persistent flags shared by every subcommand.
type app struct {
	stdin io.Reader

	configPath  string
	server      string
	token       string
	timeout     time.Duration
	dashboardID string
	noColor     bool
	verbose     bool
}

func newRootCmd(stdin io.Reader) *cobra.Command {
	a := &app{stdin: stdin}

	root := &cobra.Command{
		Use:   "dashctl",
		Short: "Browse and edit a dashhub dashboard",
		Long: `dashctl talks to a dashhub server. Reads go through a short-lived
cache with bulk and fallback loading; edits are applied optimistically and
reconciled against the server before the command returns.`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", defaultConfigPath(), "config file")
	pf.StringVar(&a.server, "server", "", "dashboard server URL (default "+DefaultServer+")")
	pf.StringVar(&a.token, "token", "", "access token")
	pf.DurationVar(&a.timeout, "timeout", 0, "request timeout (default 15s)")
	pf.StringVar(&a.dashboardID, "dashboard", "", "sub-dashboard whose sections edits apply to (default: root sections)")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "log fallbacks and reconciliation")

	root.AddCommand(
		a.treeCmd(),
		a.iconsCmd(),
		a.whoamiCmd(),
		a.cardCmd(),
		a.sectionCmd(),
	)
	return root
}

// open resolves the configuration and starts a session.
func (a *app) open(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	cfg.Server = getEnvString("DASHHUB_SERVER", cfg.Server)
	cfg.Token = getEnvString("DASHHUB_TOKEN", cfg.Token)
	if a.server != "" {
		cfg.Server = a.server
	}
	if a.token != "" {
		cfg.Token = a.token
	}
	if a.timeout > 0 {
		cfg.Timeout = a.timeout
	}

	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(level),
		Service: "dashctl",
		Output:  cmd.ErrOrStderr(),
	})
	return newSession(cfg, a.dashboardID, logger.Slog()), nil
}

func (a *app) printer(cmd *cobra.Command) *ux.Printer {
	return ux.NewPrinter(cmd.OutOrStdout(), !a.noColor)
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
