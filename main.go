// summon - a hotkey-summoned chat window for a local model.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/summon/internal/app"
	"github.com/jeranaias/summon/internal/cli"
	"github.com/jeranaias/summon/internal/config"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		fail(err)
	}

	ctx := context.Background()
	switch cmd {
	case cli.CmdRun:
		err = runLauncher(ctx, args)
	case cli.CmdToggle:
		err = cli.HandleToggle(args)
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, args)
	case cli.CmdChat:
		err = cli.HandleChat(ctx, args)
	case cli.CmdStatus:
		err = cli.HandleStatus(ctx, args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.PrintVersion(os.Stdout)
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
	}
	if err != nil {
		fail(err)
	}
}

// runLauncher starts the resident launcher and blocks until it exits.
func runLauncher(ctx context.Context, args cli.Args) error {
	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}

	configPath := args.ConfigPath
	if configPath == "" {
		configPath, _ = config.ExistingPath()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer stop()

	launcher, err := app.New(ctx, app.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Adjust:     func(c *config.Config) { cli.ApplyFlags(c, args) },
	})
	if err != nil {
		return err
	}
	return launcher.Run()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if errors.Is(err, cli.ErrUsage) {
		fmt.Fprintln(os.Stderr, "Run 'summon help' for usage.")
	}
	os.Exit(1)
}
