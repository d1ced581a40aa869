// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"log/slog"
	"os"

	"github.com/l3montree-dev/railguard/cmd/railguard-cli/commands"
	"github.com/l3montree-dev/railguard/shared"

	_ "github.com/lib/pq"
)

func Execute() {
	err := commands.GetRootCmd().Execute()
	if err != nil {
		slog.Error("Error executing command", "err", err)
		os.Exit(1)
	}
}

func init() {
	commands.GetRootCmd().AddCommand(commands.NewMigrateCommand())
	commands.GetRootCmd().AddCommand(commands.NewSeedCommand())
}

func main() {
	shared.InitLogger()
	Execute()
}
