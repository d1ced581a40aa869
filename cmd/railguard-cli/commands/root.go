// Copyright 2025 l3montree GmbH.
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "railguard-cli",
	Short: "Management cli",
	Long:  `The railguard cli can be used to manage a running railguard instance.`,
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}
