// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-moneta.
//
// go-moneta is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package cli implements the moneta command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "moneta",
	Short: "go-moneta - passkey authentication service",
	Long: `go-moneta runs the passkey (WebAuthn) authentication service.

The service acts as a WebAuthn relying party: it registers passkeys,
authenticates users with them and issues session tokens. Identities and
credentials are stored in PostgreSQL, or in memory for development.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: built-in defaults with MONETA_* environment overrides)")
}
