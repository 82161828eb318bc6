// Copyright (C) 2026 SherlockBench Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/sherlockbench/sherlockbench-go/pkg/config"
	"github.com/sherlockbench/sherlockbench-go/pkg/logging"
)

// --- Global Command Variables ---
var (
	configPath      string
	credentialsPath string

	cfg    *config.Config
	logger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "sherlockbench",
		Short: "A client for running SherlockBench function-deduction benchmarks",
		Long: `SherlockBench drives language models against a benchmark server
that hosts mystery functions. The model investigates each function by
calling it, then predicts its output on unseen inputs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath, credentialsPath)
			if err != nil {
				return err
			}
			logger = logging.Init(logging.Config{
				Level:   logging.ParseLevel(cfg.LogLevel),
				LogDir:  cfg.LogDir,
				Service: "sherlockbench",
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				logger.Close()
			}
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&credentialsPath, "credentials", "credentials.yaml",
		"Path to the credentials file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(transcriptCmd)
	rootCmd.AddCommand(labelCmd)
}
