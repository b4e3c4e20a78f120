// Copyright 2025 The PlaceGeo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"os"

	"github.com/audiotour/placegeo/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "placegeo",
	Short: "coordinates for the audio tour guide places",
	Long: `
placegeo keeps the coordinates of the tour guide's places accurate. It reads
the per-city place files, resolves each place through manual overrides, a
local cache and a geocoding service, and rewrites the files in place.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error

		cfg, err = config.Load(configFile, Version)
		if err != nil {
			return err
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return err
		}

		zap.RedirectStdLog(zap.L())

		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

var Version = "dev"

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default ./placegeo.yaml)")
}

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
