// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cli wires the collector's command line: flag parsing, config and
// environment binding, signal handling, and dispatch to the selected mode.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/awslabs/eks-log-collector/pkg/envinfo"
	"github.com/awslabs/eks-log-collector/pkg/logging"
	"github.com/awslabs/eks-log-collector/pkg/probe"
	"github.com/awslabs/eks-log-collector/pkg/version"
)

const name = "eks-log-collector"

var (
	cfgFile  string
	logLevel string

	mode       string
	reportPath string
	format     string
	logWindow  time.Duration
	publish    string
)

// rootCmd is the single top-level command; the operation is selected with
// --mode rather than subcommands so invocations stay stable across
// versions of node runbooks.
var rootCmd = &cobra.Command{
	Use:   name,
	Short: "eks-log-collector - EKS node diagnostics collector",
	Long: fmt.Sprintf(`eks-log-collector - EKS node diagnostics collector

Version: %s
Commit:  %s
Built:   %s

Gathers operating system logs, container runtime state, and EKS agent
diagnostics from a worker node into a single archive for support cases.
Must run as root on the node being diagnosed.`,
		version.Version, version.Commit, version.Date),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := probe.ParseMode(mode)
		if err != nil {
			// Unknown mode is a usage error, not a runtime one.
			_ = cmd.Usage()
			return err
		}

		switch m {
		case probe.ModeEnableDebug:
			return runEnableDebug(cmd.Context())
		default:
			return runCollect(cmd.Context())
		}
	},
}

// Execute runs the root command with graceful SIGINT/SIGTERM handling.
// Called once from main.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.eks-log-collector.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&mode, "mode", string(probe.ModeCollect),
		fmt.Sprintf("operation mode (%s, %s)", probe.ModeCollect, probe.ModeEnableDebug))
	rootCmd.Flags().StringVar(&reportPath, "report", "", "write the run report to this file instead of stdout")
	rootCmd.Flags().StringVar(&format, "format", "table", "run report format (json, yaml, table)")
	rootCmd.Flags().DurationVar(&logWindow, "since", envinfo.DefaultLogWindow, "how far back journal queries reach")
	rootCmd.Flags().StringVar(&publish, "publish", "", "optionally publish the bundle to an OCI registry (oci://registry/repo[:tag])")
}

// initConfig reads the optional config file and binds environment
// variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// Fail fast when the operator named a config that does not exist.
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
			os.Exit(1)
		}
		return
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return
	}

	viper.AddConfigPath(home)
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	viper.SetConfigName(".eks-log-collector")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("EKS_LOG_COLLECTOR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	_ = viper.ReadInConfig()
}

// initLogger configures slog after Cobra parses flags/config so overrides
// like --log-level take effect before any command executes.
func initLogger() {
	logging.SetDefaultStructuredLoggerWithLevel(name, version.Version, logLevel)
	slog.Info("starting",
		"name", name,
		"version", version.Version,
		"commit", version.Commit,
		"date", version.Date,
		"logLevel", logLevel)
}
