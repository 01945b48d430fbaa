// Copyright 2026 The Spv Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main is the spvd command-line entry point: a thin HTTP client
// over the Control API, plus the "serve" subcommand that actually runs
// the supervisor.
//
// Grounded on gnuos-spm's cmd package layout (one file per subcommand,
// a shared rootCmd with persistent flags, init()-time registration).
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	apiAddrFlag    string
	settingsFlag   string
	logLevelFlag   string
	logFileFlag    string
	extraPathsFlag []string
)

var rootCmd = &cobra.Command{
	Use:           "spvd",
	Short:         "supervises a set of local development servers",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&apiAddrFlag, "api-addr", "127.0.0.1:7378", "Control API address")
	rootCmd.PersistentFlags().StringVar(&settingsFlag, "settings", "", "Path to settings.json (defaults to ~/.servers/settings.json)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "Supervisor log level")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Supervisor log file path (empty logs to console only)")
	rootCmd.PersistentFlags().StringSliceVar(&extraPathsFlag, "extra-path", nil, "Additional PATH entry for spawned servers (repeatable)")

	_ = viper.BindPFlag("api.addr", rootCmd.PersistentFlags().Lookup("api-addr"))
	_ = viper.BindPFlag("settings.path", rootCmd.PersistentFlags().Lookup("settings"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("extraPaths", rootCmd.PersistentFlags().Lookup("extra-path"))

	viper.SetEnvPrefix("SPV")
	viper.AutomaticEnv()

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetConfigName("spv")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(filepath.Join(home, ".servers"))
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				fmt.Fprintf(os.Stderr, "spvd: warning: reading ~/.servers/spv.yaml: %v\n", err)
			}
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
