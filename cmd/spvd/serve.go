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

package main

import (
	"fmt"
	"os"

	"github.com/gnuos/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	spv "github.com/localdev/spv"
	"github.com/localdev/spv/pkg/config"
	"github.com/localdev/spv/pkg/logging"
	"github.com/localdev/spv/rest"
)

var (
	daemonizeFlag bool
	pidFileFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor",
	Run:   execServeCmd,
}

func init() {
	serveCmd.Flags().BoolVarP(&daemonizeFlag, "daemonize", "d", false, "Fork into the background instead of staying in the foreground")
	serveCmd.Flags().StringVar(&pidFileFlag, "pid-file", "", "PID file for daemonized runs (defaults to ~/.servers/spvd.pid)")
	rootCmd.AddCommand(serveCmd)
}

func execServeCmd(cmd *cobra.Command, args []string) {
	settingsPath := viper.GetString("settings.path")
	if settingsPath == "" {
		var err error
		settingsPath, err = config.DefaultSettingsPath()
		if err != nil {
			fatalf("resolve settings path: %v", err)
		}
	}

	if pidFileFlag == "" {
		home, _ := os.UserHomeDir()
		pidFileFlag = home + "/.servers/spvd.pid"
	}

	if daemonizeFlag {
		ctx := &daemon.Context{
			PidFileName: pidFileFlag,
			PidFilePerm: 0644,
			Umask:       027,
			Args:        os.Args,
		}
		d, err := ctx.Reborn()
		if err != nil {
			fatalf("daemonize: %v", err)
		}
		if d != nil {
			// Parent process: the child has been forked off, nothing more to do.
			return
		}
		defer func() { _ = ctx.Release() }()
	}

	runSupervisor(settingsPath)
}

func runSupervisor(settingsPath string) {
	logger := logging.New("spvd", logging.Options{
		Level:    viper.GetString("log.level"),
		FilePath: viper.GetString("log.file"),
		Console:  !daemonizeFlag,
	})
	defer func() { _ = logger.Sync() }()

	settings, err := config.Load(settingsPath)
	if err != nil {
		logger.Warnw("could not load settings, starting with an empty server list", "path", settingsPath, "err", err)
		settings = &config.Settings{}
	}

	extraPaths := viper.GetStringSlice("extraPaths")
	mgr := spv.New(settingsPath, settings, extraPaths, logger)

	addr := viper.GetString("api.addr")
	if addr == "" {
		addr = fmt.Sprintf("127.0.0.1:%d", settings.EffectiveAPIPort())
	}
	api := rest.New(addr, mgr, logger)

	coordinator := spv.NewShutdownCoordinator(mgr, api, logger)
	coordinator.ListenForSignals()

	mgr.StartAutostart()

	logger.Infow("control API listening", "addr", addr)
	if err := api.Serve(); err != nil {
		logger.Errorw("control API exited", "err", err)
	}
}
