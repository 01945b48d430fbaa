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
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Start a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postOne(args[0], "start")
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postOne(args[0], "stop")
	},
}

var restartCmd = &cobra.Command{
	Use:   "restart <id>",
	Short: "Restart a server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		postOne(args[0], "restart")
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Stop every server, re-read settings.json, and rebuild state from it",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(apiAddrFlag)
		if err := c.post("/servers/reload-settings", nil); err != nil {
			fatalf("reload: %v", err)
		}
		fmt.Println("settings reloaded")
	},
}

var stopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Gracefully stop every managed server",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(apiAddrFlag)
		if err := c.post("/servers/stop-all", nil); err != nil {
			fatalf("stop-all: %v", err)
		}
		fmt.Println("all servers stopped")
	},
}

var startAllCmd = &cobra.Command{
	Use:   "start-all",
	Short: "Start every configured server that is not already running",
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(apiAddrFlag)
		if err := c.post("/servers/start-all", nil); err != nil {
			fatalf("start-all: %v", err)
		}
		fmt.Println("all servers started")
	},
}

var shutdownPidFileFlag string

var shutdownCmd = &cobra.Command{
	Use:   "shutdown",
	Short: "Signal a daemonized spvd to run its shutdown sequence and exit",
	Run: func(cmd *cobra.Command, args []string) {
		pidFile := shutdownPidFileFlag
		if pidFile == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				fatalf("shutdown: resolve home directory: %v", err)
			}
			pidFile = home + "/.servers/spvd.pid"
		}

		raw, err := os.ReadFile(pidFile)
		if err != nil {
			fatalf("shutdown: read pid file %s: %v", pidFile, err)
		}
		pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			fatalf("shutdown: parse pid file %s: %v", pidFile, err)
		}

		if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
			fatalf("shutdown: signal pid %d: %v", pid, err)
		}
		fmt.Printf("sent shutdown signal to pid %d\n", pid)
	},
}

func init() {
	shutdownCmd.Flags().StringVar(&shutdownPidFileFlag, "pid-file", "", "PID file written by 'spvd serve -d' (defaults to ~/.servers/spvd.pid)")
	rootCmd.AddCommand(startCmd, stopCmd, restartCmd, reloadCmd, stopAllCmd, startAllCmd, shutdownCmd)
}

func postOne(id, action string) {
	c := newAPIClient(apiAddrFlag)
	if err := c.post(fmt.Sprintf("/servers/%s/%s", id, action), nil); err != nil {
		fatalf("%s %s: %v", action, id, err)
	}
	fmt.Printf("%s: %s\n", id, action)
}
