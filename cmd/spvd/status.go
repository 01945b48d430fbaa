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

	"github.com/spf13/cobra"
)

type serverInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Port      int    `json:"port"`
	Status    string `json:"status"`
	Healthy   bool   `json:"healthy"`
	LastError string `json:"lastError"`
	PID       int    `json:"pid"`
}

type serverList struct {
	Servers []serverInfo `json:"servers"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List managed servers and their status",
	Run:   execStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func execStatusCmd(cmd *cobra.Command, args []string) {
	c := newAPIClient(apiAddrFlag)

	var list serverList
	if err := c.get("/servers", &list); err != nil {
		fatalf("status: %v", err)
	}

	if len(list.Servers) == 0 {
		fmt.Println("No servers configured.")
		return
	}

	for _, info := range list.Servers {
		health := "-"
		if info.Status == "running" {
			health = "unhealthy"
			if info.Healthy {
				health = "healthy"
			}
		}
		fmt.Printf("%-20s %-10s pid=%-8d %-10s %s\n", info.Name, info.Status, info.PID, health, info.LastError)
	}
}
