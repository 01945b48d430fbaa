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

type logsResponse struct {
	ID         string   `json:"id"`
	Lines      []string `json:"lines"`
	TotalLines int      `json:"totalLines"`
}

var logsLinesFlag int

var logsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Print a server's captured output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := newAPIClient(apiAddrFlag)

		var resp logsResponse
		path := fmt.Sprintf("/servers/%s/logs?lines=%d", args[0], logsLinesFlag)
		if err := c.get(path, &resp); err != nil {
			fatalf("logs: %v", err)
		}

		for _, line := range resp.Lines {
			fmt.Println(line)
		}
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLinesFlag, "lines", 100, "Number of trailing log lines to print")
	rootCmd.AddCommand(logsCmd)
}
