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

package spv

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// killByPort sends SIGKILL to whatever is listening on port, as reported
// by lsof. It's the belt-and-suspenders half of ForceStopAll: the tracked
// child handle is usually enough, but a server that forked and detached
// (or whose runner was lost across a supervisor restart) can leave a
// listener behind with no pid the Manager still knows about.
func killByPort(port int, logger *zap.SugaredLogger) {
	if port == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "lsof", "-ti", ":"+strconv.Itoa(port)).Output()
	if err != nil {
		return // nothing listening, or lsof unavailable; not an error condition
	}

	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
			logger.Debugw("port sweep kill failed", "port", port, "pid", pid, "err", err)
		}
	}
}
