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
	"time"

	"github.com/localdev/spv/pkg/config"
)

// Crash governor constants.
const (
	crashWindow           = 60 * time.Second
	maxCrashes            = 3
	cooldownDuration      = 300 * time.Second
	restartBackoffOnCrash = 2 * time.Second
)

// Status is a server's place in the supervision state machine.
type Status int

const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusCrashed
	StatusCooldown
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusCrashed:
		return "crashed"
	case StatusCooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// ServerState is everything the Manager tracks for one configured server.
// All mutable fields are owned by the Manager's single serialization
// point (see doc.go); nothing here locks itself except Logs, which is
// independently safe for concurrent append/snapshot from reader and
// request goroutines.
//
// Status, its crash-rate window, and its log buffer are held together
// here under the Manager's lock.
type ServerState struct {
	Spec      config.ServerSpec
	Status    Status
	Healthy   bool
	LastError string
	PID       int
	Logs      *LogBuffer

	// CrashTimes holds exit timestamps for unexpected exits within the
	// trailing crashWindow, oldest first.
	CrashTimes []time.Time
	InCooldown bool

	child        *runner
	healthCancel func()
	requested    bool // true while a Stop/Restart-initiated stop is in flight
}

func newServerState(spec config.ServerSpec) *ServerState {
	return &ServerState{
		Spec:   spec,
		Status: StatusStopped,
		Logs:   NewLogBuffer(MaxLogLines),
	}
}

// pruneCrashTimes drops entries older than crashWindow relative to now.
func pruneCrashTimes(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-crashWindow)
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

// recordCrash appends now to crashTimes, prunes entries outside
// crashWindow, and reports whether the server has now crashed too many
// times within the window (maxCrashes) and should enter cooldown rather
// than restart immediately.
func recordCrash(times []time.Time, now time.Time) (pruned []time.Time, cooldown bool) {
	times = append(times, now)
	times = pruneCrashTimes(times, now)
	return times, len(times) >= maxCrashes
}
