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

// +build darwin dragonfly freebsd linux netbsd openbsd solaris

package spv

import (
	"errors"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/localdev/spv/pkg/config"
)

func newTestManager(t *testing.T, specs ...config.ServerSpec) *Manager {
	t.Helper()
	settings := &config.Settings{Servers: specs}
	return New("", settings, nil, zap.NewNop().Sugar())
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve ephemeral port: %v", err)
	}
	defer ln.Close()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return port
}

func waitForStatus(m *Manager, id string, want Status, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		info, err := m.GetInfo(id)
		if err == nil && info.Status == want.String() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func TestManagerStartStopLifecycle(t *testing.T) {
	Convey("Given a Manager with one long-lived server", t, func() {
		spec := config.ServerSpec{ID: "a", Name: "a", WorkingDir: os.TempDir(), Command: "sleep 30"}
		m := newTestManager(t, spec)

		Convey("Start transitions it to Running with a live pid", func() {
			So(m.Start("a"), ShouldBeNil)
			So(waitForStatus(m, "a", StatusRunning, time.Second), ShouldBeTrue)

			info, err := m.GetInfo("a")
			So(err, ShouldBeNil)
			So(info.PID, ShouldBeGreaterThan, 0)

			Convey("starting it again is a no-op returning success", func() {
				So(m.Start("a"), ShouldBeNil)
			})

			Convey("Stop brings it back to Stopped and stop on a stopped server is a no-op", func() {
				So(m.Stop("a"), ShouldBeNil)
				So(waitForStatus(m, "a", StatusStopped, 3*time.Second), ShouldBeTrue)
				So(m.Stop("a"), ShouldBeNil)
			})
		})

		Convey("Start on an unknown id returns ErrServerNotFound", func() {
			So(m.Start("nope"), ShouldEqual, ErrServerNotFound)
		})
	})
}

func TestManagerCrashGovernor(t *testing.T) {
	Convey("Given a server whose command exits immediately with a nonzero code", t, func() {
		spec := config.ServerSpec{ID: "crasher", Name: "crasher", WorkingDir: os.TempDir(), Command: "sh -c 'exit 1'"}
		m := newTestManager(t, spec)

		Convey("repeated crashes accumulate in CrashTimes until cooldown", func() {
			So(m.Start("crasher"), ShouldBeNil)
			So(waitForStatus(m, "crasher", StatusCooldown, 10*time.Second), ShouldBeTrue)

			info, err := m.GetInfo("crasher")
			So(err, ShouldBeNil)
			So(info.InCooldown, ShouldBeTrue)
			So(info.CrashCount, ShouldEqual, maxCrashes)
		})
	})
}

func TestManagerManualRestartClearsGovernor(t *testing.T) {
	Convey("Given a server in cooldown", t, func() {
		spec := config.ServerSpec{ID: "crasher", Name: "crasher", WorkingDir: os.TempDir(), Command: "sh -c 'exit 1'"}
		m := newTestManager(t, spec)
		So(m.Start("crasher"), ShouldBeNil)
		So(waitForStatus(m, "crasher", StatusCooldown, 10*time.Second), ShouldBeTrue)

		Convey("Restart resets CrashTimes and leaves Cooldown", func() {
			So(m.Restart("crasher"), ShouldBeNil)

			deadline := time.Now().Add(2 * time.Second)
			left := false
			crashCount := maxCrashes
			for time.Now().Before(deadline) {
				info, err := m.GetInfo("crasher")
				So(err, ShouldBeNil)
				if info.Status != StatusCooldown.String() {
					left = true
					crashCount = info.CrashCount
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
			So(left, ShouldBeTrue)
			So(crashCount, ShouldBeLessThan, maxCrashes)
		})
	})
}

func TestManagerPortConflict(t *testing.T) {
	Convey("Given two specs sharing a port", t, func() {
		port := freePort(t)
		a := config.ServerSpec{ID: "a", Name: "a", WorkingDir: os.TempDir(), Command: "sleep 30", Port: port}
		b := config.ServerSpec{ID: "b", Name: "b", WorkingDir: os.TempDir(), Command: "sleep 30", Port: port}
		m := newTestManager(t, a, b)

		Convey("starting the second while the first is running fails with ErrPortConflict", func() {
			So(m.Start("a"), ShouldBeNil)
			So(waitForStatus(m, "a", StatusRunning, time.Second), ShouldBeTrue)

			err := m.Start("b")
			So(err, ShouldNotBeNil)
			So(errors.Is(err, ErrPortConflict), ShouldBeTrue)

			m.Stop("a")
		})
	})
}

func TestManagerReloadSettings(t *testing.T) {
	Convey("Given a running server not present in the reloaded settings", t, func() {
		dir := t.TempDir()
		path := dir + "/settings.json"

		a := config.ServerSpec{ID: "a", Name: "a", WorkingDir: os.TempDir(), Command: "sleep 30"}
		b := config.ServerSpec{ID: "b", Name: "b", WorkingDir: os.TempDir(), Command: "sleep 30"}
		So(config.Save(path, &config.Settings{Servers: []config.ServerSpec{a, b}}), ShouldBeNil)

		settings, err := config.Load(path)
		So(err, ShouldBeNil)
		m := New(path, settings, nil, zap.NewNop().Sugar())

		So(m.Start("a"), ShouldBeNil)
		So(m.Start("b"), ShouldBeNil)
		So(waitForStatus(m, "a", StatusRunning, time.Second), ShouldBeTrue)
		So(waitForStatus(m, "b", StatusRunning, time.Second), ShouldBeTrue)

		Convey("reloading to {a,c} leaves a Stopped, drops b, and adds c Stopped", func() {
			c := config.ServerSpec{ID: "c", Name: "c", WorkingDir: os.TempDir(), Command: "sleep 30"}
			So(config.Save(path, &config.Settings{Servers: []config.ServerSpec{a, c}}), ShouldBeNil)

			So(m.ReloadSettings(), ShouldBeNil)

			infoA, err := m.GetInfo("a")
			So(err, ShouldBeNil)
			So(infoA.Status, ShouldEqual, StatusStopped.String())

			_, err = m.GetInfo("b")
			So(err, ShouldEqual, ErrServerNotFound)

			infoC, err := m.GetInfo("c")
			So(err, ShouldBeNil)
			So(infoC.Status, ShouldEqual, StatusStopped.String())
		})
	})
}

func TestManagerClearLogs(t *testing.T) {
	Convey("Given a server with buffered log lines", t, func() {
		spec := config.ServerSpec{ID: "a", Name: "a", WorkingDir: os.TempDir(), Command: "sh -c 'echo hi; sleep 30'"}
		m := newTestManager(t, spec)
		So(m.Start("a"), ShouldBeNil)
		So(waitForStatus(m, "a", StatusRunning, time.Second), ShouldBeTrue)

		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) {
			lines, _ := m.GetLogs("a", 0)
			if len(lines) > 0 {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		Convey("ClearLogs empties the buffer", func() {
			So(m.ClearLogs("a"), ShouldBeNil)
			size, err := m.LogSize("a")
			So(err, ShouldBeNil)
			So(size, ShouldEqual, 0)
			m.Stop("a")
		})
	})
}
