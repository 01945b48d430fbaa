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
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/localdev/spv/pkg/config"
)

func TestSpawnCapturesOutputAndStops(t *testing.T) {
	Convey("Given a server spec whose command writes to stdout and stderr", t, func() {
		spec := config.ServerSpec{
			ID:         "spawn-test",
			Name:       "spawn-test",
			WorkingDir: os.TempDir(),
			Command:    `sh -c 'echo out-line; echo err-line 1>&2; sleep 5'`,
		}
		logs := NewLogBuffer(10)
		logger := zap.NewNop().Sugar()

		r, err := spawn(spec.ID, spec, nil, logs, logger)
		So(err, ShouldBeNil)
		So(r.Pid(), ShouldBeGreaterThan, 0)

		Convey("both streams land in the LogBuffer, stderr prefixed", func() {
			deadline := time.Now().Add(2 * time.Second)
			var sawOut, sawErr bool
			for time.Now().Before(deadline) && !(sawOut && sawErr) {
				for _, l := range logs.Snapshot(0) {
					if l.Text == "out-line" {
						sawOut = true
					}
					if strings.HasPrefix(l.Text, "[stderr] ") && strings.Contains(l.Text, "err-line") {
						sawErr = true
					}
				}
				time.Sleep(20 * time.Millisecond)
			}
			So(sawOut, ShouldBeTrue)
			So(sawErr, ShouldBeTrue)

			r.stop()
		})
	})
}

func TestStopEscalatesToSigkill(t *testing.T) {
	Convey("Given a process that ignores SIGTERM", t, func() {
		spec := config.ServerSpec{
			ID:         "ignore-term",
			Name:       "ignore-term",
			WorkingDir: os.TempDir(),
			Command:    `sh -c 'trap "" TERM; sleep 5'`,
		}
		logs := NewLogBuffer(10)
		r, err := spawn(spec.ID, spec, nil, logs, zap.NewNop().Sugar())
		So(err, ShouldBeNil)

		Convey("stop() still brings it down via the SIGKILL escalation", func() {
			start := time.Now()
			r.stop()
			So(time.Since(start), ShouldBeLessThan, 3*time.Second)

			ev := r.wait()
			So(ev.Err, ShouldBeNil)
		})
	})
}

func TestPathPrefix(t *testing.T) {
	Convey("pathPrefix joins the working directory's node_modules/.bin ahead of extraPaths", t, func() {
		got := pathPrefix("/srv/app", []string{"/opt/tools/bin"})
		So(got, ShouldEqual, "/srv/app/node_modules/.bin"+string(os.PathListSeparator)+"/opt/tools/bin")
	})
}
