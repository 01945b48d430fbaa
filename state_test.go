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
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRecordCrash(t *testing.T) {
	Convey("Given an empty crash history", t, func() {
		var times []time.Time
		now := time.Now()

		Convey("a single crash never triggers cooldown", func() {
			times, cooldown := recordCrash(times, now)
			So(len(times), ShouldEqual, 1)
			So(cooldown, ShouldBeFalse)
		})

		Convey("maxCrashes-1 crashes within the window stays out of cooldown", func() {
			var cooldown bool
			for i := 0; i < maxCrashes-1; i++ {
				times, cooldown = recordCrash(times, now.Add(time.Duration(i)*time.Second))
			}
			So(len(times), ShouldEqual, maxCrashes-1)
			So(cooldown, ShouldBeFalse)
		})

		Convey("exactly maxCrashes crashes within the window triggers cooldown", func() {
			var cooldown bool
			for i := 0; i < maxCrashes; i++ {
				times, cooldown = recordCrash(times, now.Add(time.Duration(i)*time.Second))
			}
			So(len(times), ShouldEqual, maxCrashes)
			So(cooldown, ShouldBeTrue)
		})

		Convey("crashes outside crashWindow are pruned and don't count toward the limit", func() {
			times, _ = recordCrash(times, now)
			times, _ = recordCrash(times, now.Add(crashWindow+time.Second))
			times, cooldown := recordCrash(times, now.Add(crashWindow+2*time.Second))

			So(len(times), ShouldEqual, 2)
			So(cooldown, ShouldBeFalse)
		})
	})
}

func TestStatusString(t *testing.T) {
	Convey("Every defined Status has a non-empty string form", t, func() {
		for _, s := range []Status{StatusStopped, StatusStarting, StatusRunning, StatusCrashed, StatusCooldown} {
			So(s.String(), ShouldNotBeEmpty)
		}
	})
}
