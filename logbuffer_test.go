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
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestStripANSI(t *testing.T) {
	Convey("Stripping ANSI escapes from raw child output", t, func() {
		Convey("removes CSI color codes", func() {
			So(stripANSI("\x1b[32mok\x1b[0m"), ShouldEqual, "ok")
		})

		Convey("removes a trailing carriage return", func() {
			So(stripANSI("building...\r"), ShouldEqual, "building...")
		})

		Convey("leaves plain text untouched", func() {
			So(stripANSI("plain line"), ShouldEqual, "plain line")
		})
	})
}

func TestLogBufferRingBehavior(t *testing.T) {
	Convey("Given a LogBuffer bounded at 3 lines", t, func() {
		buf := NewLogBuffer(3)

		Convey("appending fewer lines than the bound keeps them all", func() {
			buf.Append("one")
			buf.Append("two")

			So(buf.Size(), ShouldEqual, 2)
			lines := buf.Snapshot(0)
			So(lines[0].Text, ShouldEqual, "one")
			So(lines[1].Text, ShouldEqual, "two")
		})

		Convey("appending past the bound evicts the oldest entries", func() {
			for i := 0; i < 5; i++ {
				buf.Append(fmt.Sprintf("line-%d", i))
			}

			So(buf.Size(), ShouldEqual, 3)
			lines := buf.Snapshot(0)
			So(lines[0].Text, ShouldEqual, "line-2")
			So(lines[1].Text, ShouldEqual, "line-3")
			So(lines[2].Text, ShouldEqual, "line-4")
		})

		Convey("Snapshot(n) returns only the last n entries, oldest first", func() {
			for i := 0; i < 3; i++ {
				buf.Append(fmt.Sprintf("line-%d", i))
			}

			lines := buf.Snapshot(1)
			So(len(lines), ShouldEqual, 1)
			So(lines[0].Text, ShouldEqual, "line-2")
		})

		Convey("Clear empties the buffer", func() {
			buf.Append("one")
			buf.Clear()
			So(buf.Size(), ShouldEqual, 0)
			So(buf.Snapshot(0), ShouldBeEmpty)
		})
	})
}
