// Copyright 2021 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestKeys(t *testing.T) {
	Convey("The end of input does not quit", t, func() {
		var n int32
		quit := keys(strings.NewReader("ab\n"), func() { atomic.AddInt32(&n, 1) })
		select {
		case <-quit:
			So("quit on end of input", ShouldBeEmpty)
		case <-time.After(50 * time.Millisecond):
		}
		So(atomic.LoadInt32(&n), ShouldEqual, 2)
	})

	Convey("An empty input does not quit", t, func() {
		quit := keys(strings.NewReader(""), func() {})
		select {
		case <-quit:
			So("quit on empty input", ShouldBeEmpty)
		case <-time.After(50 * time.Millisecond):
		}
	})

	Convey("'q' and 'Q' quit", t, func() {
		for _, in := range []string{"xq", "Q\n"} {
			var n int32
			quit := keys(strings.NewReader(in), func() { atomic.AddInt32(&n, 1) })
			select {
			case <-quit:
			case <-time.After(time.Second):
				So("did not quit", ShouldBeEmpty)
			}
			So(atomic.LoadInt32(&n), ShouldEqual, strings.Count(in, "x"))
		}
	})
}
