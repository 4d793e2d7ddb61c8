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

package notify

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSignal(t *testing.T) {
	Convey("A new signal is clear", t, func() {
		s := New()
		So(s.Pending(), ShouldBeFalse)
		So(s.Wait(10*time.Millisecond), ShouldBeFalse)
	})

	Convey("Repeated signals collapse to one wakeup", t, func() {
		s := New()
		for i := 0; i < 100; i++ {
			s.Signal()
		}
		So(s.Pending(), ShouldBeTrue)
		So(s.Wait(10*time.Millisecond), ShouldBeTrue)
		So(s.Pending(), ShouldBeFalse)
		So(s.Wait(10*time.Millisecond), ShouldBeFalse)
	})

	Convey("A burst of signals wakes a parked consumer once", t, func() {
		s := New()
		done := make(chan bool)
		go func() {
			done <- s.Wait(200 * time.Millisecond)
		}()
		time.Sleep(20 * time.Millisecond)
		for i := 0; i < 10; i++ {
			s.Signal()
		}
		So(<-done, ShouldBeTrue)
		// The rest of the burst leaves at most one pending wakeup.
		woken := 0
		for s.Wait(10 * time.Millisecond) {
			woken++
		}
		So(woken, ShouldBeLessThanOrEqualTo, 1)
		So(s.Pending(), ShouldBeFalse)
	})

	Convey("A parked waiter is released by a signal", t, func() {
		s := New()
		done := make(chan bool)
		go func() {
			done <- s.Wait(0)
		}()
		time.Sleep(10 * time.Millisecond)
		s.Signal()
		select {
		case ok := <-done:
			So(ok, ShouldBeTrue)
		case <-time.After(time.Second):
			So("waiter not released", ShouldBeEmpty)
		}
	})
}
