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

package io

import (
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu     sync.Mutex
	values []int
}

func (r *recorder) Set(v int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
	return nil
}

func (r *recorder) get() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.values...)
}

func TestSwPwm(t *testing.T) {
	Convey("A software PWM toggles its output", t, func() {
		r := &recorder{}
		p := NewSwPWM(r)
		So(p.Set(2*time.Millisecond, time.Millisecond), ShouldBeNil)
		time.Sleep(30 * time.Millisecond)
		p.Close()
		v := r.get()
		So(v[0], ShouldEqual, 0)
		So(v, ShouldContain, 1)
		So(v[len(v)-1], ShouldEqual, 0)
		for i := 1; i < len(v)-1; i++ {
			So(v[i], ShouldNotEqual, v[i-1])
		}
	})

	Convey("Invalid settings are rejected", t, func() {
		p := NewSwPWM(&recorder{})
		defer p.Close()
		So(p.Set(0, 0), ShouldNotBeNil)
		So(p.Set(time.Millisecond, 2*time.Millisecond), ShouldNotBeNil)
		So(p.Set(time.Millisecond, -time.Millisecond), ShouldNotBeNil)
		So(p.Set(time.Millisecond, 0), ShouldBeNil)
	})
}

func TestPollTimeout(t *testing.T) {
	Convey("Poll timeouts are in milliseconds", t, func() {
		So(pollTimeout(-1), ShouldEqual, -1)
		So(pollTimeout(0), ShouldEqual, 0)
		So(pollTimeout(watchPoll), ShouldEqual, 100)
		So(pollTimeout(1500*time.Microsecond), ShouldEqual, 1)
	})
}

func TestAttr(t *testing.T) {
	Convey("Attribute paths are under the class directory", t, func() {
		So(gpioClass.attr("gpio", 17, "value"), ShouldEqual, "/sys/class/gpio/gpio17/value")
		So(pwmClass.attr("pwm", 1, "duty_cycle"), ShouldEqual, "/sys/class/pwm/pwmchip0/pwm1/duty_cycle")
	})
}
