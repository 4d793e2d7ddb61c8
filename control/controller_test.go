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

package control

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aamcrae/motorsync/hw"
	"github.com/aamcrae/motorsync/link"
	"github.com/aamcrae/motorsync/regulator"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeLink is an in-memory transport.
type fakeLink struct {
	mu     sync.Mutex
	sent   []int32
	in     chan int32
	closed chan struct{}
	once   sync.Once
	fail   error
}

func newFakeLink() *fakeLink {
	return &fakeLink{in: make(chan int32, 10), closed: make(chan struct{})}
}

func (f *fakeLink) Send(v int32) error {
	select {
	case <-f.closed:
		return link.ErrClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, v)
	return nil
}

func (f *fakeLink) Receive(timeout time.Duration) (int32, error) {
	var tc <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		tc = t.C
	}
	select {
	case v := <-f.in:
		return v, nil
	case <-f.closed:
		return 0, link.ErrClosed
	case <-tc:
		return 0, link.ErrTimeout
	}
}

func (f *fakeLink) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeLink) Sent() []int32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int32(nil), f.sent...)
}

// failingHw cannot enable the encoder interrupt.
type failingHw struct {
	*hw.Sim
}

func (failingHw) EnableEncoderInterrupt(func()) error {
	return errors.New("no irq")
}

// eventually polls cond until it is true or a second has passed.
func eventually(cond func() bool) bool {
	for end := time.Now().Add(time.Second); time.Now().Before(end); time.Sleep(time.Millisecond) {
		if cond() {
			return true
		}
	}
	return cond()
}

func options(remote string) Options {
	return Options{
		Remote:  remote,
		Params:  regulator.Default(),
		Refresh: 10 * time.Second,
		Grace:   time.Millisecond,
	}
}

func TestTarget(t *testing.T) {
	Convey("Targets resolve to their own source", t, func() {
		var p Position
		p.Store(42)
		r := RemoteTarget(&p)
		So(r.Kind(), ShouldEqual, Remote)
		So(r.Load(), ShouldEqual, 42)
		So(ModeFor(""), ShouldEqual, Slave)
		So(ModeFor("10.0.0.2"), ShouldEqual, Master)
	})
}

func TestMaster(t *testing.T) {
	Convey("Given a running master", t, func() {
		sim := hw.NewSim()
		tr := newFakeLink()
		c := New(options("192.0.2.1"), sim, tr)
		So(c.Mode(), ShouldEqual, Master)
		So(c.Start(), ShouldBeNil)
		defer c.Stop()
		So(c.Phase(), ShouldEqual, Running)

		Convey("The target is the local encoder", func() {
			So(c.target.Kind(), ShouldEqual, Local)
			sim.Turn(4)
			So(c.Target(), ShouldEqual, 4)
		})

		Convey("Five steps forward and two back sends 3", func() {
			sim.Turn(5)
			sim.Turn(-2)
			So(c.Steps(), ShouldEqual, 3)
			So(eventually(func() bool {
				s := tr.Sent()
				return len(s) > 0 && s[len(s)-1] == 3
			}), ShouldBeTrue)
			// Without further edges, nothing new is sent.
			time.Sleep(10 * time.Millisecond)
			n := len(tr.Sent())
			time.Sleep(20 * time.Millisecond)
			So(len(tr.Sent()), ShouldEqual, n)
			So(sim.Writes(), ShouldEqual, 0)
		})

		Convey("Transport faults drop the sample and carry on", func() {
			tr.mu.Lock()
			tr.fail = &link.Fault{Op: "send", Err: errors.New("unreachable")}
			tr.mu.Unlock()
			sim.Turn(1)
			So(eventually(func() bool { return c.Stats().Dropped > 0 }), ShouldBeTrue)
			tr.mu.Lock()
			tr.fail = nil
			tr.mu.Unlock()
			sim.Turn(1)
			So(eventually(func() bool {
				s := tr.Sent()
				return len(s) > 0 && s[len(s)-1] == 2
			}), ShouldBeTrue)
		})

		Convey("Start cannot be repeated", func() {
			So(c.Start(), ShouldEqual, ErrStarted)
		})
	})

	Convey("An idle master resends its position", t, func() {
		sim := hw.NewSim()
		tr := newFakeLink()
		o := options("192.0.2.1")
		o.Refresh = 5 * time.Millisecond
		c := New(o, sim, tr)
		So(c.Start(), ShouldBeNil)
		defer c.Stop()
		So(eventually(func() bool { return len(tr.Sent()) >= 3 }), ShouldBeTrue)
		So(tr.Sent()[0], ShouldEqual, 0)
	})
}

func TestSlave(t *testing.T) {
	Convey("Given a running slave", t, func() {
		sim := hw.NewSim()
		tr := newFakeLink()
		c := New(options(""), sim, tr)
		So(c.Mode(), ShouldEqual, Slave)
		So(c.target.Kind(), ShouldEqual, Remote)
		So(c.Start(), ShouldBeNil)
		defer c.Stop()

		Convey("A received target of 10 drives towards it", func() {
			tr.in <- 10
			So(eventually(func() bool { return sim.Last() == hw.PWM{Dir: hw.DirB, Magnitude: 200} }), ShouldBeTrue)
			So(c.Target(), ShouldEqual, 10)
			So(eventually(func() bool { return c.Duty() == -200.0/5000.0 }), ShouldBeTrue)
			So(c.Stats().Received, ShouldEqual, 1)
		})

		Convey("Local movement re-runs the regulator", func() {
			tr.in <- 10
			So(eventually(func() bool { return sim.Last().Magnitude == 200 }), ShouldBeTrue)
			sim.Turn(10)
			So(eventually(func() bool { return sim.Last() == hw.PWM{Dir: hw.Idle} }), ShouldBeTrue)
			So(c.Duty(), ShouldEqual, 0.0)
		})

		Convey("Overshoot reverses the drive", func() {
			tr.in <- -3
			So(eventually(func() bool { return sim.Last() == hw.PWM{Dir: hw.DirA, Magnitude: 130} }), ShouldBeTrue)
			So(c.Duty(), ShouldBeGreaterThan, 0)
		})
	})
}

func TestShutdown(t *testing.T) {
	Convey("Stopping releases a parked task and stops the motor", t, func() {
		sim := hw.NewSim()
		tr := newFakeLink()
		o := options("")
		o.Refresh = 0 // Park forever
		c := New(o, sim, tr)
		So(c.Start(), ShouldBeNil)
		tr.in <- 5
		So(eventually(func() bool { return sim.Last().Magnitude == 150 }), ShouldBeTrue)

		done := make(chan struct{})
		go func() {
			c.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			So("stop did not complete", ShouldBeEmpty)
		}
		So(c.Phase(), ShouldEqual, Stopped)
		So(sim.Last(), ShouldResemble, hw.PWM{Dir: hw.Idle})
		So(c.Duty(), ShouldEqual, 0.0)

		Convey("Nothing changes once stopped", func() {
			writes := sim.Writes()
			steps := c.Steps()
			sim.Turn(7)
			time.Sleep(10 * time.Millisecond)
			So(sim.Writes(), ShouldEqual, writes)
			So(c.Steps(), ShouldEqual, steps)
			c.Stop()
			So(c.Phase(), ShouldEqual, Stopped)
			So(c.Start(), ShouldEqual, ErrStarted)
		})
	})

	Convey("A master parked in wait is released by Stop", t, func() {
		sim := hw.NewSim()
		tr := newFakeLink()
		o := options("192.0.2.1")
		o.Refresh = 0
		c := New(o, sim, tr)
		So(c.Start(), ShouldBeNil)
		time.Sleep(5 * time.Millisecond)
		start := time.Now()
		c.Stop()
		So(time.Since(start), ShouldBeLessThan, 500*time.Millisecond)
		So(tr.Sent(), ShouldBeEmpty)
	})

	Convey("An interrupt failure aborts start", t, func() {
		c := New(options(""), failingHw{hw.NewSim()}, newFakeLink())
		err := c.Start()
		var f *hw.Fault
		So(errors.As(err, &f), ShouldBeTrue)
		So(c.Phase(), ShouldEqual, Uninitialized)
		c.Stop()
		So(c.Phase(), ShouldEqual, Stopped)
	})
}
