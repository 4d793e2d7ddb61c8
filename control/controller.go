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

// Package control wires the encoder, link and regulator together
// as either a master or a slave, and runs the tasks.

package control

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aamcrae/motorsync/encoder"
	"github.com/aamcrae/motorsync/hw"
	"github.com/aamcrae/motorsync/link"
	"github.com/aamcrae/motorsync/notify"
	"github.com/aamcrae/motorsync/regulator"
	"github.com/aamcrae/motorsync/report"
)

// ErrStarted is returned when Start is called more than once.
var ErrStarted = errors.New("controller already started")

// Options configures a Controller.
type Options struct {
	Remote  string           // Remote address; empty for a slave
	Params  regulator.Params // Regulator tuning
	Refresh time.Duration    // Idle interval for resends and re-regulation; 0 waits forever
	Report  time.Duration    // Status line interval (slave)
	Width   int              // Status bar width
	Out     io.Writer        // Status line output; nil disables the reporter
	Grace   time.Duration    // Settling delay around shutdown
}

// Controller owns the shared state of one unit, and runs the
// tasks selected by its mode.
type Controller struct {
	sent        uint64
	recv        uint64
	dropped     uint64
	regulations uint64

	opts     Options
	mode     Mode
	hw       hw.Hardware
	tr       link.Transport
	sig      *notify.Signal
	dec      *encoder.Decoder
	target   Target
	received Position
	duty     Duty
	run      RunFlag
	mu       sync.Mutex       // Serialises Start and Stop
	phase    int32
	wg       sync.WaitGroup
}

// New creates a Controller for the motor h, communicating over tr.
// The mode, and so the target, is fixed here for the life of the controller.
func New(opts Options, h hw.Hardware, tr link.Transport) *Controller {
	c := new(Controller)
	c.opts = opts
	c.mode = ModeFor(opts.Remote)
	c.hw = h
	c.tr = tr
	c.sig = notify.New()
	c.dec = encoder.NewDecoder(h, c.sig)
	if c.mode == Master {
		c.target = LocalTarget(c.dec)
	} else {
		c.target = RemoteTarget(&c.received)
	}
	return c
}

// Start enables the encoder and starts the tasks for the mode.
// A failure to enable the encoder interrupt is returned as a hw.Fault,
// and leaves the controller uninitialized.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Phase() != Uninitialized {
		return ErrStarted
	}
	c.dec.Reset()
	c.dec.Prime()
	if err := c.hw.EnableEncoderInterrupt(c.dec.Interrupt); err != nil {
		var f *hw.Fault
		if !errors.As(err, &f) {
			err = &hw.Fault{Op: "enable interrupt", Err: err}
		}
		return err
	}
	c.run.start()
	c.setPhase(Running)
	switch c.mode {
	case Master:
		c.spawn(c.sendLoop)
	case Slave:
		c.spawn(c.receiveLoop)
		c.spawn(c.regulateLoop)
		if c.opts.Out != nil && c.opts.Report > 0 {
			r := report.New(c.opts.Out, c, c.opts.Width)
			c.spawn(func() { r.Run(c.run.Running, c.opts.Report) })
		}
	}
	log.Printf("%s: started (target %s)", c.mode, c.target.Kind())
	return nil
}

// Stop shuts the controller down: tasks are told to stop, any parked
// task is released, the tasks are joined, and the motor is stopped.
// Stop may be called more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.Phase() {
	case Uninitialized:
		c.tr.Close()
		c.setPhase(Stopped)
		return
	case Running:
	default:
		return
	}
	c.setPhase(Draining)
	c.run.stop()
	time.Sleep(c.opts.Grace)
	// Release a consumer parked in Wait, and a receiver parked on the socket.
	c.sig.Signal()
	c.tr.Close()
	c.hw.DisableInterrupt()
	c.wg.Wait()
	if err := c.hw.WritePWM(hw.Idle, 0); err != nil {
		log.Printf("%s: stopping motor: %v", c.mode, err)
	}
	c.duty.Store(0)
	time.Sleep(c.opts.Grace)
	c.setPhase(Stopped)
	s := c.Stats()
	log.Printf("%s: stopped (sent %d, received %d, dropped %d, regulations %d)",
		c.mode, s.Sent, s.Received, s.Dropped, s.Regulations)
}

func (c *Controller) spawn(f func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f()
	}()
}

// sendLoop transmits the local position each time it changes,
// and again after each idle refresh interval.
func (c *Controller) sendLoop() {
	for c.run.Running() {
		c.sig.Wait(c.opts.Refresh)
		if !c.run.Running() {
			return
		}
		err := c.tr.Send(c.target.Load())
		switch {
		case err == nil:
			atomic.AddUint64(&c.sent, 1)
		case errors.Is(err, link.ErrClosed):
			return
		default:
			atomic.AddUint64(&c.dropped, 1)
			log.Printf("%s: %v", c.mode, err)
		}
	}
}

// receiveLoop stores each position received and wakes the regulator.
func (c *Controller) receiveLoop() {
	for c.run.Running() {
		v, err := c.tr.Receive(c.opts.Refresh)
		switch {
		case err == nil:
			c.received.Store(v)
			atomic.AddUint64(&c.recv, 1)
			c.sig.Signal()
		case errors.Is(err, link.ErrTimeout):
		case errors.Is(err, link.ErrClosed):
			return
		default:
			atomic.AddUint64(&c.dropped, 1)
			log.Printf("%s: %v", c.mode, err)
		}
	}
}

// regulateLoop drives the motor towards the target whenever either
// the target or the local position changes.
func (c *Controller) regulateLoop() {
	for c.run.Running() {
		c.sig.Wait(c.opts.Refresh)
		if !c.run.Running() {
			return
		}
		c.regulate()
	}
}

func (c *Controller) regulate() regulator.Command {
	cmd := c.opts.Params.Compute(c.dec.Steps(), c.target.Load())
	if err := c.hw.WritePWM(cmd.Dir, cmd.Magnitude); err != nil {
		log.Printf("%s: pwm: %v", c.mode, err)
	}
	c.duty.Store(cmd.Duty)
	atomic.AddUint64(&c.regulations, 1)
	return cmd
}

func (c *Controller) setPhase(p Phase) {
	atomic.StoreInt32(&c.phase, int32(p))
}

// Phase returns the lifecycle state.
func (c *Controller) Phase() Phase {
	return Phase(atomic.LoadInt32(&c.phase))
}

// Mode returns the role of this unit.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Steps returns the local encoder position.
func (c *Controller) Steps() int32 {
	return c.dec.Steps()
}

// Target returns the position being tracked.
func (c *Controller) Target() int32 {
	return c.target.Load()
}

// Duty returns the duty cycle last applied.
func (c *Controller) Duty() float64 {
	return c.duty.Load()
}

// Spurious returns the number of encoder edges discarded.
func (c *Controller) Spurious() uint32 {
	return c.dec.Spurious()
}

// Stats returns the task counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Sent:        atomic.LoadUint64(&c.sent),
		Received:    atomic.LoadUint64(&c.recv),
		Dropped:     atomic.LoadUint64(&c.dropped),
		Regulations: atomic.LoadUint64(&c.regulations),
	}
}

func (c *Controller) String() string {
	return fmt.Sprintf("%s %s: steps %d, target %d, duty %+.3f", c.mode, c.Phase(), c.Steps(), c.Target(), c.Duty())
}
