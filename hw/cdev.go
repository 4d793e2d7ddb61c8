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

//go:build linux

package hw

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aamcrae/motorsync/io"
	"github.com/warthog618/go-gpiocdev"
)

const consumer = "motorsync"

// Cdev is a motor attached through the GPIO character device.
// Encoder edges are delivered by the kernel as line events, which
// are dispatched to the edge handler from a single goroutine.
type Cdev struct {
	pins    Pins
	enc     *gpiocdev.Lines
	dir     *gpiocdev.Lines
	soft    *gpiocdev.Line
	pwm     io.PWM
	last    Direction
	vals    [2]int          // Sample buffer for the event goroutine
	sample  uint32          // Last good sample, A<<1 | B
	handler atomic.Value    // func()
	enabled int32
}

// lineSetter adapts a character device line to io.Setter.
type lineSetter struct {
	l *gpiocdev.Line
}

func (s lineSetter) Set(v int) error {
	return s.l.SetValue(v)
}

// NewCdev requests the encoder and direction lines from the chip,
// and opens the PWM.
func NewCdev(p Pins) (*Cdev, error) {
	if p.Period < 2 {
		return nil, fault("open", fmt.Errorf("invalid PWM period %d", p.Period))
	}
	c := &Cdev{pins: p}
	c.handler.Store(func() {})
	var err error
	c.enc, err = gpiocdev.RequestLines(p.Chip, []int{p.EncoderA, p.EncoderB},
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(c.event))
	if err != nil {
		return nil, fault("encoder", err)
	}
	c.dir, err = gpiocdev.RequestLines(p.Chip, []int{p.DirA, p.DirB},
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsOutput(0, 0))
	if err != nil {
		c.Close()
		return nil, fault("direction", err)
	}
	if p.SoftPwm >= 0 {
		c.soft, err = gpiocdev.RequestLine(p.Chip, p.SoftPwm,
			gpiocdev.WithConsumer(consumer),
			gpiocdev.AsOutput(0))
		if err != nil {
			c.Close()
			return nil, fault("soft pwm", err)
		}
		c.pwm = io.NewSwPWM(lineSetter{c.soft})
		err = c.pwm.Set(p.PwmPeriod, 0)
	} else {
		var hp *io.HwPwm
		if hp, err = io.NewHwPWM(p.PwmUnit, p.PwmPeriod); err == nil {
			c.pwm = hp
		}
	}
	if err != nil {
		c.Close()
		return nil, fault("pwm", err)
	}
	return c, nil
}

func (c *Cdev) event(gpiocdev.LineEvent) {
	if atomic.LoadInt32(&c.enabled) != 0 {
		c.handler.Load().(func())()
	}
}

// ReadQuadrature samples both encoder lines, without allocating.
// Once the interrupt is enabled it is only called from the single event
// goroutine. A failed read returns the previous sample.
func (c *Cdev) ReadQuadrature() (int, int) {
	if err := c.enc.Values(c.vals[:]); err == nil {
		atomic.StoreUint32(&c.sample, uint32(c.vals[0]&1)<<1|uint32(c.vals[1]&1))
	}
	v := atomic.LoadUint32(&c.sample)
	return int(v>>1) & 1, int(v) & 1
}

// WritePWM sets the direction lines, then the on time.
func (c *Cdev) WritePWM(dir Direction, magnitude uint32) error {
	if magnitude >= c.pins.Period {
		magnitude = c.pins.Period - 1
	}
	vals := []int{0, 0}
	switch dir {
	case DirA:
		vals[0] = 1
	case DirB:
		vals[1] = 1
	default:
		magnitude = 0
	}
	if dir != c.last {
		if err := c.pwm.Set(c.pins.PwmPeriod, 0); err != nil {
			return err
		}
		if err := c.dir.SetValues(vals); err != nil {
			return err
		}
		c.last = dir
	}
	on := time.Duration(int64(c.pins.PwmPeriod) * int64(magnitude) / int64(c.pins.Period))
	return c.pwm.Set(c.pins.PwmPeriod, on)
}

// EnableEncoderInterrupt routes encoder line events to handler.
func (c *Cdev) EnableEncoderInterrupt(handler func()) error {
	if handler == nil {
		return fault("enable interrupt", errors.New("nil handler"))
	}
	c.handler.Store(handler)
	atomic.StoreInt32(&c.enabled, 1)
	return nil
}

// DisableInterrupt stops delivery of line events to the handler.
func (c *Cdev) DisableInterrupt() {
	atomic.StoreInt32(&c.enabled, 0)
}

// AcknowledgeInterrupt is a no-op; line events are queued by the kernel.
func (c *Cdev) AcknowledgeInterrupt() {
}

// Close releases all lines and the PWM.
func (c *Cdev) Close() error {
	c.DisableInterrupt()
	if c.pwm != nil {
		c.pwm.Close()
	}
	if c.dir != nil {
		c.dir.SetValues([]int{0, 0})
		c.dir.Close()
	}
	if c.soft != nil {
		c.soft.Close()
	}
	if c.enc != nil {
		c.enc.Close()
	}
	return nil
}
