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

package hw

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aamcrae/motorsync/io"
)

// Pins selects the GPIOs and PWM unit used by a hardware backend.
type Pins struct {
	Chip      string        // GPIO character device (cdev only)
	EncoderA  int           // Encoder channel A input
	EncoderB  int           // Encoder channel B input
	DirA      int           // Direction A output
	DirB      int           // Direction B output
	PwmUnit   int           // sysfs PWM unit, used when SoftPwm < 0
	SoftPwm   int           // GPIO for software PWM, or -1
	PwmPeriod time.Duration // PWM period
	Period    uint32        // Magnitude that corresponds to the full period
}

// Sysfs is a motor attached through the sysfs GPIO and PWM interfaces.
type Sysfs struct {
	pins    Pins
	a, b    *io.Gpio
	da, db  *io.Gpio
	soft    *io.Gpio
	pwm     io.PWM
	dir     Direction
	mu      sync.Mutex // Guards watcher
	watcher *io.Watcher
}

// NewSysfs opens the GPIOs and PWM unit for a motor.
// Any failure is a Fault, and releases everything opened so far.
func NewSysfs(p Pins) (*Sysfs, error) {
	if p.Period < 2 {
		return nil, fault("open", fmt.Errorf("invalid PWM period %d", p.Period))
	}
	s := &Sysfs{pins: p}
	var err error
	if s.a, err = s.input(p.EncoderA); err != nil {
		s.Close()
		return nil, fault("encoder A", err)
	}
	if s.b, err = s.input(p.EncoderB); err != nil {
		s.Close()
		return nil, fault("encoder B", err)
	}
	if s.da, err = io.OutputPin(p.DirA); err != nil {
		s.Close()
		return nil, fault("direction A", err)
	}
	if s.db, err = io.OutputPin(p.DirB); err != nil {
		s.Close()
		return nil, fault("direction B", err)
	}
	if p.SoftPwm >= 0 {
		if s.soft, err = io.OutputPin(p.SoftPwm); err != nil {
			s.Close()
			return nil, fault("soft pwm", err)
		}
		s.pwm = io.NewSwPWM(s.soft)
		err = s.pwm.Set(p.PwmPeriod, 0)
	} else {
		var hp *io.HwPwm
		if hp, err = io.NewHwPWM(p.PwmUnit, p.PwmPeriod); err == nil {
			s.pwm = hp
		}
	}
	if err != nil {
		s.Close()
		return nil, fault("pwm", err)
	}
	return s, nil
}

func (s *Sysfs) input(gpio int) (*io.Gpio, error) {
	g, err := io.Pin(gpio)
	if err != nil {
		return nil, err
	}
	if err := g.Edge(io.BOTH); err != nil {
		g.Close()
		return nil, fmt.Errorf("gpio%d: edge: %w", g.Number(), err)
	}
	if _, err := g.Get(); err != nil {
		g.Close()
		return nil, fmt.Errorf("gpio%d: %w", g.Number(), err)
	}
	return g, nil
}

// ReadQuadrature samples both encoder inputs. If a read fails, the
// previous value of that input is returned so that a failed read
// does not look like a transition.
func (s *Sysfs) ReadQuadrature() (int, int) {
	a, err := s.a.Get()
	if err != nil {
		a = s.a.Last()
	}
	b, err := s.b.Get()
	if err != nil {
		b = s.b.Last()
	}
	return a, b
}

// WritePWM sets the direction outputs, then the on time.
// Only one goroutine writes the PWM.
func (s *Sysfs) WritePWM(dir Direction, magnitude uint32) error {
	if magnitude >= s.pins.Period {
		magnitude = s.pins.Period - 1
	}
	var va, vb int
	switch dir {
	case DirA:
		va = 1
	case DirB:
		vb = 1
	default:
		magnitude = 0
	}
	if dir != s.dir {
		// Drop the drive before switching direction.
		if err := s.pwm.Set(s.pins.PwmPeriod, 0); err != nil {
			return err
		}
		if err := s.da.Set(va); err != nil {
			return err
		}
		if err := s.db.Set(vb); err != nil {
			return err
		}
		s.dir = dir
	}
	on := time.Duration(int64(s.pins.PwmPeriod) * int64(magnitude) / int64(s.pins.Period))
	return s.pwm.Set(s.pins.PwmPeriod, on)
}

// EnableEncoderInterrupt starts watching both encoder inputs.
func (s *Sysfs) EnableEncoderInterrupt(handler func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return fault("enable interrupt", errors.New("already enabled"))
	}
	w, err := io.Watch(handler, s.a, s.b)
	if err != nil {
		return fault("enable interrupt", err)
	}
	s.watcher = w
	return nil
}

// DisableInterrupt stops the edge watcher.
func (s *Sysfs) DisableInterrupt() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
}

// AcknowledgeInterrupt is a no-op; the watcher clears the edge
// by reading the input before the handler is called.
func (s *Sysfs) AcknowledgeInterrupt() {
}

// Close stops the motor and releases all GPIOs.
func (s *Sysfs) Close() error {
	s.DisableInterrupt()
	if s.pwm != nil {
		s.pwm.Close()
	}
	for _, g := range []*io.Gpio{s.da, s.db} {
		if g != nil {
			g.Set(0)
		}
	}
	for _, g := range []*io.Gpio{s.a, s.b, s.da, s.db, s.soft} {
		if g != nil {
			g.Close()
		}
	}
	return nil
}
