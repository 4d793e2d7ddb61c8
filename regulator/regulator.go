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

// Package regulator implements the proportional position controller.

package regulator

import (
	"fmt"

	"github.com/aamcrae/motorsync/hw"
)

// Default tuning.
const (
	DefaultGain   = 10
	DefaultFloor  = 100  // Minimum drive, to overcome static friction
	DefaultPeriod = 5000 // PWM magnitude of a full period
)

// Params holds the controller tuning.
type Params struct {
	Gain   int64  // Drive per step of error
	Floor  int64  // Drive added to any non-zero error
	Period uint32 // PWM period; magnitudes are limited to Period-1
}

// Default returns the default tuning.
func Default() Params {
	return Params{Gain: DefaultGain, Floor: DefaultFloor, Period: DefaultPeriod}
}

// Validate checks the tuning.
func (p Params) Validate() error {
	if p.Period < 2 {
		return fmt.Errorf("period %d: must be at least 2", p.Period)
	}
	if p.Gain <= 0 {
		return fmt.Errorf("gain %d: must be positive", p.Gain)
	}
	if p.Floor < 0 {
		return fmt.Errorf("floor %d: must not be negative", p.Floor)
	}
	return nil
}

// Command is the output of the controller.
type Command struct {
	Dir       hw.Direction
	Magnitude uint32  // 0 to Period-1
	Duty      float64 // Signed fraction of the period
}

// Compute returns the PWM command that drives current towards target.
// A target ahead of the current position gives direction B and a
// negative duty; a target behind gives direction A and a positive duty.
// There is no integral term, so no state is kept between calls.
func (p Params) Compute(current, target int32) Command {
	e := int64(target) - int64(current)
	if e == 0 {
		return Command{Dir: hw.Idle}
	}
	mag := e
	if mag < 0 {
		mag = -mag
	}
	speed := p.Floor
	// Saturate rather than overflow for large errors.
	if lim := int64(p.Period); mag >= lim {
		speed += p.Gain * lim
	} else {
		speed += p.Gain * mag
	}
	if speed < 0 {
		speed = 0
	}
	if max := int64(p.Period) - 1; speed > max {
		speed = max
	}
	duty := float64(speed) / float64(p.Period)
	if e > 0 {
		return Command{Dir: hw.DirB, Magnitude: uint32(speed), Duty: -duty}
	}
	return Command{Dir: hw.DirA, Magnitude: uint32(speed), Duty: duty}
}
