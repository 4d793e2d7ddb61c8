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

// Package hw defines the motor hardware used by the synchronizer,
// and provides simulated, sysfs and GPIO character device backends.

package hw

import (
	"fmt"
)

// Direction selects which direction output is asserted
// along with the PWM magnitude.
type Direction int

const (
	Idle Direction = iota // Neither direction asserted
	DirA
	DirB
)

func (d Direction) String() string {
	switch d {
	case Idle:
		return "idle"
	case DirA:
		return "A"
	case DirB:
		return "B"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Hardware is a single motor with a quadrature encoder and a PWM drive.
// The handler passed to EnableEncoderInterrupt is called on every
// edge of either encoder channel, and must not block.
// ReadQuadrature and AcknowledgeInterrupt are safe to call from the handler.
type Hardware interface {
	ReadQuadrature() (a, b int)
	WritePWM(dir Direction, magnitude uint32) error
	EnableEncoderInterrupt(handler func()) error
	DisableInterrupt()
	AcknowledgeInterrupt()
	Close() error
}

// Fault is a hardware failure. It is fatal at startup.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("hardware fault: %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Op: op, Err: err}
}
