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
	"sync"
	"sync/atomic"
)

// Forward Gray code sequence of A<<1 | B.
var grayForward = [4]uint32{0, 1, 3, 2}

// PWM holds a direction and magnitude written to the hardware.
type PWM struct {
	Dir       Direction
	Magnitude uint32
}

// Sim is an in-memory motor. Edges are raised by calling Edge or Turn,
// and the edge handler runs synchronously on the caller's goroutine,
// in the same way an interrupt preempts whatever is running.
type Sim struct {
	acks     uint64
	edges    uint64
	writes   uint64
	mu       sync.Mutex   // Serialises edge delivery
	phase    uint32       // Current A<<1 | B
	handler  func()
	enabled  int32
	pwm      atomic.Value // Last PWM written
	observer func(PWM)
	closed   int32
}

// NewSim creates a simulated motor with both encoder inputs low.
func NewSim() *Sim {
	s := new(Sim)
	s.pwm.Store(PWM{})
	return s
}

// Observe registers a function called on every PWM write.
// It must be set before the motor is in use.
func (s *Sim) Observe(f func(PWM)) {
	s.observer = f
}

// ReadQuadrature returns the current encoder inputs.
func (s *Sim) ReadQuadrature() (int, int) {
	p := atomic.LoadUint32(&s.phase)
	return int(p>>1) & 1, int(p) & 1
}

// WritePWM records the PWM command.
func (s *Sim) WritePWM(dir Direction, magnitude uint32) error {
	if atomic.LoadInt32(&s.closed) != 0 {
		return errors.New("sim: closed")
	}
	p := PWM{dir, magnitude}
	s.pwm.Store(p)
	atomic.AddUint64(&s.writes, 1)
	if s.observer != nil {
		s.observer(p)
	}
	return nil
}

// EnableEncoderInterrupt registers the edge handler.
func (s *Sim) EnableEncoderInterrupt(handler func()) error {
	if handler == nil {
		return fault("enable interrupt", errors.New("nil handler"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
	atomic.StoreInt32(&s.enabled, 1)
	return nil
}

// DisableInterrupt stops delivery of edges to the handler.
func (s *Sim) DisableInterrupt() {
	atomic.StoreInt32(&s.enabled, 0)
}

// AcknowledgeInterrupt counts acknowledgements.
func (s *Sim) AcknowledgeInterrupt() {
	atomic.AddUint64(&s.acks, 1)
}

// Close shuts down the simulated motor.
func (s *Sim) Close() error {
	atomic.StoreInt32(&s.closed, 1)
	s.DisableInterrupt()
	return nil
}

// Edge sets the encoder inputs, and if they changed and the
// interrupt is enabled, calls the edge handler.
func (s *Sim) Edge(a, b int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := uint32(a&1)<<1 | uint32(b&1)
	if atomic.SwapUint32(&s.phase, p) == p {
		return
	}
	atomic.AddUint64(&s.edges, 1)
	if atomic.LoadInt32(&s.enabled) != 0 && s.handler != nil {
		s.handler()
	}
}

// Turn moves the encoder by steps quadrature states.
// Positive values turn forward.
func (s *Sim) Turn(steps int) {
	inc := 1
	if steps < 0 {
		inc = 3 // -1 mod 4
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		idx := indexOf(atomic.LoadUint32(&s.phase))
		n := grayForward[(idx+inc)%4]
		s.Edge(int(n>>1), int(n&1))
	}
}

// Last returns the last PWM command written.
func (s *Sim) Last() PWM {
	return s.pwm.Load().(PWM)
}

// Writes returns the number of PWM writes.
func (s *Sim) Writes() uint64 {
	return atomic.LoadUint64(&s.writes)
}

// Acks returns the number of acknowledged interrupts.
func (s *Sim) Acks() uint64 {
	return atomic.LoadUint64(&s.acks)
}

// Edges returns the number of input changes.
func (s *Sim) Edges() uint64 {
	return atomic.LoadUint64(&s.edges)
}

func indexOf(p uint32) int {
	for i, v := range grayForward {
		if v == p {
			return i
		}
	}
	return 0
}
