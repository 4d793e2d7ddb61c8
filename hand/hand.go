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

// Package hand turns a motor the way an operator's hand would,
// towards a position chosen from a fixed sweep.

package hand

import (
	"log"
	"sync"
	"time"
)

// DefaultStride is the spacing of the sweep positions.
const DefaultStride = 512

// sweepLen is the number of positions in a sweep, centred on zero.
const sweepLen = 5

// MoveHand is the interface to turn the motor.
type MoveHand interface {
	Move(int)
}

// MoverFunc adapts a function to a MoveHand.
type MoverFunc func(int)

func (f MoverFunc) Move(steps int) {
	f(steps)
}

// Hand moves a motor towards a target position at a limited rate.
// The targets step through a sweep of (i-2)*stride for i in 0..4,
// so the motor is swung back and forth across the origin.
type Hand struct {
	Name    string        // Name of this hand
	mover   MoveHand      // Mover to turn the motor
	update  time.Duration // Update interval
	rate    int           // Maximum steps per update
	stride  int           // Spacing of sweep positions
	mu      sync.Mutex    // Guards the fields below
	current int           // Position the motor has been moved to
	target  int           // Position being moved towards
	index   int           // Index into the sweep
	Moves   int           // Number of moves made
}

// NewHand creates and initialises a Hand, starting at the origin.
func NewHand(name string, mover MoveHand, update time.Duration, rate, stride int) *Hand {
	h := new(Hand)
	h.Name = name
	h.mover = mover
	h.update = update
	h.rate = rate
	h.stride = stride
	h.index = sweepLen / 2
	log.Printf("%s: update %s, rate %d steps, stride %d\n", h.Name, h.update, h.rate, h.stride)
	return h
}

// Set sets the target position.
func (h *Hand) Set(target int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = target
}

// Get returns the current and target positions.
func (h *Hand) Get() (int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.target
}

// Next advances the target to the next position of the sweep,
// returning the new target.
func (h *Hand) Next() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.index = (h.index + 1) % sweepLen
	h.target = (h.index - sweepLen/2) * h.stride
	log.Printf("%s: target %d (currently %d)", h.Name, h.target, h.current)
	return h.target
}

// Tick moves the motor one update towards the target, returning
// the number of steps moved.
func (h *Hand) Tick() int {
	st := h.steps()
	if st != 0 {
		h.mover.Move(st)
	}
	return st
}

// Run moves the motor every update interval until running returns false.
func (h *Hand) Run(running func() bool) {
	ticker := time.NewTicker(h.update)
	defer ticker.Stop()
	for running() {
		<-ticker.C
		h.Tick()
	}
}

// steps returns the number of steps to move, limited by the rate,
// and updates the current location to where the motor will be after
// the movement.
func (h *Hand) steps() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	st := h.target - h.current
	if h.rate > 0 {
		if st > h.rate {
			st = h.rate
		} else if st < -h.rate {
			st = -h.rate
		}
	}
	if st != 0 {
		h.Moves++
	}
	h.current += st
	return st
}
