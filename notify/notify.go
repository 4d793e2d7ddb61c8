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

// Package notify provides a binary signal used to hand a fresh position
// sample from a producer to a single consumer.

package notify

import (
	"time"
)

// Notifier is the producer side of a Signal. It is the only view of
// the signal that is given to edge handlers, so nothing that can block
// is reachable from there.
type Notifier interface {
	Signal()
}

// Signal is a binary (non-counting) signal.
// At most one pending wakeup is remembered: any number of Signal calls
// made before the next Wait collapse into a single wakeup. This is
// intended, since the consumer always acts on the most recent position
// rather than on every sample.
// Goroutines blocked in Wait are released in the order they started waiting.
// The same signal is also used to release a parked consumer at shutdown.
type Signal struct {
	c chan struct{}
}

// New creates a cleared Signal.
func New() *Signal {
	s := new(Signal)
	s.c = make(chan struct{}, 1)
	return s
}

// Signal sets the signal. It never blocks, and may be called
// from an edge handler.
func (s *Signal) Signal() {
	select {
	case s.c <- struct{}{}:
	default:
		// Already pending.
	}
}

// Pending returns true if a wakeup is outstanding.
func (s *Signal) Pending() bool {
	return len(s.c) != 0
}

// Wait blocks until the signal is set or the timeout expires, and
// clears the signal. It returns true if the signal was received.
// A timeout <= 0 waits forever.
func (s *Signal) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.c
		return true
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.c:
		return true
	case <-t.C:
		return false
	}
}
