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
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Interval at which a Watcher checks whether it has been stopped.
const watchPoll = 100 * time.Millisecond

// Watcher waits for edges on a set of input pins and calls a
// handler for each event, from a single goroutine.
type Watcher struct {
	pins    []*Gpio
	fds     []unix.PollFd
	handler func()
	stop    int32
	done    chan struct{}
}

// Watch starts a goroutine that calls handler whenever an edge
// is detected on any of the pins. All pins must have edge detection enabled.
func Watch(handler func(), pins ...*Gpio) (*Watcher, error) {
	w := new(Watcher)
	w.pins = pins
	w.handler = handler
	w.done = make(chan struct{})
	for _, p := range pins {
		if p.edge == NONE {
			return nil, fmt.Errorf("gpio%d: edge detection not enabled", p.number)
		}
		// Clear any stale event before polling.
		p.Get()
		w.fds = append(w.fds, unix.PollFd{Fd: int32(p.value.Fd()), Events: unix.POLLPRI | unix.POLLERR})
	}
	go w.driver()
	return w, nil
}

// Stop halts the watcher, and waits for the goroutine to exit.
// The handler is not called after Stop returns.
func (w *Watcher) Stop() {
	if atomic.CompareAndSwapInt32(&w.stop, 0, 1) {
		<-w.done
	}
}

func (w *Watcher) driver() {
	defer close(w.done)
	for atomic.LoadInt32(&w.stop) == 0 {
		for i := range w.fds {
			w.fds[i].Revents = 0
		}
		n, err := unix.Poll(w.fds, pollTimeout(watchPoll))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Printf("watch: poll: %v", err)
			return
		}
		if n == 0 || atomic.LoadInt32(&w.stop) != 0 {
			continue
		}
		for i, fd := range w.fds {
			if fd.Revents != 0 {
				// The edge is cleared by reading the value.
				w.pins[i].Get()
			}
		}
		w.handler()
	}
}

func pollTimeout(t time.Duration) int {
	if t < 0 {
		return -1
	}
	return int(t.Milliseconds())
}
