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

// Quadrature encoder decoder

package encoder

import (
	"sync/atomic"

	"github.com/aamcrae/motorsync/notify"
)

// Source is the view of the encoder hardware available to the
// edge handler. Neither call may block.
type Source interface {
	ReadQuadrature() (a, b int)
	AcknowledgeInterrupt()
}

// Transition results.
const (
	None    = 0
	Forward = 1
	Reverse = -1
)

// Phase values are packed as A<<1 | B.
// Forward rotation follows the Gray code sequence 00, 01, 11, 10;
// reverse rotation runs the same sequence backwards.
// Any other transition (no change, or both channels changing together)
// cannot be attributed to a direction and is discarded.
var transitions = [4][4]int32{
	// to:  00       01       10       11
	{None, Forward, Reverse, None},  // from 00
	{Reverse, None, None, Forward},  // from 01
	{Forward, None, None, Reverse},  // from 10
	{None, Reverse, Forward, None},  // from 11
}

// Decoder converts quadrature edges into a signed step count.
// The step count is only written from the edge handler, and all
// access is atomic so readers never see a partial update.
type Decoder struct {
	src      Source
	notifier notify.Notifier
	steps    int32  // Current step count
	phase    uint32 // Last observed A<<1 | B
	spurious uint32 // Edges that matched neither direction
}

// NewDecoder creates a Decoder reading from src and signalling
// notifier on every valid transition.
func NewDecoder(src Source, notifier notify.Notifier) *Decoder {
	d := new(Decoder)
	d.src = src
	d.notifier = notifier
	return d
}

// Reset zeroes the step count and phase.
func (d *Decoder) Reset() {
	atomic.StoreInt32(&d.steps, 0)
	atomic.StoreUint32(&d.phase, 0)
	atomic.StoreUint32(&d.spurious, 0)
}

// Prime seeds the phase from the current state of the inputs so that
// the first edge after start is decoded against the real position.
// Called before the edge interrupt is enabled.
func (d *Decoder) Prime() {
	a, b := d.src.ReadQuadrature()
	atomic.StoreUint32(&d.phase, pack(a, b))
}

// Interrupt is the edge handler registered with the hardware.
// The interrupt is acknowledged before the inputs are sampled, so an
// edge arriving while this runs raises a new interrupt rather than
// being lost.
func (d *Decoder) Interrupt() {
	d.src.AcknowledgeInterrupt()
	d.OnEdge(d.src.ReadQuadrature())
}

// OnEdge applies a new A/B sample and returns the decoded transition.
func (d *Decoder) OnEdge(a, b int) int {
	cur := pack(a, b)
	last := atomic.SwapUint32(&d.phase, cur)
	dir := transitions[last][cur]
	if dir == None {
		atomic.AddUint32(&d.spurious, 1)
		return None
	}
	atomic.AddInt32(&d.steps, dir)
	d.notifier.Signal()
	return int(dir)
}

// Steps returns the current step count.
func (d *Decoder) Steps() int32 {
	return atomic.LoadInt32(&d.steps)
}

// Spurious returns the number of edges that were discarded.
func (d *Decoder) Spurious() uint32 {
	return atomic.LoadUint32(&d.spurious)
}

func pack(a, b int) uint32 {
	return uint32(a&1)<<1 | uint32(b&1)
}
