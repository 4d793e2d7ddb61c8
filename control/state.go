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

package control

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/aamcrae/motorsync/encoder"
)

// RunFlag is polled by every task once per iteration; it is the
// only way a task is told to finish.
type RunFlag struct {
	v int32
}

func (r *RunFlag) start() {
	atomic.StoreInt32(&r.v, 1)
}

// stop clears the flag, returning false if it was already clear.
func (r *RunFlag) stop() bool {
	return atomic.CompareAndSwapInt32(&r.v, 1, 0)
}

// Running returns true until shutdown begins.
func (r *RunFlag) Running() bool {
	return atomic.LoadInt32(&r.v) != 0
}

// Position is the most recent position received from the master.
type Position struct {
	v int32
}

// Store records a new position. Only the receiver task stores.
func (p *Position) Store(v int32) {
	atomic.StoreInt32(&p.v, v)
}

// Load returns the last position stored.
func (p *Position) Load() int32 {
	return atomic.LoadInt32(&p.v)
}

// Duty is the signed duty cycle last applied to the motor.
type Duty struct {
	bits uint64
}

func (d *Duty) Store(v float64) {
	atomic.StoreUint64(&d.bits, math.Float64bits(v))
}

func (d *Duty) Load() float64 {
	return math.Float64frombits(atomic.LoadUint64(&d.bits))
}

// Kind identifies the source of a Target.
type Kind int

const (
	Local  Kind = iota // The local encoder
	Remote             // The position received from the master
)

func (k Kind) String() string {
	if k == Remote {
		return "remote"
	}
	return "local"
}

// Target is the position the regulator chases. It is bound once,
// when the mode is decided, and refers to exactly one source.
type Target struct {
	kind   Kind
	local  *encoder.Decoder
	remote *Position
}

// LocalTarget tracks the local encoder.
func LocalTarget(d *encoder.Decoder) Target {
	return Target{kind: Local, local: d}
}

// RemoteTarget tracks a received position.
func RemoteTarget(p *Position) Target {
	return Target{kind: Remote, remote: p}
}

// Kind returns the source of the target.
func (t Target) Kind() Kind {
	return t.kind
}

// Load returns the current target position.
func (t Target) Load() int32 {
	switch t.kind {
	case Local:
		return t.local.Steps()
	case Remote:
		return t.remote.Load()
	}
	panic(fmt.Sprintf("target: unknown kind %d", t.kind))
}

// Mode is the role of this unit.
type Mode int

const (
	Slave Mode = iota
	Master
)

func (m Mode) String() string {
	if m == Master {
		return "master"
	}
	return "slave"
}

// ModeFor returns Master when a remote address is given.
func ModeFor(remote string) Mode {
	if remote == "" {
		return Slave
	}
	return Master
}

// Phase is the lifecycle state of a Controller.
type Phase int32

const (
	Uninitialized Phase = iota
	Running
	Draining
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Running:
		return "running"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Stats counts the work done by the tasks.
type Stats struct {
	Sent        uint64 // Positions sent (master)
	Received    uint64 // Positions received (slave)
	Dropped     uint64 // Samples lost to transport faults
	Regulations uint64 // Regulation cycles (slave)
}
