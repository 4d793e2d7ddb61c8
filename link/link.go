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

// Package link carries motor positions between units over UDP.
// Each datagram holds a single big-endian signed 32 bit position.
// There is no framing or sequencing; lost, duplicated or reordered
// datagrams are accepted, and the most recent value received wins.

package link

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// Size of a position datagram.
const Size = 4

var (
	ErrTimeout = errors.New("receive timeout")
	ErrClosed  = errors.New("link closed")
	ErrShort   = errors.New("bad datagram length")
)

// Transport moves a single position value between units.
type Transport interface {
	Send(position int32) error
	Receive(timeout time.Duration) (int32, error)
	Close() error
}

// Fault is a transport failure. It costs one sample, and is never fatal
// once running.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("transport fault: %s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Stats counts datagrams.
type Stats struct {
	Sent     uint64
	Received uint64
	Dropped  uint64
}

// UDP is a Transport over a UDP socket.
// A sender has a remote address; a receiver does not.
type UDP struct {
	sent     uint64 // 64 bit counters first for alignment
	received uint64
	dropped  uint64
	conn     *net.UDPConn
	remote   *net.UDPAddr
	sbuf     [Size]byte
	rbuf     [64]byte
	closed   int32
}

// Listen opens a receiving transport bound to port on all interfaces.
func Listen(port int) (*UDP, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, &Fault{"listen", err}
	}
	u := new(UDP)
	u.conn = conn
	return u, nil
}

// Dial opens a sending transport to remote:port, bound locally to
// localPort (0 selects any free port).
func Dial(remote string, port, localPort int) (*UDP, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(remote, strconv.Itoa(port)))
	if err != nil {
		return nil, &Fault{"resolve", err}
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: localPort})
	if err != nil {
		return nil, &Fault{"bind", err}
	}
	u := new(UDP)
	u.conn = conn
	u.remote = raddr
	return u, nil
}

// LocalAddr returns the bound local address.
func (u *UDP) LocalAddr() *net.UDPAddr {
	return u.conn.LocalAddr().(*net.UDPAddr)
}

// Send transmits one position. Only one goroutine may send.
func (u *UDP) Send(position int32) error {
	if u.remote == nil {
		return &Fault{"send", errors.New("no remote address")}
	}
	binary.BigEndian.PutUint32(u.sbuf[:], uint32(position))
	_, err := u.conn.WriteToUDP(u.sbuf[:], u.remote)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrClosed
		}
		return &Fault{"send", err}
	}
	atomic.AddUint64(&u.sent, 1)
	return nil
}

// Receive waits for the next position. A timeout <= 0 waits until a
// datagram arrives or the transport is closed.
// Only one goroutine may receive.
func (u *UDP) Receive(timeout time.Duration) (int32, error) {
	var dl time.Time
	if timeout > 0 {
		dl = time.Now().Add(timeout)
	}
	if err := u.conn.SetReadDeadline(dl); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return 0, ErrClosed
		}
		return 0, &Fault{"receive", err}
	}
	n, _, err := u.conn.ReadFromUDP(u.rbuf[:])
	if err != nil {
		switch {
		case errors.Is(err, net.ErrClosed):
			return 0, ErrClosed
		case errors.Is(err, os.ErrDeadlineExceeded):
			return 0, ErrTimeout
		}
		return 0, &Fault{"receive", err}
	}
	if n != Size {
		atomic.AddUint64(&u.dropped, 1)
		return 0, &Fault{"receive", fmt.Errorf("%w: %d bytes", ErrShort, n)}
	}
	atomic.AddUint64(&u.received, 1)
	return int32(binary.BigEndian.Uint32(u.rbuf[:Size])), nil
}

// Close closes the socket, releasing a blocked Receive.
func (u *UDP) Close() error {
	if !atomic.CompareAndSwapInt32(&u.closed, 0, 1) {
		return nil
	}
	return u.conn.Close()
}

// Stats returns the datagram counts.
func (u *UDP) Stats() Stats {
	return Stats{
		Sent:     atomic.LoadUint64(&u.sent),
		Received: atomic.LoadUint64(&u.received),
		Dropped:  atomic.LoadUint64(&u.dropped),
	}
}
