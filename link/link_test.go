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

package link

import (
	"errors"
	"math"
	"net"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func pair() (*UDP, *UDP) {
	rx, err := Listen(0)
	So(err, ShouldBeNil)
	tx, err := Dial("127.0.0.1", rx.LocalAddr().Port, 0)
	So(err, ShouldBeNil)
	return tx, rx
}

func TestUDP(t *testing.T) {
	Convey("Given a sender and receiver on loopback", t, func() {
		tx, rx := pair()
		defer tx.Close()
		defer rx.Close()

		Convey("Positions arrive intact", func() {
			for _, v := range []int32{0, 3, -2, math.MaxInt32, math.MinInt32} {
				So(tx.Send(v), ShouldBeNil)
				got, err := rx.Receive(time.Second)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, v)
			}
			So(tx.Stats().Sent, ShouldEqual, 5)
			So(rx.Stats().Received, ShouldEqual, 5)
		})

		Convey("The wire format is big-endian", func() {
			So(tx.Send(-2), ShouldBeNil)
			buf := make([]byte, 16)
			rx.conn.SetReadDeadline(time.Now().Add(time.Second))
			n, _, err := rx.conn.ReadFromUDP(buf)
			So(err, ShouldBeNil)
			So(buf[:n], ShouldResemble, []byte{0xff, 0xff, 0xff, 0xfe})
		})

		Convey("Receive times out when nothing arrives", func() {
			_, err := rx.Receive(20 * time.Millisecond)
			So(err, ShouldEqual, ErrTimeout)
		})

		Convey("A datagram of the wrong size is dropped as a fault", func() {
			c, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: rx.LocalAddr().Port})
			So(err, ShouldBeNil)
			defer c.Close()
			_, err = c.Write([]byte{1, 2, 3})
			So(err, ShouldBeNil)
			_, err = rx.Receive(time.Second)
			var f *Fault
			So(errors.As(err, &f), ShouldBeTrue)
			So(errors.Is(err, ErrShort), ShouldBeTrue)
			So(rx.Stats().Dropped, ShouldEqual, 1)
		})

		Convey("Close releases a blocked receive", func() {
			done := make(chan error)
			go func() {
				_, err := rx.Receive(0)
				done <- err
			}()
			time.Sleep(20 * time.Millisecond)
			So(rx.Close(), ShouldBeNil)
			select {
			case err := <-done:
				So(err, ShouldEqual, ErrClosed)
			case <-time.After(time.Second):
				So("receive not released", ShouldBeEmpty)
			}
			So(rx.Close(), ShouldBeNil)
		})

		Convey("A receiver cannot send", func() {
			So(rx.Send(1), ShouldNotBeNil)
		})
	})
}
