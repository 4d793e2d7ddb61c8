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

// Simulator program.
// Runs a master and a slave in one process, linked over loopback UDP.
// The master's motor is swung by a scripted hand, and the slave's motor
// turns in proportion to the PWM its regulator writes.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/aamcrae/motorsync/axis"
	"github.com/aamcrae/motorsync/control"
	"github.com/aamcrae/motorsync/hand"
	"github.com/aamcrae/motorsync/hw"
)

var port = flag.Int("port", 5000, "UDP port for the link")
var httpPort = flag.Int("http", 8080, "Gauge web server port")
var speed = flag.Float64("speed", 20, "Slave steps per millisecond at full drive")
var rate = flag.Int("rate", 5, "Master hand steps per millisecond")
var auto = flag.Duration("auto", 3*time.Second, "Interval to advance the hand (0 to advance on key press)")

const threshold = 2 // Steps the slave may lag before it is reported

// Plant turns a simulated motor in proportion to the PWM written to it,
// as a motor with no inertia would.
type Plant struct {
	Steps  int64   // Total steps turned
	motor  *hw.Sim
	period uint32
	speed  float64 // Steps per tick at full drive
	accum  float64
}

// Tick turns the motor by the drive applied over one tick.
func (p *Plant) Tick() {
	pwm := p.motor.Last()
	v := p.speed * float64(pwm.Magnitude) / float64(p.period)
	switch pwm.Dir {
	case hw.DirB:
		p.accum += v
	case hw.DirA:
		p.accum -= v
	default:
		return
	}
	n := math.Trunc(p.accum)
	if n != 0 {
		p.accum -= n
		p.motor.Turn(int(n))
		atomic.AddInt64(&p.Steps, int64(n))
	}
}

func main() {
	flag.Parse()
	sc := axis.Default()
	sc.Name = "slave"
	sc.Port = *port
	sc.Http = *httpPort
	sc.Report = 0
	slave, err := axis.New(sc, nil)
	if err != nil {
		log.Fatalf("Slave: %v", err)
	}
	mc := axis.Default()
	mc.Name = "master"
	mc.Remote = "127.0.0.1"
	mc.Port = *port
	mc.Refresh = 100 * time.Millisecond
	master, err := axis.New(mc, nil)
	if err != nil {
		log.Fatalf("Master: %v", err)
	}
	if err := slave.Start(); err != nil {
		log.Fatalf("Slave: %v", err)
	}
	if err := master.Start(); err != nil {
		log.Fatalf("Master: %v", err)
	}
	running := func() bool { return master.Controller.Phase() == control.Running }

	plant := &Plant{motor: slave.Motor.(*hw.Sim), period: sc.Period, speed: *speed}
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for running() {
			<-ticker.C
			plant.Tick()
		}
	}()
	h := hand.NewHand("hand", hand.MoverFunc(master.Motor.(*hw.Sim).Turn), time.Millisecond, *rate, hand.DefaultStride)
	go h.Run(running)
	if *auto > 0 {
		go func() {
			for running() {
				time.Sleep(*auto)
				h.Next()
			}
		}()
	}
	quit := make(chan struct{})
	go func() {
		defer close(quit)
		reader := bufio.NewReader(os.Stdin)
		for {
			text, err := reader.ReadString('\n')
			if err != nil || text == "q\n" || text == "Q\n" {
				return
			}
			h.Next()
		}
	}()
	fmt.Printf("Gauge at http://localhost:%d/duty.png, enter 'q' to quit\n", *httpPort)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-quit:
			master.Close()
			slave.Close()
			return
		case <-ticker.C:
			m, s := master.Controller, slave.Controller
			lag := m.Steps() - s.Steps()
			fmt.Printf("master %6d  slave %6d  duty %+.3f", m.Steps(), s.Steps(), s.Duty())
			if lag > threshold || lag < -threshold {
				fmt.Printf("  lag %d", lag)
			}
			fmt.Println()
		}
	}
}
