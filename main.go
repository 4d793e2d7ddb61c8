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

// Motor synchroniser program.
// With -remote, runs as the master, sending the position of its motor
// to the slave at that address. Without it, runs as the slave, driving
// its motor to follow the master. Enter 'q' to quit.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aamcrae/motorsync/axis"
	"github.com/aamcrae/motorsync/control"
	"github.com/aamcrae/motorsync/hand"
	"github.com/aamcrae/motorsync/hw"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("motor", "motor", "Config file section for the motor")
var remote = flag.String("remote", "", "Address of the slave (master only)")
var port = flag.Int("port", 5000, "UDP port")
var backend = flag.String("backend", "", "Motor backend: sim, sysfs or cdev")
var httpPort = flag.Int("http", 0, "Gauge web server port (0 to disable)")

func main() {
	flag.Parse()
	cfg, err := axis.Load(*configFile, *section)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	// Flags given on the command line override everything else.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "remote":
			cfg.Remote = *remote
		case "port":
			cfg.Port = *port
		case "backend":
			cfg.Backend = *backend
		case "http":
			cfg.Http = *httpPort
		}
	})
	a, err := axis.New(cfg, os.Stdout)
	if err != nil {
		log.Fatalf("Motor: %v", err)
	}
	if err := a.Start(); err != nil {
		log.Fatalf("Motor: %v", err)
	}
	running := func() bool { return a.Controller.Phase() == control.Running }
	// A simulated master is turned by a scripted hand, advanced by each key.
	var h *hand.Hand
	if sim, ok := a.Motor.(*hw.Sim); ok && a.Controller.Mode() == control.Master {
		h = hand.NewHand(cfg.Name, hand.MoverFunc(sim.Turn), 10*time.Millisecond, 50, hand.DefaultStride)
		go h.Run(running)
	}
	next := func() {
		if h != nil {
			h.Next()
		}
	}
	quit := keys(os.Stdin, next)
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case s := <-sig:
		log.Printf("%s: %v", cfg.Name, s)
	}
	a.Close()
	fmt.Println(a.Controller)
}

// keys reads key presses from r, calling next for each key other
// than 'q' or 'Q', which closes the returned channel. Other input is
// ignored, and the end of the input stops reading without quitting.
func keys(r io.Reader, next func()) <-chan struct{} {
	quit := make(chan struct{})
	go func() {
		reader := bufio.NewReader(r)
		for {
			c, _, err := reader.ReadRune()
			if err != nil {
				log.Printf("input: %v; use a signal to stop", err)
				return
			}
			switch c {
			case 'q', 'Q':
				close(quit)
				return
			case '\n', '\r':
			default:
				next()
			}
		}
	}()
	return quit
}
