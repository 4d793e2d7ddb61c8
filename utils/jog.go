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

// Jog utility, for bringing up a motor: drives the motor with a
// raw PWM magnitude, or regulates it to a position, and reports
// the encoder.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aamcrae/motorsync/axis"
	"github.com/aamcrae/motorsync/encoder"
	"github.com/aamcrae/motorsync/hw"
	"github.com/aamcrae/motorsync/notify"
	"github.com/aamcrae/motorsync/report"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("motor", "motor", "Config file section for the motor")

func main() {
	flag.Parse()
	cfg, err := axis.Load(*configFile, *section)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}
	m, err := axis.OpenMotor(cfg)
	if err != nil {
		log.Fatalf("Motor: %s %v", *section, err)
	}
	defer m.Close()
	dec := encoder.NewDecoder(m, notify.New())
	dec.Prime()
	if err := m.EnableEncoderInterrupt(dec.Interrupt); err != nil {
		log.Fatalf("Encoder: %v", err)
	}
	defer m.DisableInterrupt()
	params := cfg.Params()
	reader := bufio.NewReader(os.Stdin)
	var duty float64
	for {
		fmt.Printf("[%s] steps %d (%d spurious)\n", report.Bar(duty, cfg.Width), dec.Steps(), dec.Spurious())
		fmt.Print("Enter magnitude or command ('help' for help) ")
		text, err := reader.ReadString('\n')
		if err != nil {
			text = "q"
		}
		text = strings.TrimSpace(text)
		switch {
		case text == "help":
			fmt.Println("  help - print help")
			fmt.Println("  [-]NNN drive with magnitude (negative for direction A)")
			fmt.Println("  s - stop")
			fmt.Println("  z - zero the encoder")
			fmt.Println("  g NNN - regulate to position for 2 seconds")
			fmt.Println("  q - quit")
		case text == "q":
			m.WritePWM(hw.Idle, 0)
			return
		case text == "s" || text == "":
			duty = 0
			drive(m, hw.Idle, 0)
		case text == "z":
			dec.Reset()
			dec.Prime()
		case strings.HasPrefix(text, "g"):
			var target int32
			if n, err := fmt.Sscanf(text, "g %d", &target); err != nil || n != 1 {
				fmt.Printf("Unrecognised input\n")
				break
			}
			for end := time.Now().Add(2 * time.Second); time.Now().Before(end); time.Sleep(5 * time.Millisecond) {
				cmd := params.Compute(dec.Steps(), target)
				drive(m, cmd.Dir, cmd.Magnitude)
				duty = cmd.Duty
			}
		default:
			var mag int
			n, err := fmt.Sscanf(text, "%d", &mag)
			if err != nil || n != 1 {
				fmt.Printf("Unrecognised input\n")
				break
			}
			dir := hw.DirB
			if mag < 0 {
				dir = hw.DirA
				mag = -mag
			}
			if mag >= int(params.Period) {
				mag = int(params.Period) - 1
			}
			duty = float64(mag) / float64(params.Period)
			if dir == hw.DirB {
				duty = -duty
			}
			drive(m, dir, uint32(mag))
		}
	}
}

func drive(m hw.Hardware, dir hw.Direction, mag uint32) {
	if err := m.WritePWM(dir, mag); err != nil {
		log.Printf("WritePWM: %s %d: %v", dir, mag, err)
	}
}
