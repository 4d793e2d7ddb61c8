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

// Program to demonstrate driving a motor with PWM, sweeping
// the drive up and down in each direction.

package main

import (
	"flag"
	"log"
	"math"
	"time"

	"github.com/aamcrae/motorsync/axis"
	"github.com/aamcrae/motorsync/hw"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("motor", "motor", "Config file section for the motor")
var backend = flag.String("backend", "sysfs", "Motor backend: sysfs or cdev")
var maxDuty = flag.Float64("max", 0.5, "Maximum duty, as a fraction of the period")

func main() {
	flag.Parse()
	cfg, err := axis.Load(*configFile, *section)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	cfg.Backend = *backend
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config: %v", err)
	}
	m, err := axis.OpenMotor(cfg)
	if err != nil {
		log.Fatalf("Motor: %v", err)
	}
	defer m.Close()
	defer m.WritePWM(hw.Idle, 0)
	for _, dir := range []hw.Direction{hw.DirA, hw.DirB} {
		for v := 0; v < 90; v++ {
			set(m, dir, v, cfg.Period)
		}
		for v := 89; v >= 0; v-- {
			set(m, dir, v, cfg.Period)
		}
	}
}

func set(m hw.Hardware, dir hw.Direction, v int, period uint32) {
	r := float64(v) * math.Pi / 180
	mag := uint32(math.Sin(r) * *maxDuty * float64(period))
	err := m.WritePWM(dir, mag)
	if err != nil {
		log.Fatalf("WritePWM: %s, magnitude %d: %v", dir, mag, err)
	}
	time.Sleep(time.Millisecond * 50)
}
