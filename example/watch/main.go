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

// Program to demonstrate how to watch the encoder of a motor.

package main

import (
	"flag"
	"log"
	"time"

	"github.com/aamcrae/motorsync/axis"
	"github.com/aamcrae/motorsync/encoder"
	"github.com/aamcrae/motorsync/notify"
)

var configFile = flag.String("config", "", "Configuration file")
var section = flag.String("motor", "motor", "Config file section for the motor")
var backend = flag.String("backend", "sysfs", "Motor backend: sysfs or cdev")

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
	sig := notify.New()
	dec := encoder.NewDecoder(m, sig)
	dec.Prime()
	err = m.EnableEncoderInterrupt(dec.Interrupt)
	if err != nil {
		log.Fatalf("Encoder: %v", err)
	}
	defer m.DisableInterrupt()
	for {
		if sig.Wait(10 * time.Second) {
			a, b := m.ReadQuadrature()
			log.Printf("steps %d (A=%d B=%d, %d spurious)\n", dec.Steps(), a, b, dec.Spurious())
		}
	}
}
