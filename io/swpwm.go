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
	"time"
)

type pwmMsg struct {
	period time.Duration
	on     time.Duration
	stop   chan bool
}

// SwPwm drives a GPIO output as a PWM signal from a goroutine.
// Timing is only as good as the scheduler allows, so this is
// suitable for slow motor drives when no PWM unit is available.
type SwPwm struct {
	pin Setter
	c   chan pwmMsg
}

// NewSwPWM creates a new s/w PWM controller, initially off.
func NewSwPWM(pin Setter) *SwPwm {
	p := new(SwPwm)
	p.pin = pin
	p.c = make(chan pwmMsg, 1)
	go p.handler()
	return p
}

// Close stops the PWM controller and sets the output low.
func (p *SwPwm) Close() {
	sc := make(chan bool)
	p.c <- pwmMsg{stop: sc}
	<-sc
}

// Set sets the PWM parameters. The changes take
// place at the end of the current period.
func (p *SwPwm) Set(period, on time.Duration) error {
	if period <= 0 || on < 0 || on > period {
		return fmt.Errorf("invalid pwm setting (period %s, on %s)", period, on)
	}
	// Replace any update that has not yet been applied.
	select {
	case m := <-p.c:
		if m.stop != nil {
			p.c <- m
			return fmt.Errorf("pwm closed")
		}
	default:
	}
	p.c <- pwmMsg{period: period, on: on}
	return nil
}

// goroutine handler
// Runs the output, and checks for new parameters after each cycle.
func (p *SwPwm) handler() {
	var on, off time.Duration
	off = time.Millisecond * 5
	current := 0
	p.pin.Set(0)
	for {
		if on != 0 {
			if current != 1 {
				p.pin.Set(1)
				current = 1
			}
			time.Sleep(on)
		}
		if off != 0 {
			if current != 0 {
				p.pin.Set(0)
				current = 0
			}
			time.Sleep(off)
		}
		select {
		case m := <-p.c:
			if m.stop != nil {
				p.pin.Set(0)
				m.stop <- true
				return
			}
			on = m.on
			off = m.period - on
		default:
		}
	}
}
