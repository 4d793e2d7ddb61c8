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
	"os"
	"sync/atomic"
)

// Mode
const (
	IN  = iota // Default
	OUT = iota
)

// Edge
const (
	NONE    = iota // Default
	RISING  = iota
	FALLING = iota
	BOTH    = iota
)

// Gpio represents one GPIO pin.
type Gpio struct {
	number    int
	value     *os.File
	buf       []byte
	last      int32 // Last value read
	direction int
	edge      int
}

// OutputPin opens a GPIO pin and sets the direction as OUTPUT.
func OutputPin(gpio int) (*Gpio, error) {
	g, err := Pin(gpio)
	if err != nil {
		return nil, err
	}
	err = g.Direction(OUT)
	if err != nil {
		g.Close()
		return nil, err
	}
	return g, nil
}

// Pin opens a GPIO pin as an input (by default)
func Pin(gpio int) (*Gpio, error) {
	g := new(Gpio)
	g.number = gpio
	g.buf = make([]byte, 1)
	value := gpioClass.attr("gpio", gpio, "value")
	if err := gpioClass.export(gpio, value); err != nil {
		return nil, err
	}
	err := g.Direction(IN)
	if err == nil {
		err = g.Edge(NONE)
	}
	if err == nil {
		g.value, err = os.OpenFile(value, os.O_RDWR, 0600)
	}
	if err != nil {
		gpioClass.unexport(gpio)
		return nil, err
	}
	return g, nil
}

// Number returns the GPIO number.
func (g *Gpio) Number() int {
	return g.number
}

// Direction sets the mode (direction) of the GPIO pin.
func (g *Gpio) Direction(d int) error {
	var s string
	switch d {
	case IN:
		s = "in"
	case OUT:
		s = "out"
	default:
		return fmt.Errorf("gpio%d: unknown direction", g.number)
	}
	err := writeAttr(gpioClass.attr("gpio", g.number, "direction"), s)
	if err == nil {
		g.direction = d
	}
	return err
}

// Edge sets the edge detection on the GPIO pin.
func (g *Gpio) Edge(e int) error {
	if g.direction != IN {
		return fmt.Errorf("gpio%d: not set as an input pin", g.number)
	}
	var s string
	switch e {
	case NONE:
		s = "none"
	case RISING:
		s = "rising"
	case FALLING:
		s = "falling"
	case BOTH:
		s = "both"
	default:
		return fmt.Errorf("gpio%d: unknown edge", g.number)
	}
	err := writeAttr(gpioClass.attr("gpio", g.number, "edge"), s)
	if err == nil {
		g.edge = e
	}
	return err
}

// Set the output of the GPIO pin (only valid for OUTPUT pins)
func (g *Gpio) Set(v int) error {
	if g.direction != OUT {
		return fmt.Errorf("gpio%d: is not output", g.number)
	}
	if v == 0 {
		g.buf[0] = '0'
	} else if v == 1 {
		g.buf[0] = '1'
	} else {
		return fmt.Errorf("gpio%d: illegal value", g.number)
	}
	_, err := g.value.WriteAt(g.buf, 0)
	return err
}

// Get returns the current value of the GPIO pin without waiting.
// Reading the value also clears any pending edge event.
func (g *Gpio) Get() (int, error) {
	var b [1]byte
	_, err := g.value.ReadAt(b[:], 0)
	if err != nil {
		return 0, err
	}
	switch b[0] {
	case '0':
		atomic.StoreInt32(&g.last, 0)
		return 0, nil
	case '1':
		atomic.StoreInt32(&g.last, 1)
		return 1, nil
	}
	return 0, fmt.Errorf("gpio%d: unknown value %q", g.number, b[0])
}

// Last returns the value seen by the most recent successful Get.
func (g *Gpio) Last() int {
	return int(atomic.LoadInt32(&g.last))
}

// Close the GPIO pin and unexport it.
func (g *Gpio) Close() {
	g.value.Close()
	gpioClass.unexport(g.number)
}
