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

// Package report displays the motor drive.

package report

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// DefaultWidth is the default number of cells in a bar.
const DefaultWidth = 20

// Source supplies the values displayed. All methods must be safe
// to call concurrently with the control tasks.
type Source interface {
	Duty() float64
	Steps() int32
	Target() int32
}

// Bar renders a duty cycle as a bar of width cells. Filled cells
// use '+' for a positive duty and '-' for a negative duty.
func Bar(duty float64, width int) string {
	if width <= 0 {
		return ""
	}
	glyph := "+"
	if duty < 0 {
		glyph = "-"
	}
	a := math.Abs(duty)
	if math.IsNaN(a) {
		a = 0
	}
	n := int(math.Round(float64(width) * math.Min(a, 1)))
	return strings.Repeat(glyph, n) + strings.Repeat(" ", width-n)
}

// Reporter periodically writes a status line. It only reads from
// its source, and a slow writer only delays the next line.
type Reporter struct {
	w     io.Writer
	src   Source
	width int
}

// New creates a Reporter writing to w.
func New(w io.Writer, src Source, width int) *Reporter {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Reporter{w: w, src: src, width: width}
}

// Line returns the current status line.
func (r *Reporter) Line() string {
	d := r.src.Duty()
	return fmt.Sprintf("[%s] %+.3f steps %d target %d", Bar(d, r.width), d, r.src.Steps(), r.src.Target())
}

// Run writes a status line every tick until running returns false.
// The line is rewritten in place.
func (r *Reporter) Run(running func() bool, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for running() {
		<-ticker.C
		// Nothing is written once stopped.
		if !running() {
			break
		}
		fmt.Fprintf(r.w, "%s    \r", r.Line())
	}
	fmt.Fprintln(r.w)
}
