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

package report

import (
	"fmt"
	"log"
	"math"
	"net/http"

	"github.com/fogleman/gg"
)

// Gauge dimensions.
const (
	gaugeW = 400
	gaugeH = 60
	margin = 10
)

// Handler returns a mux serving the duty gauge as /duty.png,
// and the status line as /status.
func Handler(src Source) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/duty.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		err := Gauge(src.Duty()).EncodePNG(w)
		if err != nil {
			log.Printf("Error writing gauge: %v", err)
		}
	})
	r := New(nil, src, DefaultWidth)
	mux.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintln(w, r.Line())
	})
	return mux
}

// Server creates (but does not start) an HTTP server for the gauge.
func Server(port int, src Source) *http.Server {
	return &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: Handler(src)}
}

// Gauge draws the duty as a bar extending from the centre, to the
// right for a positive duty and to the left for a negative duty.
func Gauge(duty float64) *gg.Context {
	c := gg.NewContext(gaugeW, gaugeH)
	c.SetRGB(1, 1, 1)
	c.Clear()
	a := math.Abs(duty)
	if math.IsNaN(a) {
		a = 0
	}
	half := float64(gaugeW-2*margin) / 2
	mid := float64(gaugeW) / 2
	l := half * math.Min(a, 1)
	x := mid
	if duty < 0 {
		x = mid - l
		c.SetRGB(0.8, 0.2, 0.2)
	} else {
		c.SetRGB(0.2, 0.6, 0.2)
	}
	c.DrawRectangle(x, margin, l, gaugeH/2-margin)
	c.Fill()
	// Outline and centre mark.
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(1)
	c.DrawRectangle(margin, margin, float64(gaugeW-2*margin), gaugeH/2-margin)
	c.Stroke()
	c.DrawLine(mid, margin/2, mid, gaugeH/2+margin/2)
	c.Stroke()
	c.DrawStringAnchored(fmt.Sprintf("%+.3f", duty), mid, gaugeH*3/4, 0.5, 0.5)
	return c
}
