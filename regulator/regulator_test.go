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

package regulator

import (
	"math"
	"testing"

	"github.com/aamcrae/motorsync/hw"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCompute(t *testing.T) {
	p := Default()

	Convey("Zero error stops the motor every time", t, func() {
		for i := 0; i < 3; i++ {
			c := p.Compute(42, 42)
			So(c.Dir, ShouldEqual, hw.Idle)
			So(c.Magnitude, ShouldEqual, 0)
			So(c.Duty, ShouldEqual, 0.0)
		}
	})

	Convey("A target ahead drives direction B with negative duty", t, func() {
		c := p.Compute(0, 10)
		So(c.Dir, ShouldEqual, hw.DirB)
		So(c.Magnitude, ShouldEqual, 200)
		So(c.Duty, ShouldAlmostEqual, -200.0/5000.0)
	})

	Convey("A target behind drives direction A with positive duty", t, func() {
		c := p.Compute(10, 0)
		So(c.Dir, ShouldEqual, hw.DirA)
		So(c.Magnitude, ShouldEqual, 200)
		So(c.Duty, ShouldAlmostEqual, 200.0/5000.0)
	})

	Convey("The smallest error gets the floor plus one gain step", t, func() {
		So(p.Compute(0, 1).Magnitude, ShouldEqual, 110)
		So(p.Compute(1, 0).Magnitude, ShouldEqual, 110)
	})

	Convey("Drive is clamped below the period", t, func() {
		c := p.Compute(0, 10000)
		So(c.Magnitude, ShouldEqual, 4999)
		So(c.Duty, ShouldAlmostEqual, -4999.0/5000.0)
		c = p.Compute(math.MaxInt32, math.MinInt32)
		So(c.Magnitude, ShouldEqual, 4999)
		So(c.Dir, ShouldEqual, hw.DirA)
	})

	Convey("Duty is monotonic in the error and bounded", t, func() {
		last := 0.0
		bound := float64(p.Period-1) / float64(p.Period)
		for e := int32(0); e < 1000; e++ {
			d := math.Abs(p.Compute(0, e).Duty)
			So(d, ShouldBeGreaterThanOrEqualTo, last)
			So(d, ShouldBeLessThanOrEqualTo, bound)
			last = d
		}
	})

	Convey("Tuning is configurable", t, func() {
		q := Params{Gain: 2, Floor: 0, Period: 100}
		So(q.Validate(), ShouldBeNil)
		So(q.Compute(0, -5).Magnitude, ShouldEqual, 10)
		So(q.Compute(0, -5).Duty, ShouldAlmostEqual, 0.1)
	})

	Convey("Invalid tuning is rejected", t, func() {
		So(Params{Gain: 1, Period: 1}.Validate(), ShouldNotBeNil)
		So(Params{Gain: 0, Period: 100}.Validate(), ShouldNotBeNil)
		So(Params{Gain: 1, Floor: -1, Period: 100}.Validate(), ShouldNotBeNil)
		So(Default().Validate(), ShouldBeNil)
	})
}
