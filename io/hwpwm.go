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
	"strconv"
	"time"
)

// PWM is a pulse width modulated output. Set takes the period
// and the on time within that period.
type PWM interface {
	Close()
	Set(period, on time.Duration) error
}

// HwPwm is a sysfs hardware PWM unit.
type HwPwm struct {
	unit   int
	pFile  *os.File
	dFile  *os.File
	period int64
	duty   int64
}

// NewHwPWM creates a new hardware PWM controller, initially off.
func NewHwPWM(unit int, period time.Duration) (*HwPwm, error) {
	p := &HwPwm{unit: unit, period: -1, duty: -1}
	pName := pwmClass.attr("pwm", unit, "period")
	if err := pwmClass.export(unit, pName); err != nil {
		return nil, err
	}
	err := p.open(pName, pwmClass.attr("pwm", unit, "duty_cycle"))
	if err == nil {
		err = p.Set(period, 0)
	}
	if err == nil {
		err = p.enable(true)
	}
	if err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

func (p *HwPwm) open(pName, dName string) error {
	var err error
	if p.pFile, err = os.OpenFile(pName, os.O_RDWR, 0600); err != nil {
		return err
	}
	// The duty cycle attribute may lag the period in becoming writable.
	if err = verifyFile(dName); err != nil {
		return err
	}
	p.dFile, err = os.OpenFile(dName, os.O_RDWR, 0600)
	return err
}

func (p *HwPwm) enable(on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	return writeAttr(pwmClass.attr("pwm", p.unit, "enable"), v)
}

// release closes the attribute files and unexports the unit.
func (p *HwPwm) release() {
	if p.pFile != nil {
		p.pFile.Close()
	}
	if p.dFile != nil {
		p.dFile.Close()
	}
	pwmClass.unexport(p.unit)
}

// Close disables the PWM output and releases the unit.
func (p *HwPwm) Close() {
	p.enable(false)
	p.release()
}

// Set sets the PWM period and on time.
func (p *HwPwm) Set(period, on time.Duration) error {
	pNano := period.Nanoseconds()
	if pNano < 15 {
		return fmt.Errorf("pwm%d: invalid period %s", p.unit, period)
	}
	dNano := on.Nanoseconds()
	if dNano < 0 || dNano > pNano {
		return fmt.Errorf("pwm%d: invalid on time %s", p.unit, on)
	}
	// The duty cycle must never exceed the period currently
	// programmed, so the order of the writes depends on the direction of change.
	if dNano > p.period {
		if err := p.write(p.pFile, pNano); err != nil {
			return err
		}
		if err := p.write(p.dFile, dNano); err != nil {
			return err
		}
	} else {
		if dNano != p.duty {
			if err := p.write(p.dFile, dNano); err != nil {
				return err
			}
		}
		if pNano != p.period {
			if err := p.write(p.pFile, pNano); err != nil {
				return err
			}
		}
	}
	p.period = pNano
	p.duty = dNano
	return nil
}

func (p *HwPwm) write(f *os.File, v int64) error {
	_, err := f.WriteAt([]byte(strconv.FormatInt(v, 10)), 0)
	return err
}
