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

// Package io provides sysfs access to GPIO pins and PWM units.

package io

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// Setter is an interface for setting an output value on a GPIO
type Setter interface {
	Set(int) error
}

const verifyTimeout = 2 * time.Second

// Verify will enable waiting for exported files to become writable.
// When not running as root, udev changes the group permissions on
// exported files some time after the export, and accessing them
// before then fails with a permission error.
var Verify = false

func init() {
	// If the user is not root, enable Verify mode
	u, err := user.Current()
	if err == nil && u.Uid != "0" {
		Verify = true
	}
}

// class is a sysfs device class directory with export and unexport
// control files, such as /sys/class/gpio/.
type class string

const (
	gpioClass class = "/sys/class/gpio/"
	pwmClass  class = "/sys/class/pwm/pwmchip0/"
)

// attr returns the path of an attribute of an exported unit
// e.g gpioClass.attr("gpio", 4, "value").
func (c class) attr(prefix string, unit int, name string) string {
	return fmt.Sprintf("%s%s%d/%s", c, prefix, unit, name)
}

// export exports unit, unless probe is already accessible.
func (c class) export(unit int, probe string) error {
	if unix.Access(probe, unix.W_OK|unix.R_OK) == nil {
		return nil
	}
	if err := writeAttr(string(c)+"export", strconv.Itoa(unit)); err != nil {
		return err
	}
	if Verify {
		return verifyFile(probe)
	}
	return nil
}

func (c class) unexport(unit int) error {
	return writeAttr(string(c)+"unexport", strconv.Itoa(unit))
}

// writeAttr writes a value to a sysfs attribute.
func writeAttr(name, v string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	_, err = f.WriteString(v)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// verifyFile waits for a file to become writable.
func verifyFile(f string) error {
	deadline := time.Now().Add(verifyTimeout)
	for unix.Access(f, unix.W_OK) != nil {
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: not writable", f)
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}
