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

package axis

import (
	"fmt"
	"io"
	"time"

	"github.com/aamcrae/config"
	"github.com/aamcrae/motorsync/control"
	"github.com/aamcrae/motorsync/hw"
	"github.com/aamcrae/motorsync/regulator"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to the environment variable of each setting.
const EnvPrefix = "MOTORSYNC_"

// Backends
const (
	Sim   = "sim"
	Sysfs = "sysfs"
	Cdev  = "cdev"
)

// Config holds the settings for one axis. Remote is empty on the slave.
// LocalPort of 0 binds the master to any free port, SoftPwm of -1
// selects the PWM unit, and Http of 0 disables the gauge server.
type Config struct {
	Name      string
	Remote    string        `env:"REMOTE"`
	Port      int           `env:"PORT"`
	LocalPort int           `env:"LOCAL_PORT"`
	Backend   string        `env:"BACKEND"`
	Chip      string        `env:"CHIP"`
	EncoderA  int           `env:"ENCODER_A"`
	EncoderB  int           `env:"ENCODER_B"`
	DirA      int           `env:"DIR_A"`
	DirB      int           `env:"DIR_B"`
	PwmUnit   int           `env:"PWM"`
	SoftPwm   int           `env:"SOFT_PWM"`
	PwmPeriod time.Duration `env:"PWM_PERIOD"`
	Period    uint32        `env:"PERIOD"`
	Gain      int64         `env:"GAIN"`
	Floor     int64         `env:"FLOOR"`
	Refresh   time.Duration `env:"REFRESH"`
	Report    time.Duration `env:"REPORT"`
	Width     int           `env:"WIDTH"`
	Grace     time.Duration `env:"GRACE"`
	Http      int           `env:"HTTP"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Name:      "motor",
		Port:      5000,
		Backend:   Sim,
		Chip:      "gpiochip0",
		EncoderA:  5,
		EncoderB:  6,
		DirA:      23,
		DirB:      24,
		SoftPwm:   -1,
		PwmPeriod: time.Millisecond,
		Period:    regulator.DefaultPeriod,
		Gain:      regulator.DefaultGain,
		Floor:     regulator.DefaultFloor,
		Refresh:   time.Second,
		Report:    100 * time.Millisecond,
		Width:     20,
		Grace:     100 * time.Millisecond,
	}
}

// Load builds a config from the defaults, the named section of
// the config file (if a file is given), and then the environment.
func Load(file, section string) (*Config, error) {
	c := Default()
	if file != "" {
		conf, err := config.ParseFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		if err := c.Read(conf, section); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
	}
	if err := c.Env(); err != nil {
		return nil, err
	}
	return c, nil
}

// Read overrides the settings present in a config file section.
// Sample config:
//  [motor]
//  remote=10.0.0.2          # Omit on the slave
//  port=5000
//  backend=sysfs            # sim, sysfs or cdev
//  encoder=5,6              # GPIOs for encoder channels A and B
//  direction=23,24          # GPIOs for the direction outputs
//  pwm=0                    # sysfs PWM unit
//  soft-pwm=18              # or a GPIO for software PWM
//  pwm-period=1ms
//  period=5000              # Magnitude of a full PWM period
//  gain=10
//  floor=100
//  refresh=1s
func (c *Config) Read(conf *config.Config, section string) error {
	s := conf.GetSection(section)
	if s == nil {
		return fmt.Errorf("no config for %s", section)
	}
	c.Name = section
	// parse scans a key if present; absent keys keep their value.
	parse := func(key, format string, args ...interface{}) error {
		if _, err := s.GetArg(key); err != nil {
			return nil
		}
		n, err := s.Parse(key, format, args...)
		if err != nil {
			return fmt.Errorf("%s: %v", key, err)
		}
		if n != len(args) {
			return fmt.Errorf("%s: argument count", key)
		}
		return nil
	}
	duration := func(key string, d *time.Duration) error {
		v, err := s.GetArg(key)
		if err != nil {
			return nil
		}
		if *d, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %v", key, err)
		}
		return nil
	}
	str := func(key string, v *string) error {
		if a, err := s.GetArg(key); err == nil {
			*v = a
		}
		return nil
	}
	for _, err := range []error{
		str("remote", &c.Remote),
		parse("port", "%d", &c.Port),
		parse("local-port", "%d", &c.LocalPort),
		str("backend", &c.Backend),
		str("chip", &c.Chip),
		parse("encoder", "%d,%d", &c.EncoderA, &c.EncoderB),
		parse("direction", "%d,%d", &c.DirA, &c.DirB),
		parse("pwm", "%d", &c.PwmUnit),
		parse("soft-pwm", "%d", &c.SoftPwm),
		duration("pwm-period", &c.PwmPeriod),
		parse("period", "%d", &c.Period),
		parse("gain", "%d", &c.Gain),
		parse("floor", "%d", &c.Floor),
		duration("refresh", &c.Refresh),
		duration("report", &c.Report),
		parse("width", "%d", &c.Width),
		duration("grace", &c.Grace),
		parse("http", "%d", &c.Http),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Env overrides settings from MOTORSYNC_* environment variables.
func (c *Config) Env() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d: out of range", c.Port)
	}
	if c.LocalPort < 0 || c.LocalPort > 65535 {
		return fmt.Errorf("local-port %d: out of range", c.LocalPort)
	}
	if c.Http < 0 || c.Http > 65535 {
		return fmt.Errorf("http %d: out of range", c.Http)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Width < 1 {
		return fmt.Errorf("width %d: must be at least 1", c.Width)
	}
	if c.Refresh < 0 || c.Report < 0 || c.Grace < 0 {
		return fmt.Errorf("intervals must not be negative")
	}
	switch c.Backend {
	case Sim:
	case Sysfs, Cdev:
		if c.EncoderA == c.EncoderB {
			return fmt.Errorf("encoder: channels A and B both on GPIO %d", c.EncoderA)
		}
		if c.DirA == c.DirB {
			return fmt.Errorf("direction: outputs A and B both on GPIO %d", c.DirA)
		}
		if c.PwmPeriod <= 0 {
			return fmt.Errorf("pwm-period %s: must be positive", c.PwmPeriod)
		}
	default:
		return fmt.Errorf("backend %q: unknown", c.Backend)
	}
	return nil
}

// Mode returns the role selected by the settings.
func (c *Config) Mode() control.Mode {
	return control.ModeFor(c.Remote)
}

// Params returns the regulator tuning.
func (c *Config) Params() regulator.Params {
	return regulator.Params{Gain: c.Gain, Floor: c.Floor, Period: c.Period}
}

// Pins returns the hardware assignment.
func (c *Config) Pins() hw.Pins {
	return hw.Pins{
		Chip:      c.Chip,
		EncoderA:  c.EncoderA,
		EncoderB:  c.EncoderB,
		DirA:      c.DirA,
		DirB:      c.DirB,
		PwmUnit:   c.PwmUnit,
		SoftPwm:   c.SoftPwm,
		PwmPeriod: c.PwmPeriod,
		Period:    c.Period,
	}
}

// Options returns the controller options, with the status line
// written to out.
func (c *Config) Options(out io.Writer) control.Options {
	return control.Options{
		Remote:  c.Remote,
		Params:  c.Params(),
		Refresh: c.Refresh,
		Report:  c.Report,
		Width:   c.Width,
		Out:     out,
		Grace:   c.Grace,
	}
}
