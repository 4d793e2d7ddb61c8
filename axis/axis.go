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

// Package axis builds a synchronised motor from its configuration.

package axis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/aamcrae/motorsync/control"
	"github.com/aamcrae/motorsync/hw"
	"github.com/aamcrae/motorsync/link"
	"github.com/aamcrae/motorsync/report"
)

// Axis combines the hardware and network link for a motor, and the
// controller that runs them as either master or slave.
type Axis struct {
	Config     *Config
	Motor      hw.Hardware
	Link       *link.UDP
	Controller *control.Controller
	server     *http.Server
}

// OpenMotor opens the hardware backend selected by the config.
func OpenMotor(c *Config) (hw.Hardware, error) {
	switch c.Backend {
	case Sim:
		return hw.NewSim(), nil
	case Sysfs:
		m, err := hw.NewSysfs(c.Pins())
		if err != nil {
			return nil, err
		}
		return m, nil
	case Cdev:
		m, err := hw.NewCdev(c.Pins())
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("backend %q: unknown", c.Backend)
}

// OpenLink opens the sending link on a master, or the
// receiving link on a slave.
func OpenLink(c *Config) (*link.UDP, error) {
	if c.Mode() == control.Master {
		return link.Dial(c.Remote, c.Port, c.LocalPort)
	}
	return link.Listen(c.Port)
}

// New validates the config and opens the motor and link. The status
// line is written to out (nil disables it).
func New(c *Config, out io.Writer) (*Axis, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	a := &Axis{Config: c}
	m, err := OpenMotor(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	a.Motor = m
	a.Link, err = OpenLink(c)
	if err != nil {
		a.Motor.Close()
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	a.Controller = control.New(c.Options(out), a.Motor, a.Link)
	if c.Http > 0 {
		a.server = report.Server(c.Http, a.Controller)
	}
	return a, nil
}

// Start runs the controller, and the gauge server if configured.
func (a *Axis) Start() error {
	if err := a.Controller.Start(); err != nil {
		return fmt.Errorf("%s: %w", a.Config.Name, err)
	}
	log.Printf("%s: %s on port %d (%s backend)", a.Config.Name, a.Controller.Mode(), a.Config.Port, a.Config.Backend)
	if a.server != nil {
		go func() {
			err := a.server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("%s: gauge server: %v", a.Config.Name, err)
			}
		}()
	}
	return nil
}

// Close stops the controller and releases the hardware.
func (a *Axis) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		a.server.Shutdown(ctx)
		cancel()
	}
	a.Controller.Stop()
	if err := a.Motor.Close(); err != nil {
		log.Printf("%s: %v", a.Config.Name, err)
	}
}
