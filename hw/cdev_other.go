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

//go:build !linux

package hw

import (
	"errors"
)

// Cdev is only available on Linux.
type Cdev struct {
	Sim
}

// NewCdev always fails on this platform.
func NewCdev(p Pins) (*Cdev, error) {
	return nil, fault("open", errors.New("GPIO character device requires linux"))
}
