/*
Copyright © 2025 SUSE LLC
SPDX-License-Identifier: Apache-2.0

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package loop

import (
	"fmt"
	"strings"

	"github.com/suse/sdimage/pkg/diskrepart"
	"github.com/suse/sdimage/pkg/sys"
)

// Device is an image file attached to a loop device with partition scanning
type Device struct {
	s        *sys.System
	image    string
	path     string
	readOnly bool
}

type Opts func(d *Device)

func WithReadOnly() Opts {
	return func(d *Device) {
		d.readOnly = true
	}
}

// Attach sets up the first free loop device for the given image file
func Attach(s *sys.System, image string, opts ...Opts) (*Device, error) {
	d := &Device{s: s, image: image}
	for _, o := range opts {
		o(d)
	}

	args := []string{"--show", "-f", "-P"}
	if d.readOnly {
		args = append(args, "-r")
	}
	args = append(args, image)

	out, err := sys.RunTool(s, "losetup", args...)
	if err != nil {
		return nil, err
	}
	d.path = strings.TrimSpace(string(out))
	if d.path == "" {
		return nil, fmt.Errorf("no loop device reported for image '%s'", image)
	}
	s.Logger().Debug("Attached image '%s' to loop device '%s'", image, d.path)
	return d, nil
}

func (d Device) Path() string {
	return d.path
}

func (d Device) Image() string {
	return d.image
}

// PartitionDevice returns the device node of the given partition of the loop device
func (d Device) PartitionDevice(partNum int) string {
	return diskrepart.PartitionDevice(d.path, partNum)
}

// Detach flushes pending writes and releases the loop device. Detaching an
// already released device is a no-op.
func (d *Device) Detach() error {
	if d.path == "" {
		return nil
	}
	d.s.Syscall().Sync()
	_, err := sys.RunTool(d.s, "losetup", "-d", d.path)
	if err != nil {
		return err
	}
	d.s.Logger().Debug("Detached loop device '%s'", d.path)
	d.path = ""
	return nil
}
