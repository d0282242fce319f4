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


package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/docker/go-units"
	"go.yaml.in/yaml/v3"

	"github.com/suse/sdimage/pkg/layout"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

const (
	DefaultBootMin = "80MiB"
	DefaultBootMax = "80MiB"
	DefaultRootMin = "1GiB"
	DefaultRootMax = "0"
)

// Constraint holds the size limits of a partition in human readable units.
// A zero maximum means the partition takes whatever is left.
type Constraint struct {
	Min string `yaml:"min,omitempty"`
	Max string `yaml:"max,omitempty"`
}

// Layout is the description of the volume to partition. Empty size values are
// taken from the target device, or from the built-in defaults when there is
// no device to inspect.
type Layout struct {
	Size        string     `yaml:"size,omitempty"`
	EraseSize   string     `yaml:"erase-size,omitempty"`
	FirstSector *uint64    `yaml:"first-sector,omitempty"`
	Align       *bool      `yaml:"align,omitempty"`
	AlignFirst  *bool      `yaml:"align-first,omitempty"`
	Boot        Constraint `yaml:"boot"`
	Root        Constraint `yaml:"root"`
}

// Settings are the resolved planner inputs
type Settings struct {
	Geometry   layout.Geometry
	Boot       layout.SizeConstraint
	Root       layout.SizeConstraint
	Align      bool
	AlignFirst bool
}

// PlanOptions returns the planner options matching the settings
func (s Settings) PlanOptions() []layout.PlanOpt {
	return []layout.PlanOpt{layout.WithAlignment(s.Align), layout.WithFirstAligned(s.AlignFirst)}
}

func Default() *Layout {
	return &Layout{
		Boot: Constraint{Min: DefaultBootMin, Max: DefaultBootMax},
		Root: Constraint{Min: DefaultRootMin, Max: DefaultRootMax},
	}
}

// Load reads a layout file on top of the defaults. Unknown keys are rejected.
func Load(f vfs.FS, path string) (*Layout, error) {
	data, err := f.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading layout file '%s': %w", path, err)
	}

	l := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err = decoder.Decode(l); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing layout file '%s': %w", path, err)
	}
	return l, nil
}

// Merge overrides the layout with every value set in o
func (l *Layout) Merge(o *Layout) {
	if o.Size != "" {
		l.Size = o.Size
	}
	if o.EraseSize != "" {
		l.EraseSize = o.EraseSize
	}
	if o.FirstSector != nil {
		l.FirstSector = o.FirstSector
	}
	if o.Align != nil {
		l.Align = o.Align
	}
	if o.AlignFirst != nil {
		l.AlignFirst = o.AlignFirst
	}
	l.Boot.merge(o.Boot)
	l.Root.merge(o.Root)
}

func (c *Constraint) merge(o Constraint) {
	if o.Min != "" {
		c.Min = o.Min
	}
	if o.Max != "" {
		c.Max = o.Max
	}
}

// ParseSize parses a size in bytes, accepting binary unit suffixes such as
// 80MiB, 1G or 79.9MiB.
func ParseSize(size string) (uint64, error) {
	v, err := units.RAMInBytes(size)
	if err != nil {
		return 0, &layout.ConfigurationError{Reason: fmt.Sprintf("invalid size '%s'", size)}
	}
	if v < 0 {
		return 0, &layout.ConfigurationError{Reason: fmt.Sprintf("negative size '%s'", size)}
	}
	return uint64(v), nil
}

func (c Constraint) resolve() (layout.SizeConstraint, error) {
	var sc layout.SizeConstraint
	var err error

	if c.Min != "" {
		if sc.MinBytes, err = ParseSize(c.Min); err != nil {
			return sc, err
		}
	}
	if c.Max != "" {
		if sc.MaxBytes, err = ParseSize(c.Max); err != nil {
			return sc, err
		}
	}
	return sc, sc.Validate()
}

// Resolve turns the layout description into planner inputs. If device is not
// empty its sysfs attributes fill the size and erase block size left unset.
func (l Layout) Resolve(f vfs.FS, device string) (*Settings, error) {
	size, erase := uint64(layout.DefaultVolumeSize), uint64(layout.DefaultEraseSize)
	if device != "" {
		geo, err := layout.GeometryFromDevice(f, device)
		if err != nil {
			return nil, err
		}
		size, erase = geo.SizeBytes(), geo.GrainBytes()
	}

	var err error
	if l.Size != "" {
		if size, err = ParseSize(l.Size); err != nil {
			return nil, err
		}
	}
	if l.EraseSize != "" {
		if erase, err = ParseSize(l.EraseSize); err != nil {
			return nil, err
		}
	}
	first := uint64(layout.DefaultFirstSector)
	if l.FirstSector != nil {
		first = *l.FirstSector
	}

	s := &Settings{Align: true, AlignFirst: true}
	if l.Align != nil {
		s.Align = *l.Align
	}
	if l.AlignFirst != nil {
		s.AlignFirst = *l.AlignFirst
	}

	s.Geometry, err = layout.NewGeometry(size, erase, first)
	if err != nil {
		return nil, err
	}
	if s.Boot, err = l.Boot.resolve(); err != nil {
		return nil, fmt.Errorf("boot partition: %w", err)
	}
	if s.Root, err = l.Root.resolve(); err != nil {
		return nil, fmt.Errorf("root partition: %w", err)
	}
	return s, nil
}
