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

package layout

import "fmt"

const (
	SectorSize = 512

	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
)

// SectorRange is an inclusive range of 512-byte sectors. A valid range is
// never empty, End >= Start.
type SectorRange struct {
	Start uint64
	End   uint64
}

// Sectors returns the size of the range in sectors
func (r SectorRange) Sectors() uint64 {
	return r.End - r.Start + 1
}

// Bytes returns the size of the range in bytes
func (r SectorRange) Bytes() uint64 {
	return r.Sectors() * SectorSize
}

func (r SectorRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Overlaps reports whether both ranges share at least one sector
func (r SectorRange) Overlaps(o SectorRange) bool {
	return r.Start <= o.End && o.Start <= r.End
}

// SizeConstraint bounds the size of a partition in bytes. A zero MaxBytes
// means unbounded, the partition takes whatever space remains.
type SizeConstraint struct {
	MinBytes uint64
	MaxBytes uint64
}

func (c SizeConstraint) Validate() error {
	if c.MaxBytes != 0 && c.MinBytes > c.MaxBytes {
		return configErr("minimum size %d bytes is larger than maximum size %d bytes", c.MinBytes, c.MaxBytes)
	}
	return nil
}

// BytesToSectors converts a byte count to sectors rounding up any partial sector
func BytesToSectors(bytes uint64) uint64 {
	sectors := bytes / SectorSize
	if bytes%SectorSize != 0 {
		sectors++
	}
	return sectors
}

// AlignSector rounds sector up to the next multiple of grain. grain must be
// greater than zero.
func AlignSector(sector, grain uint64) uint64 {
	if grain == 0 {
		panic("layout: sector alignment with a zero grain")
	}
	if r := sector % grain; r != 0 {
		return sector + grain - r
	}
	return sector
}

// Aligner rounds sectors up to the alignment grain. A disabled aligner is the
// identity function.
type Aligner struct {
	grain    uint64
	disabled bool
}

// NewAligner returns an aligner for the given grain in sectors. A zero grain
// is rejected even when alignment is disabled.
func NewAligner(grain uint64, enabled bool) (Aligner, error) {
	if grain == 0 {
		return Aligner{}, configErr("alignment grain must be greater than zero")
	}
	return Aligner{grain: grain, disabled: !enabled}, nil
}

func (a Aligner) Grain() uint64 {
	return a.grain
}

func (a Aligner) Enabled() bool {
	return !a.disabled
}

// Align returns the first sector at or after the given one which is a multiple of the grain
func (a Aligner) Align(sector uint64) uint64 {
	if a.disabled {
		return sector
	}
	return AlignSector(sector, a.grain)
}
