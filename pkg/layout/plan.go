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

const (
	BootPartition = "boot"
	RootPartition = "root"
)

// Geometry describes the volume to be partitioned, all values in 512-byte sectors
type Geometry struct {
	TotalSectors      uint64
	GrainSectors      uint64
	FirstUsableSector uint64
}

func (g Geometry) Validate() error {
	if g.GrainSectors == 0 {
		return configErr("alignment grain must be greater than zero")
	}
	if g.TotalSectors == 0 {
		return configErr("volume size must be at least one sector")
	}
	if g.FirstUsableSector == 0 {
		return configErr("first sector 0 holds the partition table")
	}
	if g.FirstUsableSector >= g.TotalSectors {
		return configErr("first sector %d is beyond the end of the volume (%d sectors)", g.FirstUsableSector, g.TotalSectors)
	}
	return nil
}

// SizeBytes is the size of the volume in bytes
func (g Geometry) SizeBytes() uint64 {
	return g.TotalSectors * SectorSize
}

// GrainBytes is the alignment grain, the erase block size, in bytes
func (g Geometry) GrainBytes() uint64 {
	return g.GrainSectors * SectorSize
}

// PlannedPartition is a named allocation of a PartitionPlan
type PlannedPartition struct {
	Name string
	AllocationResult
}

// PartitionPlan is the computed two partition layout. It is not modified
// after Plan returns.
type PartitionPlan struct {
	Geometry      Geometry
	Aligned       bool
	Partitions    [2]PlannedPartition
	UnusedSectors uint64
}

func (p PartitionPlan) Boot() PlannedPartition {
	return p.Partitions[0]
}

func (p PartitionPlan) Root() PlannedPartition {
	return p.Partitions[1]
}

type planOptions struct {
	align      bool
	alignFirst bool
}

type PlanOpt func(*planOptions)

// WithAlignment enables or disables alignment of all partitions
func WithAlignment(align bool) PlanOpt {
	return func(o *planOptions) {
		o.align = align
	}
}

// WithFirstAligned sets whether the first partition starts on a grain boundary
// or exactly at the first usable sector, e.g. to match an existing boundary.
func WithFirstAligned(align bool) PlanOpt {
	return func(o *planOptions) {
		o.alignFirst = align
	}
}

// Plan allocates the boot partition and then the root partition right after it.
// Any allocation failure fails the whole plan. Sectors left after the root
// partition are reported as unused.
func Plan(geo Geometry, boot, root SizeConstraint, opts ...PlanOpt) (*PartitionPlan, error) {
	o := &planOptions{align: true, alignFirst: true}
	for _, opt := range opts {
		opt(o)
	}

	if err := geo.Validate(); err != nil {
		return nil, err
	}
	if err := boot.Validate(); err != nil {
		return nil, err
	}
	if err := root.Validate(); err != nil {
		return nil, err
	}

	aligner, err := NewAligner(geo.GrainSectors, o.align)
	if err != nil {
		return nil, err
	}

	bootRes, err := aligner.Allocate(AllocationRequest{
		Name:             BootPartition,
		FirstSector:      geo.FirstUsableSector,
		AvailableSectors: geo.TotalSectors - geo.FirstUsableSector,
		Constraint:       boot,
		AlignStart:       o.alignFirst,
	})
	if err != nil {
		return nil, err
	}
	if bootRes.Exhausted() {
		return nil, &AllocationError{
			Partition:        RootPartition,
			RequiredSectors:  max(BytesToSectors(root.MinBytes), 1),
			AvailableSectors: 0,
		}
	}

	rootRes, err := aligner.Allocate(AllocationRequest{
		Name:             RootPartition,
		FirstSector:      bootRes.NextFreeSector,
		AvailableSectors: bootRes.RemainingSectors,
		Constraint:       root,
		AlignStart:       true,
	})
	if err != nil {
		return nil, err
	}

	return &PartitionPlan{
		Geometry: geo,
		Aligned:  aligner.Enabled(),
		Partitions: [2]PlannedPartition{
			{Name: BootPartition, AllocationResult: bootRes},
			{Name: RootPartition, AllocationResult: rootRes},
		},
		UnusedSectors: rootRes.RemainingSectors,
	}, nil
}
