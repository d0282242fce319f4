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

// AllocationRequest describes a single partition to be carved out of a free
// region starting at FirstSector and spanning AvailableSectors.
type AllocationRequest struct {
	// Name is only used to report failures
	Name             string
	FirstSector      uint64
	AvailableSectors uint64
	Constraint       SizeConstraint
	// AlignStart moves the start of the partition to the next grain boundary,
	// the sectors skipped are lost.
	AlignStart bool
}

// AllocationResult is the allocated range plus the free region left after it.
// Once the free region is exhausted NextFreeSector and RemainingSectors are zero.
type AllocationResult struct {
	Range            SectorRange
	NextFreeSector   uint64
	RemainingSectors uint64
}

// Exhausted reports whether the allocation consumed all the available sectors
func (r AllocationResult) Exhausted() bool {
	return r.RemainingSectors == 0
}

// Allocate computes the sector range of one partition.
//
// The partition gets at least the minimum and at most the maximum of its
// constraint, capped by the available sectors. When there is space left, the
// end of the partition is extended up to the next grain boundary so the
// following allocation starts aligned, this can make the partition larger
// than its maximum. If that boundary is at or past the end of the free region
// the partition takes all of it.
func (a Aligner) Allocate(req AllocationRequest) (AllocationResult, error) {
	if err := req.Constraint.Validate(); err != nil {
		return AllocationResult{}, err
	}

	minS := BytesToSectors(req.Constraint.MinBytes)
	maxS := BytesToSectors(req.Constraint.MaxBytes)
	available := req.AvailableSectors
	if req.Constraint.MaxBytes == 0 {
		maxS = available
	}

	start := req.FirstSector
	if req.AlignStart {
		start = a.Align(req.FirstSector)
	}
	shift := start - req.FirstSector
	if shift > available {
		available = 0
	} else {
		available -= shift
	}

	// An empty partition can't be represented, at least one sector is needed
	required := max(minS, 1)
	if available < required {
		return AllocationResult{}, &AllocationError{
			Partition:        req.Name,
			RequiredSectors:  required,
			AvailableSectors: available,
		}
	}

	num := min(maxS, available)
	next := start + num
	end := start + available

	switch {
	case next > end:
		panic(fmt.Sprintf("layout: allocation of %d sectors at %d overruns the free region ending at %d", num, start, end))
	case next == end:
		return exhausted(start, end), nil
	}

	alignedNext := a.Align(next)
	if alignedNext >= end {
		return exhausted(start, end), nil
	}

	return AllocationResult{
		Range:            SectorRange{Start: start, End: alignedNext - 1},
		NextFreeSector:   alignedNext,
		RemainingSectors: end - alignedNext,
	}, nil
}

func exhausted(start, end uint64) AllocationResult {
	return AllocationResult{Range: SectorRange{Start: start, End: end - 1}}
}
