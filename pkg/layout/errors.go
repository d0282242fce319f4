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

// ConfigurationError reports invalid or contradictory layout inputs. It is
// always raised before any destructive action takes place.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid layout configuration: %s", e.Reason)
}

func configErr(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// AllocationError reports a partition whose minimum size does not fit in the
// sectors left once its start sector has been aligned.
type AllocationError struct {
	Partition        string
	RequiredSectors  uint64
	AvailableSectors uint64
}

func (e *AllocationError) Error() string {
	name := e.Partition
	if name == "" {
		name = "requested"
	}
	return fmt.Sprintf(
		"cannot allocate %s partition: minimum of %d sectors exceeds the %d available sectors (short by %d sectors, %d bytes)",
		name, e.RequiredSectors, e.AvailableSectors, e.Shortfall(), e.Shortfall()*SectorSize,
	)
}

// Shortfall is the number of sectors missing to satisfy the minimum
func (e *AllocationError) Shortfall() uint64 {
	if e.RequiredSectors > e.AvailableSectors {
		return e.RequiredSectors - e.AvailableSectors
	}
	return 0
}
