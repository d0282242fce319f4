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

import (
	"fmt"
	"io"
)

// WriteReport prints a deterministic description of the plan. The same plan
// always renders to the same text.
func (p PartitionPlan) WriteReport(w io.Writer) error {
	geo := p.Geometry
	grain := "disabled"
	if p.Aligned {
		grain = fmt.Sprintf("%d bytes, %d sectors", geo.GrainBytes(), geo.GrainSectors)
	}

	lines := []string{
		fmt.Sprintf("Volume size:     %d bytes, %d sectors", geo.SizeBytes(), geo.TotalSectors),
		fmt.Sprintf("Alignment grain: %s", grain),
		fmt.Sprintf("%-10s %12s %12s %12s %12s %10s", "Partition", "Start", "End", "Sectors", "1K-blocks", "MiB"),
	}
	for _, part := range p.Partitions {
		r := part.Range
		lines = append(lines, fmt.Sprintf(
			"%-10s %12d %12d %12d %12d %10.2f",
			part.Name, r.Start, r.End, r.Sectors(), r.Bytes()/KiB, float64(r.Bytes())/MiB,
		))
	}
	lines = append(lines, fmt.Sprintf("Unused sectors:  %d", p.UnusedSectors))

	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
