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

package partitioner

// Partition describes a partition table entry in sectors. A zero SizeS
// extends the partition up to the end of the device.
type Partition struct {
	Number int
	StartS uint64
	SizeS  uint64
	// Type is the partition type on msdos tables (primary, logical, extended)
	// and the partition name on gpt tables.
	Type       string
	FileSystem string
	Flags      []string
}

// EndS returns the last sector of the partition, zero if it extends to the
// end of the device.
func (p Partition) EndS() uint64 {
	if p.SizeS == 0 {
		return 0
	}
	return p.StartS + p.SizeS - 1
}

type Partitioner interface {
	WriteChanges() (string, error)
	SetPartitionTableLabel(label string) error
	CreatePartition(p *Partition)
	DeletePartition(num int)
	SetPartitionFlag(num int, flag string, active bool)
	WipeTable(wipe bool)
	Print() (string, error)
	GetTotalSectors(printOut string) (uint64, error)
	GetSectorSize(printOut string) (uint64, error)
	GetPartitionTableLabel(printOut string) (string, error)
	GetPartitions(printOut string) []Partition
}
