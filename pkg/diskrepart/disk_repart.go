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

package diskrepart

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/suse/sdimage/pkg/diskrepart/partitioner"
	"github.com/suse/sdimage/pkg/diskrepart/partitioner/parted"
	"github.com/suse/sdimage/pkg/layout"
	"github.com/suse/sdimage/pkg/sys"
)

const (
	BootPartitionNum = 1
	RootPartitionNum = 2

	BootLabel = "BOOT"
	RootLabel = "root"

	// LBA flag turns the fat32 partition into type 0x0c
	lbaFlag = "lba"
)

// Volume is a formatted partition
type Volume struct {
	Device     string
	FileSystem string
	Label      string
	ID         string
}

// WipeFS removes any pre-existing filesystem or partition table signature
func WipeFS(s *sys.System, device string) error {
	_, err := sys.RunTool(s, "wipefs", "--all", device)
	return err
}

// PlanPartitions converts a layout plan into the primary partitions of an
// msdos partition table: a FAT32 (LBA) boot partition and a Linux root partition.
func PlanPartitions(plan *layout.PartitionPlan) []partitioner.Partition {
	boot, root := plan.Boot().Range, plan.Root().Range
	return []partitioner.Partition{
		{
			Number: BootPartitionNum, StartS: boot.Start, SizeS: boot.Sectors(),
			Type: "primary", FileSystem: VFat, Flags: []string{lbaFlag},
		}, {
			Number: RootPartitionNum, StartS: root.Start, SizeS: root.Sectors(),
			Type: "primary", FileSystem: Ext4,
		},
	}
}

// PartitionDisk writes the partition table of the given plan and checks the
// resulting table matches it sector by sector.
func PartitionDisk(s *sys.System, disk *Disk, plan *layout.PartitionPlan) error {
	s.Logger().Info("Partitioning device '%s'", disk)
	want := PlanPartitions(plan)
	out, err := disk.NewPartitionTable(parted.MSDOS, want...)
	if err != nil {
		s.Logger().Error("failed creating new partition table: %s", out)
		return err
	}
	if disk.GetSectorSize() != layout.SectorSize {
		return fmt.Errorf("device %s has %d bytes sectors, only %d bytes sectors are supported", disk, disk.GetSectorSize(), layout.SectorSize)
	}
	return verifyPartitions(disk.GetPartitions(), want)
}

func verifyPartitions(got, want []partitioner.Partition) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d partitions, found %d", len(want), len(got))
	}
	for i := range want {
		if got[i].StartS != want[i].StartS || got[i].SizeS != want[i].SizeS {
			return fmt.Errorf(
				"partition %d is at sectors %d-%d, expected %d-%d",
				want[i].Number, got[i].StartS, got[i].EndS(), want[i].StartS, want[i].EndS(),
			)
		}
	}
	return nil
}

// FormatBoot creates a FAT32 filesystem on the given partition with its data
// region aligned to the grain. A volume identifier is generated if none is given.
func FormatBoot(s *sys.System, device string, part layout.SectorRange, grainSectors uint64, volumeID string) (*Volume, error) {
	opts, err := FatOptions(part, grainSectors)
	if err != nil {
		return nil, err
	}
	if volumeID == "" {
		volumeID = generateUUID(VFat)
	}
	s.Logger().Debug("Formatting boot partition %s with volume id %s", device, volumeID)
	err = NewMkfsCall(s, device, VFat, BootLabel, volumeID, opts...).Apply()
	if err != nil {
		return nil, err
	}
	return &Volume{Device: device, FileSystem: VFat, Label: BootLabel, ID: vfatUUIDSanitize(volumeID, VFat)}, nil
}

// FormatRoot creates an ext4 filesystem tuned for the given erase block size.
// A UUID is generated if none is given.
func FormatRoot(s *sys.System, device string, eraseBytes uint64, fsUUID string) (*Volume, error) {
	if fsUUID == "" {
		fsUUID = generateUUID(Ext4)
	}
	s.Logger().Debug("Formatting root partition %s with uuid %s", device, fsUUID)
	err := NewMkfsCall(s, device, Ext4, RootLabel, fsUUID, Ext4Options(eraseBytes)...).Apply()
	if err != nil {
		return nil, err
	}
	return &Volume{Device: device, FileSystem: Ext4, Label: RootLabel, ID: fsUUID}, nil
}

func checkUUID(id string, fileSystem string) bool {
	if fileSystem == VFat {
		id = strings.ReplaceAll(id, "-", "")
		if len([]rune(id)) != 8 {
			return false
		}
		_, err := hex.DecodeString(id)
		return err == nil
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func fatVolumeID(id string) string {
	return strings.ToUpper(strings.ReplaceAll(id, "-", ""))
}

func generateUUID(fileSystem string) string {
	id := uuid.Must(uuid.NewRandom()).String()
	if fileSystem == VFat {
		return strings.Split(id, "-")[0]
	}
	return id
}

func vfatUUIDSanitize(id string, fileSystem string) string {
	if fileSystem == VFat {
		runes := []rune(fatVolumeID(id))
		return string(runes[0:4]) + "-" + string(runes[4:])
	}
	return id
}
