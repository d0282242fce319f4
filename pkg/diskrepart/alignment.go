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
	"fmt"
	"strconv"

	"github.com/suse/sdimage/pkg/layout"
)

const (
	// FatClusterSectors is the cluster size of the boot filesystem, 4KiB
	FatClusterSectors = 8
	fatMinReserved    = 32
	fatMaxReserved    = 65535
	fatNumTables      = 2
	fatIterations     = 16

	Ext4BlockSize = 4096
	// Ext4Stride is the RAID stride passed to mkfs.ext4, in blocks
	Ext4Stride = 4
)

// fatTableSectors returns the size of one FAT32 table for a volume of
// the given size and reserved area, as computed by the FAT specification.
func fatTableSectors(partSectors, reserved uint64) uint64 {
	if reserved >= partSectors {
		return 0
	}
	divisor := uint64((256*FatClusterSectors + fatNumTables) / 2)
	return (partSectors - reserved + divisor - 1) / divisor
}

// FatReservedSectors computes the size of the reserved area of a FAT32
// filesystem so its data region starts on a grain boundary of the device.
// It is the fixed point of R = align(start + 32 + 2·F(R), grain) - start - 2·F(R).
func FatReservedSectors(startSector, partSectors, grainSectors uint64) (uint64, error) {
	if grainSectors == 0 {
		return 0, fmt.Errorf("invalid alignment grain of zero sectors")
	}
	reserved := uint64(fatMinReserved)
	for i := 0; i < fatIterations; i++ {
		fats := fatNumTables * fatTableSectors(partSectors, reserved)
		next := layout.AlignSector(startSector+fatMinReserved+fats, grainSectors) - startSector - fats
		if next > fatMaxReserved {
			return 0, fmt.Errorf("FAT reserved area of %d sectors exceeds the maximum of %d", next, fatMaxReserved)
		}
		if next >= partSectors {
			return 0, fmt.Errorf("partition of %d sectors is too small for an aligned FAT filesystem", partSectors)
		}
		if next == reserved {
			return reserved, nil
		}
		reserved = next
	}
	return 0, fmt.Errorf("could not compute an aligned FAT reserved area for %d sectors", partSectors)
}

// FatOptions returns the mkfs.vfat arguments for an aligned FAT32 filesystem
// on the given partition
func FatOptions(part layout.SectorRange, grainSectors uint64) ([]string, error) {
	reserved, err := FatReservedSectors(part.Start, part.Sectors(), grainSectors)
	if err != nil {
		return nil, err
	}
	return []string{
		"-F", "32",
		"-R", strconv.FormatUint(reserved, 10),
		"-s", strconv.Itoa(FatClusterSectors),
	}, nil
}

// Ext4StripeWidth returns the number of blocks of one erase block in stride units
func Ext4StripeWidth(eraseBytes uint64) uint64 {
	return max(eraseBytes/(Ext4BlockSize*Ext4Stride), 1)
}

// Ext4Options returns the mkfs.ext4 arguments matching the given erase block size
func Ext4Options(eraseBytes uint64) []string {
	return []string{
		"-b", strconv.Itoa(Ext4BlockSize),
		"-E", fmt.Sprintf("stride=%d,stripe-width=%d", Ext4Stride, Ext4StripeWidth(eraseBytes)),
	}
}
