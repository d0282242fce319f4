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
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/suse/sdimage/pkg/sys/vfs"
)

const (
	DefaultEraseSize   = 4 * MiB
	DefaultVolumeSize  = 2 * GiB
	DefaultFirstSector = 1
)

// DeviceAttributes are the values a block device reports through sysfs.
// Zero means the attribute is not available.
type DeviceAttributes struct {
	SizeBytes  uint64
	EraseBytes uint64
}

// SysfsPath returns the sysfs directory of the given block device, which
// may be given as a device node path or as a bare name.
func SysfsPath(device string) string {
	name := filepath.Base(strings.TrimPrefix(device, "/dev/"))
	return filepath.Join("/sys/block", name)
}

// ReadDeviceAttributes reads the size and the preferred erase size of a
// block device. Missing attributes are left as zero.
func ReadDeviceAttributes(f vfs.FS, device string) (DeviceAttributes, error) {
	var attrs DeviceAttributes
	dir := SysfsPath(device)

	// size is always expressed in 512-byte sectors, regardless of the logical block size
	sectors, err := readOptionalUint(f, filepath.Join(dir, "size"))
	if err != nil {
		return attrs, err
	}
	attrs.SizeBytes = sectors * SectorSize

	attrs.EraseBytes, err = readOptionalUint(f, filepath.Join(dir, "device", "preferred_erase_size"))
	if err != nil {
		return attrs, err
	}
	return attrs, nil
}

func readOptionalUint(f vfs.FS, path string) (uint64, error) {
	v, err := vfs.ReadUint(f, path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, configErr("reading device attribute: %v", err)
	}
	return v, nil
}

// NewGeometry converts a volume size and an erase block size in bytes to a
// sector based geometry. A volume size which is not a multiple of the sector
// size is truncated to whole sectors.
func NewGeometry(sizeBytes, eraseBytes, firstSector uint64) (Geometry, error) {
	if eraseBytes == 0 || eraseBytes%SectorSize != 0 {
		return Geometry{}, configErr("erase block size %d is not a positive multiple of %d bytes", eraseBytes, SectorSize)
	}
	geo := Geometry{
		TotalSectors:      sizeBytes / SectorSize,
		GrainSectors:      eraseBytes / SectorSize,
		FirstUsableSector: firstSector,
	}
	return geo, geo.Validate()
}

// GeometryFromDevice builds the geometry of a block device from its sysfs
// attributes. Attributes the device does not report fall back to
// DefaultVolumeSize and DefaultEraseSize.
func GeometryFromDevice(f vfs.FS, device string) (Geometry, error) {
	attrs, err := ReadDeviceAttributes(f, device)
	if err != nil {
		return Geometry{}, err
	}
	if attrs.SizeBytes == 0 {
		attrs.SizeBytes = DefaultVolumeSize
	}
	if attrs.EraseBytes == 0 {
		attrs.EraseBytes = DefaultEraseSize
	}
	return NewGeometry(attrs.SizeBytes, attrs.EraseBytes, DefaultFirstSector)
}
