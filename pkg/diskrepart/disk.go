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
	"os"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/suse/sdimage/pkg/diskrepart/partitioner"
	"github.com/suse/sdimage/pkg/diskrepart/partitioner/parted"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

const (
	partitionTries = 10
	partitionWait  = time.Second
)

var endsWithDigit = regexp.MustCompile(`\d$`)

type Disk struct {
	device  string
	sectorS uint64
	totalS  uint64
	parts   []partitioner.Partition
	label   string
	sys     *sys.System
	backoff func() backoff.BackOff
}

type DiskOptions func(d *Disk)

// WithBackOff sets the policy used while waiting for partition device nodes
func WithBackOff(b func() backoff.BackOff) DiskOptions {
	return func(d *Disk) {
		d.backoff = b
	}
}

func NewDisk(s *sys.System, device string, opts ...DiskOptions) *Disk {
	dev := &Disk{
		device: device,
		sys:    s,
		backoff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(partitionWait), partitionTries)
		},
	}
	for _, opt := range opts {
		opt(dev)
	}
	return dev
}

// PartitionDevice returns the device node of the given partition number,
// devices ending with a digit (mmcblk0, loop3) use a 'p' separator.
func PartitionDevice(device string, partNum int) string {
	if endsWithDigit.MatchString(device) {
		return fmt.Sprintf("%sp%d", device, partNum)
	}
	return fmt.Sprintf("%s%d", device, partNum)
}

func (dev Disk) String() string {
	return dev.device
}

func (dev Disk) GetSectorSize() uint64 {
	return dev.sectorS
}

func (dev Disk) GetTotalSectors() uint64 {
	return dev.totalS
}

func (dev Disk) GetLabel() string {
	return dev.label
}

func (dev Disk) GetPartitions() []partitioner.Partition {
	return dev.parts
}

func (dev *Disk) Exists() bool {
	fi, err := dev.sys.FS().Lstat(dev.device)
	if err != nil {
		return false
	}
	// resolve symlink if any
	if fi.Mode()&os.ModeSymlink != 0 {
		d, err := dev.sys.FS().Readlink(dev.device)
		if err != nil {
			return false
		}
		dev.device = d
	}
	return true
}

func (dev *Disk) newPartitioner() partitioner.Partitioner {
	return parted.NewPartedCall(dev.sys, dev.device)
}

func (dev *Disk) Reload() error {
	pc := dev.newPartitioner()

	prnt, err := pc.Print()
	if err != nil {
		return err
	}

	sectorS, err := pc.GetSectorSize(prnt)
	if err != nil {
		return err
	}
	totalS, err := pc.GetTotalSectors(prnt)
	if err != nil {
		return err
	}
	label, err := pc.GetPartitionTableLabel(prnt)
	if err != nil {
		return err
	}
	dev.sectorS = sectorS
	dev.totalS = totalS
	dev.label = label
	dev.parts = pc.GetPartitions(prnt)
	return nil
}

// NewPartitionTable wipes the device and writes a new partition table with
// the given partitions in a single run of the partitioner.
func (dev *Disk) NewPartitionTable(label string, parts ...partitioner.Partition) (string, error) {
	pc := dev.newPartitioner()

	err := pc.SetPartitionTableLabel(label)
	if err != nil {
		return "", err
	}
	pc.WipeTable(true)
	for i := range parts {
		pc.CreatePartition(&parts[i])
	}
	out, err := pc.WriteChanges()
	if err != nil {
		return out, err
	}
	err = dev.Reload()
	if err != nil {
		dev.sys.Logger().Error("failed analyzing disk: %v", err)
		return "", err
	}
	return out, nil
}

// FindPartitionDevice waits for the device node of the given partition to show up
func (dev Disk) FindPartitionDevice(partNum int) (string, error) {
	device := PartitionDevice(dev.device, partNum)

	tries := 0
	err := backoff.Retry(func() error {
		tries++
		dev.sys.Logger().Debug("Trying to find the partition device %d of device %s (try number %d)", partNum, dev, tries)
		_, _ = dev.sys.Runner().Run("udevadm", "settle")
		if exists, _ := vfs.Exists(dev.sys.FS(), device); exists {
			return nil
		}
		return fmt.Errorf("partition '%d' not found in '%s' device", partNum, dev.device)
	}, dev.backoff())
	if err != nil {
		dev.sys.Logger().Error("%v", err)
		return "", err
	}
	return device, nil
}
