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

package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/suse/sdimage/pkg/diskrepart"
	"github.com/suse/sdimage/pkg/layout"
	"github.com/suse/sdimage/pkg/loop"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
	"github.com/suse/sdimage/pkg/utils/cleanstack"
)

type Provisioner struct {
	s        *sys.System
	dest     string
	image    bool
	bootID   string
	rootUUID string
	diskOpts []diskrepart.DiskOptions
	loop     *loop.Device
}

// Result describes the provisioned destination
type Result struct {
	// Device is the partitioned block device, the loop device for images
	Device string
	Boot   *diskrepart.Volume
	Root   *diskrepart.Volume
}

type Opts func(p *Provisioner)

// WithImage makes the destination a regular image file instead of a block device
func WithImage() Opts {
	return func(p *Provisioner) {
		p.image = true
	}
}

func WithBootVolumeID(id string) Opts {
	return func(p *Provisioner) {
		p.bootID = id
	}
}

func WithRootUUID(id string) Opts {
	return func(p *Provisioner) {
		p.rootUUID = id
	}
}

func WithDiskOptions(opts ...diskrepart.DiskOptions) Opts {
	return func(p *Provisioner) {
		p.diskOpts = append(p.diskOpts, opts...)
	}
}

func New(s *sys.System, dest string, opts ...Opts) *Provisioner {
	p := &Provisioner{s: s, dest: dest}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p Provisioner) Destination() string {
	return p.dest
}

func (p Provisioner) IsImage() bool {
	return p.image
}

// Check verifies the destination can hold the given plan before anything is written
func (p Provisioner) Check(plan *layout.PartitionPlan) error {
	if !p.s.IsPrivileged() {
		return resourceErr(p.dest, nil, "root privileges are required to partition and format")
	}
	if p.image {
		return p.checkImage()
	}
	return p.checkDevice(plan)
}

func (p Provisioner) checkImage() error {
	fs := p.s.FS()

	parent := filepath.Dir(p.dest)
	if ok, _ := vfs.IsDir(fs, parent); !ok {
		return resourceErr(p.dest, nil, "directory '%s' does not exist", parent)
	}
	if ok, _ := vfs.IsDir(fs, p.dest); ok {
		return resourceErr(p.dest, nil, "destination is a directory")
	}

	exists, _ := vfs.Exists(fs, p.dest)
	flags := os.O_WRONLY
	if !exists {
		flags |= os.O_CREATE | os.O_EXCL
	}
	f, err := fs.OpenFile(p.dest, flags, vfs.FilePerm)
	if err != nil {
		return resourceErr(p.dest, err, "image file is not writable")
	}
	_ = f.Close()
	if !exists {
		_ = fs.Remove(p.dest)
	}
	return nil
}

func (p Provisioner) checkDevice(plan *layout.PartitionPlan) error {
	fs := p.s.FS()

	if exists, _ := vfs.Exists(fs, p.dest, true); !exists {
		return resourceErr(p.dest, nil, "device not found")
	}
	if ok, _ := vfs.IsBlockDevice(fs, p.dest); !ok {
		p.s.Logger().Warn("'%s' is not a block device", p.dest)
	}

	mounts, err := p.s.Mounter().GetMountPoints(p.dest)
	if err != nil {
		return resourceErr(p.dest, err, "could not list mount points")
	}
	if len(mounts) > 0 {
		paths := make([]string, 0, len(mounts))
		for _, m := range mounts {
			paths = append(paths, m.Path)
		}
		return resourceErr(p.dest, nil, "device is mounted at %s", strings.Join(paths, ", "))
	}

	f, err := fs.OpenFile(p.dest, os.O_WRONLY, 0)
	if err != nil {
		return resourceErr(p.dest, err, "device is not writable")
	}
	_ = f.Close()

	attrs, err := layout.ReadDeviceAttributes(fs, p.dest)
	if err != nil {
		return resourceErr(p.dest, err, "could not read device size")
	}
	if attrs.SizeBytes != 0 && attrs.SizeBytes < plan.Geometry.SizeBytes() {
		return resourceErr(p.dest, nil, "device has %d bytes, the layout needs %d bytes", attrs.SizeBytes, plan.Geometry.SizeBytes())
	}
	return nil
}

// Apply writes the partition table of the plan and creates both filesystems.
// For images the file is created or truncated to the planned size and attached
// to a loop device which stays attached until Close is called. Any failure
// releases the loop device before returning.
func (p *Provisioner) Apply(ctx context.Context, plan *layout.PartitionPlan) (res *Result, err error) {
	cleanup := cleanstack.NewCleanStack()
	defer func() { err = cleanup.Cleanup(err) }()

	target := p.dest
	if p.image {
		if err = p.createImage(plan.Geometry.SizeBytes()); err != nil {
			return nil, err
		}
		// the previous content is gone after truncating, a half written image is removed
		cleanup.PushErrorOnly(func() error { return p.s.FS().Remove(p.dest) })

		p.loop, err = loop.Attach(p.s, p.dest)
		if err != nil {
			return nil, errors.Wrapf(err, "attaching image '%s'", p.dest)
		}
		cleanup.PushErrorOnly(p.Close)
		target = p.loop.Path()
	} else {
		if err = diskrepart.WipeFS(p.s, target); err != nil {
			return nil, errors.Wrapf(err, "wiping device '%s'", target)
		}
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	disk := diskrepart.NewDisk(p.s, target, p.diskOpts...)
	if err = diskrepart.PartitionDisk(p.s, disk, plan); err != nil {
		return nil, errors.Wrapf(err, "partitioning '%s'", target)
	}

	bootDev, err := disk.FindPartitionDevice(diskrepart.BootPartitionNum)
	if err != nil {
		return nil, err
	}
	rootDev, err := disk.FindPartitionDevice(diskrepart.RootPartitionNum)
	if err != nil {
		return nil, err
	}

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	grain := plan.Geometry.GrainSectors
	if !plan.Aligned {
		grain = 1
	}
	boot, err := diskrepart.FormatBoot(p.s, bootDev, plan.Boot().Range, grain, p.bootID)
	if err != nil {
		return nil, errors.Wrapf(err, "formatting boot partition '%s'", bootDev)
	}
	root, err := diskrepart.FormatRoot(p.s, rootDev, plan.Geometry.GrainBytes(), p.rootUUID)
	if err != nil {
		return nil, errors.Wrapf(err, "formatting root partition '%s'", rootDev)
	}

	p.s.Logger().Info("Boot partition %s: FAT32 volume id %s", boot.Device, boot.ID)
	p.s.Logger().Info("Root partition %s: ext4 uuid %s", root.Device, root.ID)
	return &Result{Device: target, Boot: boot, Root: root}, nil
}

// createImage creates or truncates the image file to the given size. The file
// is removed again if it can't be sized.
func (p Provisioner) createImage(size uint64) (err error) {
	fs := p.s.FS()

	f, err := fs.OpenFile(p.dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, vfs.FilePerm)
	if err != nil {
		return resourceErr(p.dest, err, "could not create image file")
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = resourceErr(p.dest, e, "could not close image file")
		}
		if err != nil {
			_ = fs.Remove(p.dest)
		}
	}()

	if err = f.Truncate(int64(size)); err != nil {
		return resourceErr(p.dest, err, "could not resize image file to %d bytes", size)
	}
	p.s.Logger().Debug("Image '%s' sized to %d bytes", p.dest, size)
	return nil
}

// Close releases the loop device attached by Apply, if any
func (p *Provisioner) Close() error {
	if p.loop == nil {
		return nil
	}
	if err := p.loop.Detach(); err != nil {
		return err
	}
	p.loop = nil
	return nil
}
