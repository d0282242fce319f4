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

package unpack

import (
	"context"

	"github.com/suse/sdimage/pkg/diskrepart"
	"github.com/suse/sdimage/pkg/loop"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
	"github.com/suse/sdimage/pkg/utils/cleanstack"
)

// Raw copies the content of a disk image holding a boot and a root partition
type Raw struct {
	s          *sys.System
	path       string
	rsyncFlags []string
	diskOpts   []diskrepart.DiskOptions
}

type RawOpt func(*Raw)

func WithRsyncFlagsRaw(flags ...string) RawOpt {
	return func(r *Raw) {
		r.rsyncFlags = flags
	}
}

func WithDiskOptionsRaw(opts ...diskrepart.DiskOptions) RawOpt {
	return func(r *Raw) {
		r.diskOpts = opts
	}
}

func NewRawUnpacker(s *sys.System, path string, opts ...RawOpt) *Raw {
	raw := &Raw{s: s, path: path}
	for _, o := range opts {
		o(raw)
	}
	return raw
}

// Unpack attaches the image read-only, mounts its root and boot partitions and
// copies both trees. Everything is released in reverse order on return.
func (r Raw) Unpack(ctx context.Context, destination string) (err error) {
	cleanup := cleanstack.NewCleanStack()
	defer func() { err = cleanup.Cleanup(err) }()

	dev, err := loop.Attach(r.s, r.path, loop.WithReadOnly())
	if err != nil {
		r.s.Logger().Error("failed attaching source image '%s'", r.path)
		return err
	}
	cleanup.Push(dev.Detach)

	disk := diskrepart.NewDisk(r.s, dev.Path(), r.diskOpts...)
	rootDev, err := disk.FindPartitionDevice(diskrepart.RootPartitionNum)
	if err != nil {
		return err
	}
	bootDev, err := disk.FindPartitionDevice(diskrepart.BootPartitionNum)
	if err != nil {
		return err
	}

	rootMnt, err := r.mount(cleanup, rootDev, "sdimage_source_root")
	if err != nil {
		return err
	}
	bootMnt, err := r.mount(cleanup, bootDev, "sdimage_source_boot")
	if err != nil {
		return err
	}

	opts := []DirectoryOpt{WithBootSource(bootMnt)}
	if len(r.rsyncFlags) > 0 {
		opts = append(opts, WithRsyncFlagsDir(r.rsyncFlags...))
	}
	return NewDirectoryUnpacker(r.s, rootMnt, opts...).Unpack(ctx, destination)
}

func (r Raw) mount(cleanup *cleanstack.CleanStack, device, prefix string) (string, error) {
	dir, err := vfs.TempDir(r.s.FS(), "", prefix)
	if err != nil {
		r.s.Logger().Error("failed creating a temporary directory to mount '%s': %v", device, err)
		return "", err
	}

	err = r.s.Mounter().Mount(device, dir, "auto", []string{"ro"})
	if err != nil {
		r.s.Logger().Error("failed mounting '%s': %v", device, err)
		if rmErr := vfs.ForceRemoveAll(r.s.FS(), dir); rmErr != nil {
			r.s.Logger().Warn("could not remove mount point '%s': %v", dir, rmErr)
		}
		return "", err
	}
	cleanup.Push(func() error { return sys.UnmountAndRemove(r.s, dir) })
	return dir, nil
}
