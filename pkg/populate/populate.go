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


package populate

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/suse/sdimage/pkg/diskrepart"
	"github.com/suse/sdimage/pkg/fstab"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
	"github.com/suse/sdimage/pkg/unpack"
	"github.com/suse/sdimage/pkg/utils/cleanstack"
)

type Copier struct {
	s          *sys.System
	unpackOpts []unpack.Opt
	rootUUID   string
	bootID     string
}

type Opts func(c *Copier)

// WithUnpackOptions sets options handed over to the copy strategy
func WithUnpackOptions(opts ...unpack.Opt) Opts {
	return func(c *Copier) {
		c.unpackOpts = append(c.unpackOpts, opts...)
	}
}

// WithVolumeIDs makes the copier point the root and boot entries of the
// copied /etc/fstab to the given filesystem identifiers
func WithVolumeIDs(rootUUID, bootID string) Opts {
	return func(c *Copier) {
		c.rootUUID = rootUUID
		c.bootID = bootID
	}
}

func NewCopier(s *sys.System, opts ...Opts) *Copier {
	c := &Copier{s: s}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Copy mounts the root and boot filesystems of a provisioned destination and
// fills them with the content of source. Mount points are released in reverse
// order on return, regardless of the outcome.
func (c Copier) Copy(ctx context.Context, source, rootDev, bootDev string) (err error) {
	kind, err := Classify(c.s.FS(), source)
	if err != nil {
		return err
	}
	if kind == unpack.KindUnknown {
		c.s.Logger().Error("source '%s' is neither a directory, a tar archive nor a disk image", source)
		return errors.Wrapf(ErrUnknownSource, "copying '%s'", source)
	}
	c.s.Logger().Info("Copying %s '%s'", kind, source)

	unpacker, err := unpack.NewUnpacker(c.s, kind, source, c.unpackOpts...)
	if err != nil {
		return err
	}

	cleanup := cleanstack.NewCleanStack()
	defer func() { err = cleanup.Cleanup(err) }()

	root, err := vfs.TempDir(c.s.FS(), "", "sdimage_root")
	if err != nil {
		return errors.Wrap(err, "creating root mount point")
	}

	err = c.s.Mounter().Mount(rootDev, root, diskrepart.Ext4, []string{"rw"})
	if err != nil {
		if rmErr := vfs.ForceRemoveAll(c.s.FS(), root); rmErr != nil {
			c.s.Logger().Warn("could not remove mount point '%s': %v", root, rmErr)
		}
		return errors.Wrapf(err, "mounting root filesystem '%s'", rootDev)
	}
	cleanup.Push(func() error { return sys.UnmountAndRemove(c.s, root) })

	boot := filepath.Join(root, unpack.BootDir)
	err = vfs.MkdirAll(c.s.FS(), boot, vfs.DirPerm)
	if err != nil {
		return errors.Wrap(err, "creating boot mount point")
	}
	err = c.s.Mounter().Mount(bootDev, boot, diskrepart.VFat, []string{"rw"})
	if err != nil {
		return errors.Wrapf(err, "mounting boot filesystem '%s'", bootDev)
	}
	cleanup.Push(func() error { return c.s.Mounter().Unmount(boot) })

	err = unpacker.Unpack(ctx, root)
	if err != nil {
		return errors.Wrapf(err, "copying '%s'", source)
	}

	err = c.updateFstab(root)
	if err != nil {
		return errors.Wrap(err, "updating fstab")
	}
	c.s.Logger().Info("Finished copying '%s'", source)
	return nil
}

func (c Copier) updateFstab(root string) error {
	if c.rootUUID == "" || c.bootID == "" {
		return nil
	}
	if ok, _ := vfs.IsDir(c.s.FS(), filepath.Join(root, "etc")); !ok {
		c.s.Logger().Warn("No /etc directory in the copied content, fstab not updated")
		return nil
	}

	return fstab.Retarget(c.s, filepath.Join(root, fstab.File), []fstab.Line{
		{
			Device:     "UUID=" + c.rootUUID,
			MountPoint: "/",
			FileSystem: diskrepart.Ext4,
			Options:    []string{"defaults", "noatime"},
			FsckOrder:  1,
		}, {
			Device:     "UUID=" + c.bootID,
			MountPoint: "/" + unpack.BootDir,
			FileSystem: diskrepart.VFat,
			Options:    []string{"defaults"},
			FsckOrder:  2,
		},
	})
}
