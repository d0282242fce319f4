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
	"archive/tar"
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/suse/sdimage/pkg/archive"
	"github.com/suse/sdimage/pkg/rsync"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

type Tar struct {
	s       *sys.System
	tarball string
}

func NewTarUnpacker(s *sys.System, tarball string) *Tar {
	return &Tar{s: s, tarball: tarball}
}

func isBootEntry(h *tar.Header) bool {
	name := strings.TrimPrefix(path.Clean(h.Name), "./")
	return name == BootDir || strings.HasPrefix(name, BootDir+"/")
}

// Unpack extracts the root entries straight into the destination. Boot entries
// are extracted to a temporary directory first and synced to the boot filesystem,
// which can't hold ownership, permissions or symlinks.
func (t Tar) Unpack(ctx context.Context, destination string) (err error) {
	opts := []archive.Opt{archive.WithFilter(func(h *tar.Header) (bool, error) {
		return !isBootEntry(h), nil
	})}
	// ownership can only be restored with privileges
	if t.s.Syscall().Geteuid() == 0 {
		opts = append(opts, archive.WithOwnership())
	}
	err = archive.ExtractTarball(ctx, t.s, t.tarball, destination, opts...)
	if err != nil {
		return err
	}

	staging, err := vfs.TempDir(t.s.FS(), "", "sdimage_boot")
	if err != nil {
		return err
	}
	defer func() {
		e := vfs.ForceRemoveAll(t.s.FS(), staging)
		if err == nil && e != nil {
			err = e
		}
	}()

	err = archive.ExtractTarball(ctx, t.s, t.tarball, staging, archive.WithFilter(func(h *tar.Header) (bool, error) {
		return isBootEntry(h), nil
	}))
	if err != nil {
		return err
	}

	bootPath := filepath.Join(staging, BootDir)
	if ok, _ := vfs.IsDir(t.s.FS(), bootPath); !ok {
		t.s.Logger().Warn("No boot content found in '%s', boot filesystem left empty", t.tarball)
		return nil
	}

	sync := rsync.NewRsync(t.s, rsync.WithContext(ctx), rsync.WithFlags(rsync.FatFlags()...))
	return sync.SyncData(bootPath, filepath.Join(destination, BootDir))
}
