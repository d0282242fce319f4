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
	"path/filepath"

	"github.com/suse/sdimage/pkg/rsync"
	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

// rootExcludes are never copied into the root filesystem, boot content goes
// to the boot filesystem in a separate pass
var rootExcludes = []string{"/" + BootDir, "/lost+found"}

type Directory struct {
	s          *sys.System
	path       string
	bootPath   string
	rsyncFlags []string
}

type DirectoryOpt func(*Directory)

func WithRsyncFlagsDir(flags ...string) DirectoryOpt {
	return func(d *Directory) {
		d.rsyncFlags = flags
	}
}

// WithBootSource copies the boot content from the given tree instead of the
// boot directory of the source tree
func WithBootSource(path string) DirectoryOpt {
	return func(d *Directory) {
		d.bootPath = path
	}
}

func NewDirectoryUnpacker(s *sys.System, path string, opts ...DirectoryOpt) *Directory {
	dir := &Directory{s: s, path: path}
	for _, o := range opts {
		o(dir)
	}
	return dir
}

func (d Directory) Unpack(ctx context.Context, destination string) error {
	opts := []rsync.Opts{rsync.WithContext(ctx)}
	if len(d.rsyncFlags) > 0 {
		opts = append(opts, rsync.WithFlags(d.rsyncFlags...))
	}
	err := rsync.NewRsync(d.s, opts...).SyncData(d.path, destination, rootExcludes...)
	if err != nil {
		return err
	}

	bootPath := d.bootPath
	if bootPath == "" {
		bootPath = filepath.Join(d.path, BootDir)
	}
	if ok, _ := vfs.IsDir(d.s.FS(), bootPath); !ok {
		d.s.Logger().Warn("No boot content found at '%s', boot filesystem left empty", bootPath)
		return nil
	}

	bootSync := rsync.NewRsync(d.s, rsync.WithContext(ctx), rsync.WithFlags(rsync.FatFlags()...))
	return bootSync.SyncData(bootPath, filepath.Join(destination, BootDir))
}
