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
	"fmt"

	"github.com/suse/sdimage/pkg/sys"
)

// BootDir is where the boot filesystem is mounted inside the root filesystem
const BootDir = "boot"

type Kind string

const (
	KindDirectory Kind = "directory"
	KindDiskImage Kind = "disk-image"
	KindTarball   Kind = "tar-archive"
	KindUnknown   Kind = "unknown"
)

type Interface interface {
	// Unpack copies the source contents to the destination, which is the root
	// filesystem with the boot filesystem mounted at its boot directory.
	Unpack(ctx context.Context, destination string) error
}

type options struct {
	dirOpts []DirectoryOpt
	rawOpts []RawOpt
}

type Opt func(Kind, *options)

// WithRsyncFlags sets the rsync flags used to copy the root filesystem tree.
// Tarballs are extracted in place and ignore them.
func WithRsyncFlags(flags ...string) Opt {
	return func(kind Kind, o *options) {
		switch kind {
		case KindDirectory:
			o.dirOpts = append(o.dirOpts, WithRsyncFlagsDir(flags...))
		case KindDiskImage:
			o.rawOpts = append(o.rawOpts, WithRsyncFlagsRaw(flags...))
		default:
		}
	}
}

func WithRawOptions(opts ...RawOpt) Opt {
	return func(kind Kind, o *options) {
		if kind == KindDiskImage {
			o.rawOpts = append(o.rawOpts, opts...)
		}
	}
}

func NewUnpacker(s *sys.System, kind Kind, path string, opts ...Opt) (Interface, error) {
	o := &options{}
	for _, opt := range opts {
		opt(kind, o)
	}
	switch kind {
	case KindDirectory:
		return NewDirectoryUnpacker(s, path, o.dirOpts...), nil
	case KindDiskImage:
		return NewRawUnpacker(s, path, o.rawOpts...), nil
	case KindTarball:
		return NewTarUnpacker(s, path), nil
	default:
		return nil, fmt.Errorf("no unpacker for %s source '%s'", kind, path)
	}
}
