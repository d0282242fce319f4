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
	"bytes"
	"errors"
	"fmt"

	"github.com/suse/sdimage/pkg/archive"
	"github.com/suse/sdimage/pkg/sys/vfs"
	"github.com/suse/sdimage/pkg/unpack"
)

const (
	mbrSignatureOffset = 510
	mbrSize            = 512
)

// ErrUnknownSource is returned for sources no copy strategy can handle
var ErrUnknownSource = errors.New("don't know how to copy this source")

var mbrSignature = []byte{0x55, 0xaa}

// Classify inspects the given source and returns the copy strategy kind
// matching its content. Sources which exist but match no known signature
// are classified as unknown without error.
func Classify(f vfs.FS, path string) (unpack.Kind, error) {
	info, err := f.Stat(path)
	if err != nil {
		return unpack.KindUnknown, fmt.Errorf("inspecting source '%s': %w", path, err)
	}
	if info.IsDir() {
		return unpack.KindDirectory, nil
	}

	head, err := vfs.ReadHead(f, path, mbrSize)
	if err != nil {
		return unpack.KindUnknown, fmt.Errorf("reading source '%s': %w", path, err)
	}

	switch {
	case archive.IsTar(head):
		return unpack.KindTarball, nil
	case archive.SniffCompression(head) != archive.None && archive.HasTarballSuffix(path):
		return unpack.KindTarball, nil
	case len(head) == mbrSize && bytes.Equal(head[mbrSignatureOffset:], mbrSignature):
		return unpack.KindDiskImage, nil
	default:
		return unpack.KindUnknown, nil
	}
}
