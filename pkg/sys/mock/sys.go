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

package mock

import (
	"github.com/twpayne/go-vfs/v4/vfst"

	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

var _ sys.Syscall = (*Syscall)(nil)

// Syscall reports the configured effective uid, root by default
type Syscall struct {
	UID    int
	Synced int
}

func (s Syscall) Geteuid() int {
	return s.UID
}

func (s *Syscall) Sync() {
	s.Synced++
}

// TestFS returns a temporary filesystem populated with the given root
// description, see vfst.NewTestFS. The returned function removes it.
func TestFS(root any) (vfs.FS, func(), error) {
	tfs, cleanup, err := vfst.NewTestFS(root)
	if err != nil {
		return nil, nil, err
	}
	return tfs, cleanup, nil
}
