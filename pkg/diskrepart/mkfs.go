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

	"github.com/suse/sdimage/pkg/log"
	"github.com/suse/sdimage/pkg/sys"
)

const (
	VFat = "vfat"
	Ext4 = "ext4"
)

type MkfsCall struct {
	fileSystem string
	label      string
	uuid       string
	customOpts []string
	dev        string
	sys        *sys.System
	logger     log.Logger
}

func NewMkfsCall(s *sys.System, dev, fileSystem, label, uuid string, customOpts ...string) *MkfsCall {
	return &MkfsCall{
		dev: dev, fileSystem: fileSystem, label: label, uuid: uuid,
		sys: s, customOpts: customOpts, logger: s.Logger(),
	}
}

func (mkfs MkfsCall) buildOptions() ([]string, error) {
	opts := []string{}

	if mkfs.uuid != "" {
		if !checkUUID(mkfs.uuid, mkfs.fileSystem) {
			return nil, fmt.Errorf("invalid volume identifier %s for %s", mkfs.uuid, mkfs.fileSystem)
		}
	}

	switch mkfs.fileSystem {
	case Ext4:
		opts = append(opts, "-F")
		opts = append(opts, mkfs.customOpts...)
		if mkfs.uuid != "" {
			opts = append(opts, "-U", mkfs.uuid)
		}
		if mkfs.label != "" {
			opts = append(opts, "-L", mkfs.label)
		}
	case VFat:
		opts = append(opts, mkfs.customOpts...)
		if mkfs.uuid != "" {
			opts = append(opts, "-i", fatVolumeID(mkfs.uuid))
		}
		if mkfs.label != "" {
			opts = append(opts, "-n", mkfs.label)
		}
	default:
		return nil, fmt.Errorf("unsupported filesystem: %s", mkfs.fileSystem)
	}

	opts = append(opts, mkfs.dev)
	return opts, nil
}

func (mkfs MkfsCall) Apply() error {
	opts, err := mkfs.buildOptions()
	if err != nil {
		mkfs.logger.Error("failed preparing mkfs arguments: %v", err)
		return err
	}
	_, err = sys.RunTool(mkfs.sys, fmt.Sprintf("mkfs.%s", mkfs.fileSystem), opts...)
	return err
}
