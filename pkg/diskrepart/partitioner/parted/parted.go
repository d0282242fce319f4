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

package parted

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/suse/sdimage/pkg/diskrepart/partitioner"
	"github.com/suse/sdimage/pkg/sys"
)

const (
	MSDOS = "msdos"
	GPT   = "gpt"
)

var _ partitioner.Partitioner = (*partedCall)(nil)

var (
	diskLineRegexp = regexp.MustCompile(`^([^:]+):(\d+)s:[^:]*:(\d+):(\d+):([^:]*):`)
	partLineRegexp = regexp.MustCompile(`^(\d+):(\d+)s:(\d+)s:(\d+)s:([^:]*):([^:]*):([^;]*);`)
)

type partedCall struct {
	dev       string
	wipe      bool
	parts     []*partitioner.Partition
	deletions []int
	label     string
	flags     []partFlag
	sys       *sys.System
}

type partFlag struct {
	flag   string
	active bool
	number int
}

func NewPartedCall(s *sys.System, dev string) *partedCall { //nolint:revive
	return &partedCall{dev: dev, label: MSDOS, sys: s}
}

// fsType maps filesystem names to the names parted understands
func fsType(fileSystem string) string {
	switch fileSystem {
	case "vfat", "fat", "fat32":
		return "fat32"
	case "fat16":
		return "fat16"
	case "":
		return ""
	default:
		return fileSystem
	}
}

func (pc partedCall) optionsBuilder() []string {
	opts := []string{}
	label := pc.label

	if pc.wipe {
		opts = append(opts, "mklabel", label)
	}

	for _, partnum := range pc.deletions {
		opts = append(opts, "rm", strconv.Itoa(partnum))
	}

	for _, p := range pc.parts {
		pType := p.Type
		if pType == "" && label == MSDOS {
			pType = "primary"
		}
		opts = append(opts, "mkpart", pType)
		if fs := fsType(p.FileSystem); fs != "" {
			opts = append(opts, fs)
		}
		opts = append(opts, strconv.FormatUint(p.StartS, 10))
		if p.SizeS == 0 {
			opts = append(opts, "100%")
		} else {
			opts = append(opts, strconv.FormatUint(p.EndS(), 10))
		}
	}

	for _, flag := range pc.flags {
		opts = append(opts, "set", strconv.Itoa(flag.number), flag.flag)
		if flag.active {
			opts = append(opts, "on")
		} else {
			opts = append(opts, "off")
		}
	}

	if len(opts) == 0 {
		return nil
	}
	return append([]string{"--script", "--machine", "--", pc.dev, "unit", "s"}, opts...)
}

// WriteChanges applies all queued operations in a single parted call and
// lets the kernel know about the new partitions.
func (pc *partedCall) WriteChanges() (string, error) {
	opts := pc.optionsBuilder()
	if len(opts) == 0 {
		return "", nil
	}
	out, err := sys.RunTool(pc.sys, "parted", opts...)
	if err != nil {
		return string(out), err
	}
	pc.wipe = false
	pc.parts = nil
	pc.deletions = nil
	pc.flags = nil

	_, err = sys.RunTool(pc.sys, "partx", "-u", pc.dev)
	return string(out), err
}

func (pc *partedCall) SetPartitionTableLabel(label string) error {
	switch label {
	case MSDOS, GPT:
		pc.label = label
		return nil
	}
	return fmt.Errorf("unsupported partition table label: %s", label)
}

func (pc *partedCall) CreatePartition(p *partitioner.Partition) {
	pc.parts = append(pc.parts, p)
	for _, f := range p.Flags {
		pc.SetPartitionFlag(p.Number, f, true)
	}
}

func (pc *partedCall) DeletePartition(num int) {
	pc.deletions = append(pc.deletions, num)
}

func (pc *partedCall) SetPartitionFlag(num int, flag string, active bool) {
	pc.flags = append(pc.flags, partFlag{flag: flag, active: active, number: num})
}

func (pc *partedCall) WipeTable(wipe bool) {
	pc.wipe = wipe
}

func (pc partedCall) Print() (string, error) {
	out, err := sys.RunTool(pc.sys, "parted", "--script", "--machine", "--", pc.dev, "unit", "s", "print")
	return string(out), err
}

func diskLine(printOut string) ([]string, error) {
	for _, line := range strings.Split(printOut, "\n") {
		if m := diskLineRegexp.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m, nil
		}
	}
	return nil, errors.New("could not find the device line in parted output")
}

// GetTotalSectors parses the device size in sectors from a parted print
func (pc partedCall) GetTotalSectors(printOut string) (uint64, error) {
	m, err := diskLine(printOut)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(m[2], 10, 64)
}

func (pc partedCall) GetSectorSize(printOut string) (uint64, error) {
	m, err := diskLine(printOut)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(m[3], 10, 64)
}

func (pc partedCall) GetPartitionTableLabel(printOut string) (string, error) {
	m, err := diskLine(printOut)
	if err != nil {
		return "", err
	}
	return m[5], nil
}

func (pc partedCall) GetPartitions(printOut string) []partitioner.Partition {
	var parts []partitioner.Partition
	for _, line := range strings.Split(printOut, "\n") {
		m := partLineRegexp.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		start, _ := strconv.ParseUint(m[2], 10, 64)
		size, _ := strconv.ParseUint(m[4], 10, 64)
		var flags []string
		for _, f := range strings.Split(m[7], ",") {
			if f = strings.TrimSpace(f); f != "" {
				flags = append(flags, f)
			}
		}
		parts = append(parts, partitioner.Partition{
			Number:     num,
			StartS:     start,
			SizeS:      size,
			Type:       m[6],
			FileSystem: m[5],
			Flags:      flags,
		})
	}
	return parts
}
