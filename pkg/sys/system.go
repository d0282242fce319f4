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

package sys

import (
	"context"

	"github.com/suse/sdimage/pkg/log"
	"github.com/suse/sdimage/pkg/sys/mounter"
	"github.com/suse/sdimage/pkg/sys/mounter/k8smounter"
	"github.com/suse/sdimage/pkg/sys/runner"
	"github.com/suse/sdimage/pkg/sys/syscall"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

type Mounter interface {
	Mount(source string, target string, fstype string, options []string) error
	Unmount(target string) error
	// GetMountPoints lists the mountpoints of the given device and of any of its partitions
	GetMountPoints(device string) ([]mounter.MountPoint, error)
}

type Runner interface {
	Run(cmd string, args ...string) ([]byte, error)
	RunContext(cxt context.Context, cmd string, args ...string) ([]byte, error)
	RunContextParseOutput(ctx context.Context, stdoutH, stderrH func(line string), cmd string, args ...string) error
}

type Syscall interface {
	Geteuid() int
	Sync()
}

type System struct {
	logger  log.Logger
	fs      vfs.FS
	mounter Mounter
	runner  Runner
	syscall Syscall
}

type SystemOpts func(a *System) error

func WithFS(fs vfs.FS) SystemOpts {
	return func(s *System) error {
		s.fs = fs
		return nil
	}
}

func WithLogger(logger log.Logger) SystemOpts {
	return func(s *System) error {
		s.logger = logger
		return nil
	}
}

func WithSyscall(syscall Syscall) SystemOpts {
	return func(s *System) error {
		s.syscall = syscall
		return nil
	}
}

func WithMounter(mounter Mounter) SystemOpts {
	return func(r *System) error {
		r.mounter = mounter
		return nil
	}
}

func WithRunner(runner Runner) SystemOpts {
	return func(r *System) error {
		r.runner = runner
		return nil
	}
}

func NewSystem(opts ...SystemOpts) (*System, error) {
	logger := log.New()
	sysObj := &System{
		fs:      vfs.OSFS(),
		logger:  logger,
		syscall: syscall.Syscall(),
		mounter: k8smounter.NewMounter(mounter.Binary),
	}

	for _, o := range opts {
		err := o(sysObj)
		if err != nil {
			return nil, err
		}
	}

	// Defer the runner creation in case the caller set a custom logger
	if sysObj.runner == nil {
		sysObj.runner = runner.NewRunner(runner.WithLogger(sysObj.logger))
	}
	return sysObj, nil
}

func (s System) FS() vfs.FS {
	return s.fs
}

func (s System) Syscall() Syscall {
	return s.syscall
}

func (s System) Mounter() Mounter {
	return s.mounter
}

func (s System) Runner() Runner {
	return s.runner
}

func (s System) Logger() log.Logger {
	return s.logger
}

// IsPrivileged reports whether the current process runs with root privileges
func (s System) IsPrivileged() bool {
	return s.syscall.Geteuid() == 0
}

// UnmountAndRemove unmounts dir and deletes it. The directory is left in place
// if unmounting fails, a mounted tree is never removed.
func UnmountAndRemove(s *System, dir string) error {
	err := s.Mounter().Unmount(dir)
	if err != nil {
		return err
	}
	return vfs.ForceRemoveAll(s.FS(), dir)
}
