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

package rsync

import (
	"context"
	"fmt"
	"strings"

	"github.com/suse/sdimage/pkg/sys"
)

type Rsync struct {
	ctx   context.Context
	flags []string
	s     *sys.System
}

type Opts func(r *Rsync)

func WithFlags(flags ...string) Opts {
	return func(r *Rsync) {
		r.flags = flags
	}
}

func WithContext(ctx context.Context) Opts {
	return func(r *Rsync) {
		r.ctx = ctx
	}
}

func NewRsync(s *sys.System, opts ...Opts) *Rsync {
	rsync := &Rsync{
		ctx:   context.Background(),
		flags: DefaultFlags(),
		s:     s,
	}

	for _, o := range opts {
		o(rsync)
	}
	return rsync
}

// SyncData rsync's source folder contents to a target folder content,
// both are expected to exist before hand. Excludes are patterns relative
// to the source root.
func (r Rsync) SyncData(source string, target string, excludes ...string) error {
	flags := append([]string{}, r.flags...)
	for _, e := range excludes {
		flags = append(flags, fmt.Sprintf("--exclude=%s", e))
	}

	return r.rsyncWrapper(source, target, flags)
}

func (r Rsync) rsyncWrapper(source string, target string, flags []string) error {
	fs := r.s.FS()
	log := r.s.Logger()

	if s, err := fs.RawPath(source); err == nil {
		source = s
	}
	if t, err := fs.RawPath(target); err == nil {
		target = t
	}

	if !strings.HasSuffix(source, "/") {
		source = fmt.Sprintf("%s/", source)
	}

	if !strings.HasSuffix(target, "/") {
		target = fmt.Sprintf("%s/", target)
	}

	log.Info("Syncing '%s' to '%s'", source, target)

	args := append(flags, source, target)
	var stderr []string

	err := r.s.Runner().RunContextParseOutput(r.ctx, func(msg string) {
		log.Debug("synchronizing: %s", msg)
	}, func(msg string) {
		log.Debug("rsync stderr: %s", msg)
		stderr = append(stderr, msg)
	}, "rsync", args...)

	if err != nil {
		log.Error("rsync finished with errors: %s", err.Error())
		return &sys.ExternalToolError{Command: "rsync", Args: args, Output: strings.Join(stderr, "\n"), Err: err}
	}

	log.Info("Finished syncing")
	return nil
}

// DefaultFlags preserve everything a root filesystem needs
func DefaultFlags() []string {
	return []string{
		"--info=progress2", "--human-readable", "--archive", "--hard-links",
		"--acls", "--xattrs", "--numeric-ids",
	}
}

// FatFlags only keep what a FAT filesystem can store: no owners, permissions or symlinks
func FatFlags() []string {
	return []string{
		"--info=progress2", "--human-readable", "--recursive", "--copy-links",
		"--times", "--modify-window=1",
	}
}
