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

package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/suse/sdimage/pkg/sys"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

type Compression int

const (
	None Compression = iota
	Gzip
	Bzip2
)

const (
	ustarOffset = 257
	// HeaderSize is the number of leading bytes needed to sniff an archive
	HeaderSize = 512
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
	ustarMagic = []byte("ustar")
)

// SniffCompression detects the compression of a stream from its first bytes
func SniffCompression(head []byte) Compression {
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		return Gzip
	case bytes.HasPrefix(head, bzip2Magic):
		return Bzip2
	default:
		return None
	}
}

// IsTar reports whether the given header block belongs to a ustar (POSIX or GNU) archive
func IsTar(head []byte) bool {
	if len(head) < ustarOffset+len(ustarMagic) {
		return false
	}
	return bytes.Equal(head[ustarOffset:ustarOffset+len(ustarMagic)], ustarMagic)
}

// HasTarballSuffix reports whether the file name is the one of a compressed tarball
func HasTarballSuffix(name string) bool {
	for _, suffix := range []string{".tar.gz", ".tgz", ".tar.bz2", ".tbz2"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Filter decides whether a tar entry is extracted
type Filter func(h *tar.Header) (bool, error)

type options struct {
	filters   []Filter
	ownership bool
}

type Opt func(o *options)

// WithFilter only extracts the entries accepted by the given filter
func WithFilter(filter Filter) Opt {
	return func(o *options) {
		o.filters = append(o.filters, filter)
	}
}

// WithOwnership applies the user and group ids recorded in the archive,
// which requires privileges
func WithOwnership() Opt {
	return func(o *options) {
		o.ownership = true
	}
}

type cancelableReader struct {
	ctx context.Context
	src io.Reader
}

func (r *cancelableReader) Read(p []byte) (int, error) {
	select {
	case <-r.ctx.Done():
		return 0, fmt.Errorf("stop reading, context cancelled")
	default:
		return r.src.Read(p)
	}
}

func newCancelableReader(ctx context.Context, src io.Reader) *cancelableReader {
	return &cancelableReader{
		ctx: ctx,
		src: src,
	}
}

// entry is an archive member which can only be created once all regular
// files and directories are in place
type entry struct {
	header *tar.Header
	path   string
}

// ExtractTarball extracts a plain, gzip or bzip2 compressed tarball file to the given
// target. The compression is detected from the leading bytes of the file.
func ExtractTarball(ctx context.Context, s *sys.System, tarball string, target string, opts ...Opt) error {
	sourceFile, err := s.FS().OpenFile(tarball, os.O_RDONLY, vfs.FilePerm)
	if err != nil {
		return err
	}
	defer func() { _ = sourceFile.Close() }()

	body := bufio.NewReader(sourceFile)
	head, err := body.Peek(len(bzip2Magic))
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading tarball '%s': %w", tarball, err)
	}

	switch SniffCompression(head) {
	case Bzip2:
		return ExtractTarBz2(ctx, s, body, target, opts...)
	case Gzip:
		return ExtractTarGz(ctx, s, body, target, opts...)
	default:
		return ExtractTar(ctx, s, body, target, opts...)
	}
}

// ExtractTarGz extracts a .tar.gz archived stream of data to the given target
func ExtractTarGz(ctx context.Context, s *sys.System, body io.Reader, target string, opts ...Opt) error {
	reader, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("gzip error: %w", err)
	}

	return ExtractTar(ctx, s, reader, target, opts...)
}

// ExtractTarBz2 extracts a .tar.bz2 archived stream of data to the given target
func ExtractTarBz2(ctx context.Context, s *sys.System, body io.Reader, target string, opts ...Opt) error {
	return ExtractTar(ctx, s, bzip2.NewReader(body), target, opts...)
}

// ExtractTar extracts a .tar archived stream of data to the given target.
// Links are created after every regular file is in place and directory
// modification times are restored last.
func ExtractTar(ctx context.Context, s *sys.System, body io.Reader, target string, opts ...Opt) error {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var links, dirs []entry
	tr := tar.NewReader(body)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("stop reading tar, context cancelled")
		default:
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !errors.Is(err, tar.ErrInsecurePath) {
				return fmt.Errorf("reading tar stream: %w", err)
			}
			s.Logger().Warn("Ignoring non local path '%s': %v", header.Name, err)
			continue
		}

		path, err := filterTarHeader(s, target, header, o.filters...)
		if err != nil {
			return err
		}
		if path == "" {
			continue
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = vfs.MkdirAll(s.FS(), path, header.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("creating directory from tar: %w", err)
			}
			dirs = append(dirs, entry{header: header, path: path})
		case tar.TypeReg:
			if err = copyFile(ctx, s, path, header.FileInfo().Mode(), tr); err != nil {
				return fmt.Errorf("creating file %s: %w", path, err)
			}
			if err = setAttributes(s, header, path, o.ownership); err != nil {
				return err
			}
		case tar.TypeLink, tar.TypeSymlink:
			links = append(links, entry{header: header, path: path})
		default:
			s.Logger().Debug("Skipping '%s', unsupported tar entry type '%c'", header.Name, header.Typeflag)
		}
	}

	for _, l := range links {
		if err := createLink(s, target, l, o.ownership); err != nil {
			return err
		}
	}

	// deepest first, so parents are not touched once their times are set
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := setAttributes(s, dirs[i].header, dirs[i].path, o.ownership); err != nil {
			return err
		}
	}
	return nil
}

func createLink(s *sys.System, target string, l entry, ownership bool) error {
	_ = s.FS().Remove(l.path)

	if l.header.Typeflag == tar.TypeLink {
		name, err := sanitizeArchivePath(target, l.header.Linkname)
		if err != nil {
			s.Logger().Warn("Ignoring non local path '%s': %v", name, err)
			return nil
		}
		if err = s.FS().Link(name, l.path); err != nil {
			return fmt.Errorf("creating link %s: %w", l.path, err)
		}
		return nil
	}

	if err := s.FS().Symlink(l.header.Linkname, l.path); err != nil {
		return fmt.Errorf("creating symlink %s: %w", l.path, err)
	}
	if ownership {
		if err := s.FS().Lchown(l.path, l.header.Uid, l.header.Gid); err != nil {
			return fmt.Errorf("setting ownership of %s: %w", l.path, err)
		}
	}
	return nil
}

// setAttributes applies ownership, permission bits and times of a file or directory
func setAttributes(s *sys.System, h *tar.Header, path string, ownership bool) error {
	if ownership {
		if err := s.FS().Lchown(path, h.Uid, h.Gid); err != nil {
			return fmt.Errorf("setting ownership of %s: %w", path, err)
		}
		// chown clears setuid and setgid bits
		if err := s.FS().Chmod(path, h.FileInfo().Mode()); err != nil {
			return fmt.Errorf("setting permissions of %s: %w", path, err)
		}
	}
	atime := h.AccessTime
	if atime.IsZero() {
		atime = h.ModTime
	}
	if err := s.FS().Chtimes(path, atime, h.ModTime); err != nil {
		return fmt.Errorf("setting times of %s: %w", path, err)
	}
	return nil
}

func copyFile(ctx context.Context, s *sys.System, path string, mode os.FileMode, src io.Reader) (err error) {
	dir := filepath.Dir(path)
	info, err := s.FS().Lstat(dir)
	switch {
	case os.IsNotExist(err):
		err = vfs.MkdirAll(s.FS(), dir, vfs.DirPerm)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	case info.Mode()&0200 == 0:
		// Ensure we can feed directories tared without write permission
		err = s.FS().Chmod(dir, vfs.DirPerm)
		if err != nil {
			return err
		}
		defer func() {
			e := s.FS().Chmod(dir, info.Mode())
			if err == nil && e != nil {
				err = e
			}
		}()
	}

	_ = s.FS().Remove(path)

	file, err := s.FS().OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	defer func() {
		e := file.Close()
		if err == nil && e != nil {
			err = e
		}
	}()
	_, err = io.Copy(file, newCancelableReader(ctx, src))
	return err
}

func sanitizeArchivePath(root, filename string) (string, error) {
	root = filepath.Clean(root)
	path := filepath.Join(root, filename)
	if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
		return path, nil
	}

	return path, fmt.Errorf("content filepath '%s' is tainted", path)
}

func filterTarHeader(s *sys.System, target string, h *tar.Header, filters ...Filter) (string, error) {
	path := h.Name
	path, err := sanitizeArchivePath(target, path)
	if err != nil {
		s.Logger().Warn("Ignoring non local path '%s': %v", path, err)
		return "", nil
	}

	for _, filter := range filters {
		accept, err := filter(h)
		if err != nil {
			return "", fmt.Errorf("tar filter failed on '%s': %w", h.Name, err)
		}
		if !accept {
			return "", nil
		}
	}

	return path, nil
}
