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


package fstab

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/suse/sdimage/pkg/sys"
)

const File = "/etc/fstab"

var escape = string([]byte{tabwriter.Escape})

type Line struct {
	Device     string
	MountPoint string
	FileSystem string
	Options    []string
	DumpFreq   int
	FsckOrder  int
}

// row is a single line of an fstab file, either a mount entry or some
// verbatim text such as a comment
type row struct {
	line *Line
	text string
}

// Write writes an fstab file at the given location including the given fstab lines
func Write(s *sys.System, fstabFile string, fstabLines []Line) error {
	rows := make([]row, 0, len(fstabLines))
	for i := range fstabLines {
		rows = append(rows, row{line: &fstabLines[i]})
	}
	return writeFile(s, fstabFile, rows)
}

// Retarget points the mount points of the given lines to their new device and
// filesystem type. Options, dump and fsck fields and any comment of the
// existing file are kept. Mount points not present in the file are appended,
// a missing file is created.
func Retarget(s *sys.System, fstabFile string, lines []Line) error {
	data, err := s.FS().ReadFile(fstabFile)
	if errors.Is(err, fs.ErrNotExist) {
		return Write(s, fstabFile, lines)
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	rows, err := parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	for i := range lines {
		found := false
		for _, r := range rows {
			if r.line == nil || r.line.MountPoint != lines[i].MountPoint {
				continue
			}
			r.line.Device = lines[i].Device
			r.line.FileSystem = lines[i].FileSystem
			found = true
		}
		if !found {
			rows = append(rows, row{line: &lines[i]})
		}
	}
	return writeFile(s, fstabFile, rows)
}

func parse(r io.Reader) ([]row, error) {
	var rows []row
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		text := scanner.Text()
		trimmed := strings.TrimSpace(text)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			rows = append(rows, row{text: text})
			continue
		}
		line, err := fstabLineFromFields(strings.Fields(trimmed))
		if err != nil {
			return nil, fmt.Errorf("invalid fstab line '%s': %w", text, err)
		}
		rows = append(rows, row{line: &line})
	}
	return rows, scanner.Err()
}

func writeFile(s *sys.System, fstabFile string, rows []row) (err error) {
	fstab, err := s.FS().Create(fstabFile)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer func() {
		e := fstab.Close()
		if err == nil && e != nil {
			err = fmt.Errorf("closing file: %w", e)
		}
	}()

	if err = writeRows(fstab, rows); err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	return nil
}

func writeRows(w io.Writer, rows []row) error {
	tw := tabwriter.NewWriter(w, 1, 4, 1, ' ', tabwriter.StripEscape)
	for _, r := range rows {
		var err error
		if r.line == nil {
			// escaped so tabs in comments are not taken as columns
			_, err = fmt.Fprintf(tw, "%s%s%s\n", escape, r.text, escape)
		} else {
			l := r.line
			_, err = fmt.Fprintf(
				tw, "%s\t%s\t%s\t%s\t%d\t%d\n",
				l.Device, l.MountPoint, l.FileSystem,
				strings.Join(l.Options, ","), l.DumpFreq, l.FsckOrder,
			)
		}
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

// fstabLineFromFields parses the fields of an fstab line. Dump frequency
// and fsck order are optional and default to zero.
func fstabLineFromFields(fields []string) (Line, error) {
	var fstabLine Line
	if len(fields) < 4 || len(fields) > 6 {
		return fstabLine, fmt.Errorf("invalid number of fields for fstab line")
	}
	if len(fields) > 4 {
		dumpFreq, err := strconv.Atoi(fields[4])
		if err != nil {
			return fstabLine, fmt.Errorf("invalid dump frequency value in fstab line '%s'", fields[4])
		}
		fstabLine.DumpFreq = dumpFreq
	}
	if len(fields) > 5 {
		fsckOrder, err := strconv.Atoi(fields[5])
		if err != nil {
			return fstabLine, fmt.Errorf("invalid filesystem check order value in fstab line '%s'", fields[5])
		}
		fstabLine.FsckOrder = fsckOrder
	}
	fstabLine.Device = fields[0]
	fstabLine.MountPoint = fields[1]
	fstabLine.FileSystem = fields[2]
	fstabLine.Options = strings.Split(fields[3], ",")

	return fstabLine, nil
}
