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

package layout_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/suse/sdimage/pkg/layout"
	sysmock "github.com/suse/sdimage/pkg/sys/mock"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

var _ = Describe("Device geometry", Label("geometry"), func() {
	var fs vfs.FS
	var cleanup func()

	BeforeEach(func() {
		var err error
		fs, cleanup, err = sysmock.TestFS(map[string]any{
			"/sys/block/mmcblk0/size":                         "15523840\n",
			"/sys/block/mmcblk0/device/preferred_erase_size": "4194304\n",
			"/sys/block/loop3/size":                           "4194304\n",
			"/sys/block/sdz/size":                             "garbage\n",
		})
		Expect(err).NotTo(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})

	It("maps device nodes to sysfs directories", func() {
		Expect(layout.SysfsPath("/dev/mmcblk0")).To(Equal("/sys/block/mmcblk0"))
		Expect(layout.SysfsPath("mmcblk0")).To(Equal("/sys/block/mmcblk0"))
	})
	It("reads the size and erase block size of a device", func() {
		attrs, err := layout.ReadDeviceAttributes(fs, "/dev/mmcblk0")
		Expect(err).NotTo(HaveOccurred())
		Expect(attrs.SizeBytes).To(Equal(uint64(15523840 * 512)))
		Expect(attrs.EraseBytes).To(Equal(uint64(4 * layout.MiB)))
	})
	It("leaves missing attributes unset", func() {
		attrs, err := layout.ReadDeviceAttributes(fs, "/dev/loop3")
		Expect(err).NotTo(HaveOccurred())
		Expect(attrs.SizeBytes).To(Equal(uint64(2 * layout.GiB)))
		Expect(attrs.EraseBytes).To(BeZero())

		attrs, err = layout.ReadDeviceAttributes(fs, "/dev/nvme0n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(attrs).To(Equal(layout.DeviceAttributes{}))
	})
	It("fails on malformed attributes", func() {
		_, err := layout.ReadDeviceAttributes(fs, "/dev/sdz")
		var cfgErr *layout.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
	It("builds a sector geometry", func() {
		geo, err := layout.NewGeometry(2*layout.GiB+100, 4*layout.MiB, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(geo).To(Equal(layout.Geometry{TotalSectors: 4194304, GrainSectors: 8192, FirstUsableSector: 1}))
		Expect(geo.SizeBytes()).To(Equal(uint64(2 * layout.GiB)))
		Expect(geo.GrainBytes()).To(Equal(uint64(4 * layout.MiB)))
	})
	It("rejects erase block sizes which are not whole sectors", func() {
		_, err := layout.NewGeometry(2*layout.GiB, 1000, 1)
		Expect(err).To(BeAssignableToTypeOf(&layout.ConfigurationError{}))
		_, err = layout.NewGeometry(2*layout.GiB, 0, 1)
		Expect(err).To(BeAssignableToTypeOf(&layout.ConfigurationError{}))
	})
	It("rejects a volume smaller than its first sector", func() {
		_, err := layout.NewGeometry(100, 4*layout.MiB, 1)
		Expect(err).To(BeAssignableToTypeOf(&layout.ConfigurationError{}))
		_, err = layout.NewGeometry(4*layout.MiB, 4*layout.MiB, 8192)
		Expect(err).To(BeAssignableToTypeOf(&layout.ConfigurationError{}))
	})
	It("rejects sector zero as the first usable sector", func() {
		_, err := layout.NewGeometry(2*layout.GiB, 4*layout.MiB, 0)
		Expect(err).To(BeAssignableToTypeOf(&layout.ConfigurationError{}))
		Expect(err.Error()).To(ContainSubstring("partition table"))
	})
	It("derives the geometry of a device", func() {
		geo, err := layout.GeometryFromDevice(fs, "/dev/mmcblk0")
		Expect(err).NotTo(HaveOccurred())
		Expect(geo).To(Equal(layout.Geometry{TotalSectors: 15523840, GrainSectors: 8192, FirstUsableSector: 1}))
	})
	It("falls back to defaults for missing attributes", func() {
		geo, err := layout.GeometryFromDevice(fs, "/dev/loop3")
		Expect(err).NotTo(HaveOccurred())
		Expect(geo.GrainBytes()).To(Equal(uint64(layout.DefaultEraseSize)))

		geo, err = layout.GeometryFromDevice(fs, "/dev/nvme0n1")
		Expect(err).NotTo(HaveOccurred())
		Expect(geo.SizeBytes()).To(Equal(uint64(layout.DefaultVolumeSize)))

		_, err = layout.GeometryFromDevice(fs, "/dev/sdz")
		Expect(err).To(HaveOccurred())
	})
})
