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

package diskrepart_test

import (
	"errors"
	"strings"

	"github.com/cenkalti/backoff/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/suse/sdimage/pkg/diskrepart"
	"github.com/suse/sdimage/pkg/layout"
	"github.com/suse/sdimage/pkg/log"
	"github.com/suse/sdimage/pkg/sys"
	sysmock "github.com/suse/sdimage/pkg/sys/mock"
	"github.com/suse/sdimage/pkg/sys/vfs"
)

const loopPrint = `BYT;
/dev/loop0:4194304s:loopback:512:512:msdos:Loopback device:;
1:8192s:172031s:163840s:fat32::lba, type=0c;
2:172032s:4194303s:4022272s:ext4::type=83;`

func noWait() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
}

var _ = Describe("Disk", Label("disk"), func() {
	var runner *sysmock.Runner
	var s *sys.System
	var fs vfs.FS
	var cleanup func()
	var printOut string
	var plan *layout.PartitionPlan

	BeforeEach(func() {
		var err error
		runner = sysmock.NewRunner()
		fs, cleanup, err = sysmock.TestFS(map[string]any{
			"/dev/loop0":   "",
			"/dev/loop0p1": "",
		})
		Expect(err).NotTo(HaveOccurred())
		s, err = sys.NewSystem(
			sys.WithRunner(runner), sys.WithFS(fs),
			sys.WithLogger(log.New(log.WithDiscardAll())),
		)
		Expect(err).ToNot(HaveOccurred())

		printOut = loopPrint
		runner.SideEffect = func(cmd string, args ...string) ([]byte, error) {
			if cmd == "parted" && strings.HasSuffix(strings.Join(args, " "), "print") {
				return []byte(printOut), nil
			}
			return []byte{}, nil
		}

		geo, err := layout.NewGeometry(2*layout.GiB, 4*layout.MiB, 1)
		Expect(err).NotTo(HaveOccurred())
		plan, err = layout.Plan(geo,
			layout.SizeConstraint{MinBytes: 80 * layout.MiB, MaxBytes: 80 * layout.MiB},
			layout.SizeConstraint{},
		)
		Expect(err).NotTo(HaveOccurred())
	})
	AfterEach(func() {
		cleanup()
	})

	It("names partition devices", func() {
		Expect(diskrepart.PartitionDevice("/dev/loop3", 1)).To(Equal("/dev/loop3p1"))
		Expect(diskrepart.PartitionDevice("/dev/mmcblk0", 2)).To(Equal("/dev/mmcblk0p2"))
		Expect(diskrepart.PartitionDevice("/dev/sdb", 2)).To(Equal("/dev/sdb2"))
	})
	It("checks the device exists", func() {
		Expect(diskrepart.NewDisk(s, "/dev/loop0").Exists()).To(BeTrue())
		Expect(diskrepart.NewDisk(s, "/dev/loop9").Exists()).To(BeFalse())
	})
	It("finds partition devices", func() {
		disk := diskrepart.NewDisk(s, "/dev/loop0", diskrepart.WithBackOff(noWait))
		dev, err := disk.FindPartitionDevice(1)
		Expect(err).NotTo(HaveOccurred())
		Expect(dev).To(Equal("/dev/loop0p1"))
		Expect(runner.CmdsMatch([][]string{{"udevadm", "settle"}})).To(Succeed())
	})
	It("gives up waiting for a missing partition device", func() {
		disk := diskrepart.NewDisk(s, "/dev/loop0", diskrepart.WithBackOff(noWait))
		_, err := disk.FindPartitionDevice(2)
		Expect(err).To(MatchError(ContainSubstring("partition '2' not found")))
		Expect(runner.GetCmds()).To(HaveLen(4))
	})
	It("reads the partition table", func() {
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		Expect(disk.Reload()).To(Succeed())
		Expect(disk.GetSectorSize()).To(Equal(uint64(512)))
		Expect(disk.GetTotalSectors()).To(Equal(uint64(4194304)))
		Expect(disk.GetLabel()).To(Equal("msdos"))
		Expect(disk.GetPartitions()).To(HaveLen(2))
	})
	It("fails to read an unparseable partition table", func() {
		printOut = "Error: /dev/loop0: unrecognised disk label"
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		Expect(disk.Reload()).NotTo(Succeed())
	})
	It("converts a plan into msdos partitions", func() {
		parts := diskrepart.PlanPartitions(plan)
		Expect(parts).To(HaveLen(2))
		Expect(parts[0].StartS).To(Equal(uint64(8192)))
		Expect(parts[0].EndS()).To(Equal(uint64(172031)))
		Expect(parts[0].Flags).To(ContainElement("lba"))
		Expect(parts[1].StartS).To(Equal(uint64(172032)))
		Expect(parts[1].EndS()).To(Equal(uint64(4194303)))
	})
	It("partitions the disk following the plan", func() {
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		Expect(diskrepart.PartitionDisk(s, disk, plan)).To(Succeed())
		Expect(runner.CmdsMatch([][]string{{
			"parted", "--script", "--machine", "--", "/dev/loop0",
			"unit", "s", "mklabel", "msdos",
			"mkpart", "primary", "fat32", "8192", "172031",
			"mkpart", "primary", "ext4", "172032", "4194303",
			"set", "1", "lba", "on",
		}, {
			"partx", "-u", "/dev/loop0",
		}, {
			"parted", "--script", "--machine", "--", "/dev/loop0", "unit", "s", "print",
		}})).To(Succeed())
	})
	It("fails if the written table does not match the plan", func() {
		printOut = strings.Replace(loopPrint, "1:8192s:172031s:163840s", "1:2048s:172031s:169984s", 1)
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		err := diskrepart.PartitionDisk(s, disk, plan)
		Expect(err).To(MatchError(ContainSubstring("partition 1 is at sectors 2048-172031")))
	})
	It("fails on devices with large sectors", func() {
		printOut = strings.Replace(loopPrint, "loopback:512:512", "loopback:4096:4096", 1)
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		Expect(diskrepart.PartitionDisk(s, disk, plan)).NotTo(Succeed())
	})
	It("reports partitioning failures", func() {
		runner.SideEffect = func(cmd string, args ...string) ([]byte, error) {
			return []byte("Error: Partition(s) on /dev/loop0 are being used."), errors.New("exit status 1")
		}
		disk := diskrepart.NewDisk(s, "/dev/loop0")
		err := diskrepart.PartitionDisk(s, disk, plan)
		var toolErr *sys.ExternalToolError
		Expect(errors.As(err, &toolErr)).To(BeTrue())
		Expect(toolErr.Output).To(ContainSubstring("being used"))
	})
	It("wipes filesystem signatures", func() {
		Expect(diskrepart.WipeFS(s, "/dev/loop0")).To(Succeed())
		Expect(runner.CmdsMatch([][]string{{"wipefs", "--all", "/dev/loop0"}})).To(Succeed())
	})
	It("formats an aligned boot partition", func() {
		vol, err := diskrepart.FormatBoot(s, "/dev/loop0p1", layout.SectorRange{Start: 8192, End: 172031}, 8192, "1a2b3c4d")
		Expect(err).NotTo(HaveOccurred())
		Expect(vol.ID).To(Equal("1A2B-3C4D"))
		Expect(vol.Label).To(Equal("BOOT"))
		Expect(runner.CmdsMatch([][]string{{
			"mkfs.vfat", "-F", "32", "-R", "7886", "-s", "8", "-i", "1A2B3C4D", "-n", "BOOT", "/dev/loop0p1",
		}})).To(Succeed())
	})
	It("generates a boot volume id", func() {
		vol, err := diskrepart.FormatBoot(s, "/dev/loop0p1", layout.SectorRange{Start: 8192, End: 172031}, 8192, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(vol.ID).To(MatchRegexp(`^[0-9A-F]{4}-[0-9A-F]{4}$`))
	})
	It("formats a root partition tuned for the erase block", func() {
		vol, err := diskrepart.FormatRoot(s, "/dev/loop0p2", 4*layout.MiB, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(vol.ID).To(MatchRegexp(`^[0-9a-f-]{36}$`))
		Expect(runner.CmdsMatch([][]string{{
			"mkfs.ext4", "-F", "-b", "4096", "-E", "stride=4,stripe-width=256", "-U", vol.ID, "-L", "root", "/dev/loop0p2",
		}})).To(Succeed())
	})
	It("fails to format a boot partition too small to align", func() {
		_, err := diskrepart.FormatBoot(s, "/dev/loop0p1", layout.SectorRange{Start: 8192, End: 9191}, 8192, "")
		Expect(err).To(HaveOccurred())
		Expect(runner.GetCmds()).To(BeEmpty())
	})
})
