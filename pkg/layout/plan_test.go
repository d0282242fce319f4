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
)

var _ = Describe("Partition plan", Label("plan"), func() {
	var geo layout.Geometry
	var boot, root layout.SizeConstraint

	BeforeEach(func() {
		var err error
		geo, err = layout.NewGeometry(2*layout.GiB, 4*layout.MiB, 1)
		Expect(err).NotTo(HaveOccurred())
		boot = layout.SizeConstraint{MinBytes: 80 * layout.MiB, MaxBytes: 80 * layout.MiB}
		root = layout.SizeConstraint{}
	})

	It("plans a boot and a root partition on erase block boundaries", func() {
		plan, err := layout.Plan(geo, boot, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Aligned).To(BeTrue())
		Expect(plan.Boot().Name).To(Equal(layout.BootPartition))
		Expect(plan.Boot().Range).To(Equal(layout.SectorRange{Start: 8192, End: 172031}))
		Expect(plan.Root().Name).To(Equal(layout.RootPartition))
		Expect(plan.Root().Range).To(Equal(layout.SectorRange{Start: 172032, End: 4194303}))
		Expect(plan.UnusedSectors).To(BeZero())
	})
	It("grows a boot partition with a partial sector size up to the next boundary", func() {
		boot = layout.SizeConstraint{MinBytes: 83780812, MaxBytes: 83780812}
		plan, err := layout.Plan(geo, boot, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Boot().Range).To(Equal(layout.SectorRange{Start: 8192, End: 172031}))
		Expect(plan.Root().Range).To(Equal(layout.SectorRange{Start: 172032, End: 4194303}))
	})
	It("packs partitions when alignment is disabled", func() {
		boot = layout.SizeConstraint{MinBytes: 83780812, MaxBytes: 83780812}
		plan, err := layout.Plan(geo, boot, root, layout.WithAlignment(false))
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Aligned).To(BeFalse())
		Expect(plan.Boot().Range).To(Equal(layout.SectorRange{Start: 1, End: 163635}))
		Expect(plan.Root().Range).To(Equal(layout.SectorRange{Start: 163636, End: 4194303}))
	})
	It("starts the boot partition at the first sector if requested", func() {
		plan, err := layout.Plan(geo, boot, root, layout.WithFirstAligned(false))
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Boot().Range).To(Equal(layout.SectorRange{Start: 1, End: 172031}))
		Expect(plan.Root().Range).To(Equal(layout.SectorRange{Start: 172032, End: 4194303}))
	})
	It("leaves unused space after a bounded root partition", func() {
		root = layout.SizeConstraint{MaxBytes: layout.GiB}
		plan, err := layout.Plan(geo, boot, root)
		Expect(err).NotTo(HaveOccurred())
		Expect(plan.Root().Range).To(Equal(layout.SectorRange{Start: 172032, End: 2269183}))
		Expect(plan.UnusedSectors).To(Equal(uint64(1925120)))
	})
	It("fails if the root partition does not fit", func() {
		root = layout.SizeConstraint{MinBytes: 2 * layout.GiB}
		plan, err := layout.Plan(geo, boot, root)
		Expect(plan).To(BeNil())
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.Partition).To(Equal(layout.RootPartition))
		Expect(allocErr.RequiredSectors).To(Equal(uint64(4194304)))
		Expect(allocErr.AvailableSectors).To(Equal(uint64(4022272)))
	})
	It("fails if the boot partition takes the whole volume", func() {
		boot = layout.SizeConstraint{}
		plan, err := layout.Plan(geo, boot, root)
		Expect(plan).To(BeNil())
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.Partition).To(Equal(layout.RootPartition))
		Expect(allocErr.AvailableSectors).To(BeZero())
	})
	It("fails if the boot partition does not fit", func() {
		boot = layout.SizeConstraint{MinBytes: 3 * layout.GiB}
		_, err := layout.Plan(geo, boot, root)
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.Partition).To(Equal(layout.BootPartition))
	})
	It("rejects an invalid geometry", func() {
		geo.FirstUsableSector = geo.TotalSectors
		_, err := layout.Plan(geo, boot, root)
		var cfgErr *layout.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
	It("rejects contradictory size constraints", func() {
		root = layout.SizeConstraint{MinBytes: layout.GiB, MaxBytes: layout.MiB}
		_, err := layout.Plan(geo, boot, root)
		var cfgErr *layout.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
	It("never plans overlapping partitions", func() {
		for _, size := range []uint64{64 * layout.MiB, 2 * layout.GiB, 7*layout.GiB + 12345} {
			for _, erase := range []uint64{512, 128 * layout.KiB, 4 * layout.MiB} {
				for _, first := range []uint64{1, 63, 2048} {
					for _, bootMax := range []uint64{layout.MiB, 80 * layout.MiB} {
						for _, rootMax := range []uint64{0, 10 * layout.MiB} {
							for _, align := range []bool{true, false} {
								g, err := layout.NewGeometry(size, erase, first)
								Expect(err).NotTo(HaveOccurred())
								plan, err := layout.Plan(g,
									layout.SizeConstraint{MaxBytes: bootMax},
									layout.SizeConstraint{MaxBytes: rootMax},
									layout.WithAlignment(align),
								)
								if err != nil {
									Expect(err).To(BeAssignableToTypeOf(&layout.AllocationError{}))
									continue
								}
								b, r := plan.Boot().Range, plan.Root().Range
								Expect(b.Overlaps(r)).To(BeFalse())
								Expect(b.Start).To(BeNumerically(">=", first))
								Expect(r.Start).To(BeNumerically(">", b.End))
								Expect(r.End).To(BeNumerically("<", g.TotalSectors))
								Expect(r.End + 1 + plan.UnusedSectors).To(Equal(g.TotalSectors))
							}
						}
					}
				}
			}
		}
	})
})
