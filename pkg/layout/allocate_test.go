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
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/suse/sdimage/pkg/layout"
)

var _ = Describe("Sector allocator", Label("allocator"), func() {
	var aligner layout.Aligner

	BeforeEach(func() {
		var err error
		aligner, err = layout.NewAligner(8192, true)
		Expect(err).NotTo(HaveOccurred())
	})

	It("allocates an aligned partition of exactly its size", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      1,
			AvailableSectors: 4194303,
			Constraint:       layout.SizeConstraint{MinBytes: 80 * layout.MiB, MaxBytes: 80 * layout.MiB},
			AlignStart:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 8192, End: 172031}))
		Expect(res.NextFreeSector).To(Equal(uint64(172032)))
		Expect(res.RemainingSectors).To(Equal(uint64(4022272)))
		Expect(res.Exhausted()).To(BeFalse())
	})
	It("grows the partition so the next one starts aligned", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      8192,
			AvailableSectors: 100000,
			Constraint:       layout.SizeConstraint{MinBytes: 1000, MaxBytes: 1000},
			AlignStart:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 8192, End: 16383}))
		Expect(res.NextFreeSector).To(Equal(uint64(16384)))
		Expect(res.RemainingSectors).To(Equal(uint64(91808)))
	})
	It("grows the end even if the start is not aligned", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      1,
			AvailableSectors: 4194303,
			Constraint:       layout.SizeConstraint{MinBytes: 80 * layout.MiB, MaxBytes: 80 * layout.MiB},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 1, End: 172031}))
		Expect(res.NextFreeSector).To(Equal(uint64(172032)))
		Expect(res.RemainingSectors).To(Equal(uint64(4022272)))
	})
	It("takes the rest of the free region with a zero maximum", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      8192,
			AvailableSectors: 50000,
			Constraint:       layout.SizeConstraint{},
			AlignStart:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 8192, End: 58191}))
		Expect(res.Exhausted()).To(BeTrue())
		Expect(res.NextFreeSector).To(BeZero())
		Expect(res.RemainingSectors).To(BeZero())
	})
	It("never exceeds the available sectors", func() {
		a, err := layout.NewAligner(8, true)
		Expect(err).NotTo(HaveOccurred())
		res, err := a.Allocate(layout.AllocationRequest{
			FirstSector:      0,
			AvailableSectors: 1000,
			Constraint:       layout.SizeConstraint{MaxBytes: layout.GiB},
			AlignStart:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 0, End: 999}))
		Expect(res.Exhausted()).To(BeTrue())
	})
	It("keeps the leftover space when the next boundary is within the free region", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      0,
			AvailableSectors: 10000,
			Constraint:       layout.SizeConstraint{MinBytes: 2000 * layout.SectorSize, MaxBytes: 2000 * layout.SectorSize},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 0, End: 8191}))
		Expect(res.NextFreeSector).To(Equal(uint64(8192)))
		Expect(res.RemainingSectors).To(Equal(uint64(1808)))
	})
	It("absorbs the free region when the next boundary is past its end", func() {
		res, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      0,
			AvailableSectors: 8000,
			Constraint:       layout.SizeConstraint{MinBytes: 2000 * layout.SectorSize, MaxBytes: 2000 * layout.SectorSize},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 0, End: 7999}))
		Expect(res.Exhausted()).To(BeTrue())
	})
	It("rounds partial sectors up and does not grow without alignment", func() {
		a, err := layout.NewAligner(8192, false)
		Expect(err).NotTo(HaveOccurred())
		res, err := a.Allocate(layout.AllocationRequest{
			FirstSector:      1,
			AvailableSectors: 4194303,
			Constraint:       layout.SizeConstraint{MinBytes: 83780812, MaxBytes: 83780812},
			AlignStart:       true,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Range).To(Equal(layout.SectorRange{Start: 1, End: 163635}))
		Expect(res.Range.Sectors()).To(Equal(uint64(163635)))
		Expect(res.NextFreeSector).To(Equal(uint64(163636)))
		Expect(res.RemainingSectors).To(Equal(uint64(4194303 - 163635)))
	})
	It("fails when the minimum exceeds the available sectors", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{
			Name:             "boot",
			FirstSector:      0,
			AvailableSectors: 1000,
			Constraint:       layout.SizeConstraint{MinBytes: 1000*layout.SectorSize + 1},
		})
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.Partition).To(Equal("boot"))
		Expect(allocErr.RequiredSectors).To(Equal(uint64(1001)))
		Expect(allocErr.AvailableSectors).To(Equal(uint64(1000)))
		Expect(allocErr.Shortfall()).To(Equal(uint64(1)))
		Expect(err.Error()).To(ContainSubstring("short by 1 sectors"))
	})
	It("fails for minimums close to the byte range limit", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{
			Name:             "root",
			AvailableSectors: 4194304,
			Constraint:       layout.SizeConstraint{MinBytes: math.MaxUint64},
		})
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.RequiredSectors).To(Equal(uint64(math.MaxUint64/512 + 1)))
	})
	It("discounts the sectors skipped by the start alignment", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      1,
			AvailableSectors: 8192,
			Constraint:       layout.SizeConstraint{MinBytes: 1024},
			AlignStart:       true,
		})
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.RequiredSectors).To(Equal(uint64(2)))
		Expect(allocErr.AvailableSectors).To(Equal(uint64(1)))
	})
	It("fails when the start alignment skips past the free region", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{
			FirstSector:      1,
			AvailableSectors: 100,
			AlignStart:       true,
		})
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.AvailableSectors).To(BeZero())
	})
	It("fails to allocate from an empty region", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{FirstSector: 8192})
		var allocErr *layout.AllocationError
		Expect(errors.As(err, &allocErr)).To(BeTrue())
		Expect(allocErr.RequiredSectors).To(Equal(uint64(1)))
	})
	It("rejects contradictory constraints", func() {
		_, err := aligner.Allocate(layout.AllocationRequest{
			AvailableSectors: 100000,
			Constraint:       layout.SizeConstraint{MinBytes: 2 * layout.MiB, MaxBytes: layout.MiB},
		})
		var cfgErr *layout.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
	It("honors minimum, maximum and alignment over a range of requests", func() {
		for _, grain := range []uint64{1, 8, 2048, 8192} {
			a, err := layout.NewAligner(grain, true)
			Expect(err).NotTo(HaveOccurred())
			for _, first := range []uint64{0, 1, 100, 8191, 8192, 10000} {
				for _, avail := range []uint64{1, 100, 8192, 50000, 4194303} {
					for _, minB := range []uint64{0, 1, 511, 512, 100000, 4 * layout.MiB} {
						for _, maxB := range []uint64{0, minB, minB + 1000, 80 * layout.MiB} {
							for _, alignStart := range []bool{true, false} {
								checkAllocation(a, layout.AllocationRequest{
									FirstSector:      first,
									AvailableSectors: avail,
									Constraint:       layout.SizeConstraint{MinBytes: minB, MaxBytes: maxB},
									AlignStart:       alignStart,
								})
							}
						}
					}
				}
			}
		}
	})
})

func checkAllocation(a layout.Aligner, req layout.AllocationRequest) {
	minS := layout.BytesToSectors(req.Constraint.MinBytes)
	maxS := layout.BytesToSectors(req.Constraint.MaxBytes)
	end := req.FirstSector + req.AvailableSectors

	res, err := a.Allocate(req)
	if err != nil {
		var allocErr *layout.AllocationError
		ExpectWithOffset(1, errors.As(err, &allocErr)).To(BeTrue(), "%+v", req)
		ExpectWithOffset(1, allocErr.RequiredSectors).To(BeNumerically(">", allocErr.AvailableSectors), "%+v", req)
		return
	}

	r := res.Range
	ExpectWithOffset(1, r.End).To(BeNumerically(">=", r.Start), "%+v", req)
	ExpectWithOffset(1, r.Start).To(BeNumerically(">=", req.FirstSector), "%+v", req)
	ExpectWithOffset(1, r.End).To(BeNumerically("<", end), "%+v", req)
	ExpectWithOffset(1, r.Sectors()).To(BeNumerically(">=", minS), "%+v", req)
	if req.AlignStart {
		ExpectWithOffset(1, r.Start%a.Grain()).To(BeZero(), "%+v", req)
	}

	if res.Exhausted() {
		ExpectWithOffset(1, r.End).To(Equal(end-1), "%+v", req)
		return
	}
	ExpectWithOffset(1, res.NextFreeSector).To(Equal(r.End+1), "%+v", req)
	ExpectWithOffset(1, res.NextFreeSector%a.Grain()).To(BeZero(), "%+v", req)
	ExpectWithOffset(1, res.NextFreeSector+res.RemainingSectors).To(Equal(end), "%+v", req)
	if req.Constraint.MaxBytes != 0 && r.Sectors() > maxS {
		// only grown up to the boundary right after the maximum
		ExpectWithOffset(1, res.NextFreeSector).To(Equal(a.Align(r.Start+maxS)), "%+v", req)
	}
}
