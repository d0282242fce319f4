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

var _ = Describe("Sector aligner", Label("aligner"), func() {
	It("rounds sectors up to the next grain boundary", func() {
		Expect(layout.AlignSector(0, 8192)).To(Equal(uint64(0)))
		Expect(layout.AlignSector(1, 8192)).To(Equal(uint64(8192)))
		Expect(layout.AlignSector(8192, 8192)).To(Equal(uint64(8192)))
		Expect(layout.AlignSector(8193, 8192)).To(Equal(uint64(16384)))
		Expect(layout.AlignSector(172031, 8192)).To(Equal(uint64(172032)))
	})
	It("always lands on a multiple of the grain less than one grain away", func() {
		for _, grain := range []uint64{1, 3, 7, 8, 2048, 8192} {
			for sector := uint64(0); sector < 20000; sector += 37 {
				aligned := layout.AlignSector(sector, grain)
				Expect(aligned % grain).To(BeZero())
				Expect(aligned).To(BeNumerically(">=", sector))
				Expect(aligned - sector).To(BeNumerically("<", grain))
			}
		}
	})
	It("panics on a zero grain", func() {
		Expect(func() { layout.AlignSector(10, 0) }).To(Panic())
	})
	It("rejects a zero grain as a configuration error", func() {
		_, err := layout.NewAligner(0, true)
		var cfgErr *layout.ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())

		_, err = layout.NewAligner(0, false)
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})
	It("is the identity function when disabled", func() {
		a, err := layout.NewAligner(8192, false)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Enabled()).To(BeFalse())
		Expect(a.Align(1)).To(Equal(uint64(1)))
		Expect(a.Align(8193)).To(Equal(uint64(8193)))
	})
	It("aligns when enabled", func() {
		a, err := layout.NewAligner(2048, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(a.Grain()).To(Equal(uint64(2048)))
		Expect(a.Align(1)).To(Equal(uint64(2048)))
	})
})

var _ = Describe("Sizes", Label("sizes"), func() {
	It("converts bytes to sectors rounding partial sectors up", func() {
		Expect(layout.BytesToSectors(0)).To(Equal(uint64(0)))
		Expect(layout.BytesToSectors(1)).To(Equal(uint64(1)))
		Expect(layout.BytesToSectors(512)).To(Equal(uint64(1)))
		Expect(layout.BytesToSectors(513)).To(Equal(uint64(2)))
		Expect(layout.BytesToSectors(80 * layout.MiB)).To(Equal(uint64(163840)))
		Expect(layout.BytesToSectors(math.MaxUint64)).To(Equal(uint64(math.MaxUint64/512 + 1)))
	})
	It("computes range sizes inclusively", func() {
		r := layout.SectorRange{Start: 8192, End: 172031}
		Expect(r.Sectors()).To(Equal(uint64(163840)))
		Expect(r.Bytes()).To(Equal(uint64(80 * layout.MiB)))
		Expect(r.String()).To(Equal("8192-172031"))
	})
	It("detects overlapping ranges", func() {
		a := layout.SectorRange{Start: 10, End: 20}
		Expect(a.Overlaps(layout.SectorRange{Start: 20, End: 30})).To(BeTrue())
		Expect(a.Overlaps(layout.SectorRange{Start: 21, End: 30})).To(BeFalse())
		Expect(a.Overlaps(layout.SectorRange{Start: 0, End: 9})).To(BeFalse())
		Expect(a.Overlaps(layout.SectorRange{Start: 12, End: 13})).To(BeTrue())
	})
	It("rejects a minimum larger than a bounded maximum", func() {
		Expect(layout.SizeConstraint{MinBytes: 2, MaxBytes: 1}.Validate()).NotTo(Succeed())
		Expect(layout.SizeConstraint{MinBytes: 2, MaxBytes: 0}.Validate()).To(Succeed())
		Expect(layout.SizeConstraint{MinBytes: 2, MaxBytes: 2}.Validate()).To(Succeed())
	})
})
