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
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/suse/sdimage/pkg/layout"
)

const alignedReport = `Volume size:     2147483648 bytes, 4194304 sectors
Alignment grain: 4194304 bytes, 8192 sectors
Partition         Start          End      Sectors    1K-blocks        MiB
boot               8192       172031       163840        81920      80.00
root             172032      4194303      4022272      2011136    1964.00
Unused sectors:  0
`

const packedReport = `Volume size:     2147483648 bytes, 4194304 sectors
Alignment grain: disabled
Partition         Start          End      Sectors    1K-blocks        MiB
boot                  1       163635       163635        81817      79.90
root             163636      4194303      4030668      2015334    1968.10
Unused sectors:  0
`

var _ = Describe("Plan report", Label("report"), func() {
	var geo layout.Geometry

	BeforeEach(func() {
		var err error
		geo, err = layout.NewGeometry(2*layout.GiB, 4*layout.MiB, 1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("describes an aligned plan", func() {
		plan, err := layout.Plan(geo,
			layout.SizeConstraint{MinBytes: 80 * layout.MiB, MaxBytes: 80 * layout.MiB},
			layout.SizeConstraint{},
		)
		Expect(err).NotTo(HaveOccurred())
		buf := &bytes.Buffer{}
		Expect(plan.WriteReport(buf)).To(Succeed())
		Expect(buf.String()).To(Equal(alignedReport))
	})
	It("describes a plan without alignment", func() {
		plan, err := layout.Plan(geo,
			layout.SizeConstraint{MinBytes: 83780812, MaxBytes: 83780812},
			layout.SizeConstraint{},
			layout.WithAlignment(false),
		)
		Expect(err).NotTo(HaveOccurred())
		buf := &bytes.Buffer{}
		Expect(plan.WriteReport(buf)).To(Succeed())
		Expect(buf.String()).To(Equal(packedReport))
	})
	It("renders the same plan identically", func() {
		plan, err := layout.Plan(geo, layout.SizeConstraint{MaxBytes: 32 * layout.MiB}, layout.SizeConstraint{MaxBytes: layout.GiB})
		Expect(err).NotTo(HaveOccurred())
		first, second := &bytes.Buffer{}, &bytes.Buffer{}
		Expect(plan.WriteReport(first)).To(Succeed())
		Expect(plan.WriteReport(second)).To(Succeed())
		Expect(first.String()).To(Equal(second.String()))
		Expect(first.String()).To(ContainSubstring("Unused sectors:  2023424"))
	})
})
