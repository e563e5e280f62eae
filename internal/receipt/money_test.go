package receipt

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("toCents", func() {
	DescribeTable("conversions",
		func(amount float64, expected int64, expectedOK bool) {
			cents, ok := toCents(amount)
			Expect(ok).To(Equal(expectedOK))
			Expect(cents).To(Equal(expected))
		},
		Entry("whole dollars", 12.0, int64(1200), true),
		Entry("rounds half away from zero", 12.345, int64(1235), true),
		Entry("negative", -4.5, int64(-450), true),
		Entry("zero", 0.0, int64(0), true),
		Entry("21 digit total", 123456789012345678901.0, int64(0), false),
		Entry("barcode read as a price", 98765432109876543210.0, int64(0), false),
		Entry("just past the int64 range", 92233720368547758.08, int64(0), false),
		Entry("infinity", math.Inf(1), int64(0), false),
		Entry("not a number", math.NaN(), int64(0), false),
	)
})
