package histogram_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bpsim/telemetry/histogram"
)

var _ = Describe("Histogram", func() {
	const width = 8

	var h *histogram.Histogram

	BeforeEach(func() {
		h = histogram.New(histogram.DefaultBuckets, width)
	})

	DescribeTable("BitWidth",
		func(offset int64, bucket int, ok bool) {
			b, got := histogram.BitWidth(offset)
			Expect(got).To(Equal(ok))
			Expect(b).To(Equal(bucket))
		},
		Entry("zero has no bucket", int64(0), 0, false),
		Entry("+1", int64(1), 2, true),
		Entry("+5", int64(5), 4, true),
		Entry("+8", int64(8), 5, true),
		Entry("-1", int64(-1), 1, true),
		Entry("-3", int64(-3), 3, true),
		Entry("-4", int64(-4), 3, true),
		Entry("-5", int64(-5), 4, true),
	)

	It("should measure offsets in instructions", func() {
		Expect(h.Offset(0x1000, 0x1000-5*width)).To(Equal(int64(5)))
		Expect(h.Offset(0x1000, 0x1000+3*width)).To(Equal(int64(-3)))
	})

	It("should skip zero offsets", func() {
		Expect(h.Record(0x1000, 0x1000)).To(Equal(-1))
		Expect(h.Total()).To(BeZero())
	})

	It("should count offsets in their buckets", func() {
		Expect(h.Record(0x1000, 0x1000-5*width)).To(Equal(4))
		Expect(h.Record(0x1000, 0x1000+3*width)).To(Equal(3))
		Expect(h.Record(0x2000, 0x2000-6*width)).To(Equal(4))

		counts := h.Counts()
		Expect(counts).To(HaveLen(histogram.DefaultBuckets))
		Expect(counts[4]).To(Equal(uint64(2)))
		Expect(counts[3]).To(Equal(uint64(1)))
		Expect(h.Total()).To(Equal(uint64(3)))
	})

	It("should clamp wide offsets into the last bucket", func() {
		bucket := h.Record(0x1_0000_0000, 0)
		Expect(bucket).To(Equal(histogram.DefaultBuckets - 1))
	})

	It("should write the bucket table", func() {
		small := histogram.New(3, width)
		small.Record(0x1000, 0x1000-width) // +1 -> bucket 2

		var buf bytes.Buffer
		Expect(small.WriteCSV(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal("Bits, Offset\n0, 0\n1, 0\n2, 1\n"))
	})

	It("should name artifacts after the local time", func() {
		at := time.Date(2024, 3, 1, 9, 5, 0, 0, time.Local)
		Expect(histogram.FileName(at)).To(Equal("out09-05.csv"))
	})

	It("should flush to a file", func() {
		dir := filepath.Join(GinkgoT().TempDir(), "runs")
		h.Record(0x1000, 0x1000-5*width)

		path, err := h.Flush(dir, time.Date(2024, 3, 1, 14, 30, 0, 0, time.Local))
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.Base(path)).To(Equal("out14-30.csv"))

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(histogram.DefaultBuckets + 1))
		Expect(lines[0]).To(Equal("Bits, Offset"))
		Expect(lines[5]).To(Equal("4, 1"))
	})

	It("should default non-positive arguments", func() {
		d := histogram.New(0, 0)
		Expect(d.Counts()).To(HaveLen(histogram.DefaultBuckets))
		Expect(d.Offset(16, 0)).To(Equal(int64(2)))
	})

	It("should reset", func() {
		h.Record(0x1000, 0)
		h.Reset()
		Expect(h.Total()).To(BeZero())
	})
})
