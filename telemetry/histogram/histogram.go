// Package histogram counts conditional branch offsets by the number of bits
// needed to encode them.
package histogram

import (
	"fmt"
	"io"
	"math/bits"
	"os"
	"path/filepath"
	"time"
)

// DefaultBuckets is the number of bit-width buckets.
const DefaultBuckets = 21

// Histogram is a bit-width bucketed counter over branch offsets.
type Histogram struct {
	counts []uint64
	width  int64
}

// New creates a histogram with the given bucket count and instruction width
// in bytes. Non-positive arguments take their defaults.
func New(buckets int, width uint64) *Histogram {
	if buckets <= 0 {
		buckets = DefaultBuckets
	}
	if width == 0 {
		width = 8
	}

	return &Histogram{
		counts: make([]uint64, buckets),
		width:  int64(width),
	}
}

// Offset returns the distance from target to pc in instructions.
func (h *Histogram) Offset(pc, target uint64) int64 {
	return (int64(pc) - int64(target)) / h.width
}

// BitWidth returns the bucket for an offset. A positive offset needs
// floor(log2(offset))+2 bits and a negative one ceil(log2(-offset))+1. The
// second result is false for a zero offset, which has no bucket.
func BitWidth(offset int64) (int, bool) {
	switch {
	case offset > 0:
		return bits.Len64(uint64(offset)) - 1 + 2, true
	case offset < 0:
		mag := uint64(-offset)
		return bits.Len64(mag-1) + 1, true
	default:
		return 0, false
	}
}

// Record counts the branch at pc with the given target. Zero offsets are
// ignored. Returns the bucket used, or -1.
func (h *Histogram) Record(pc, target uint64) int {
	bucket, ok := BitWidth(h.Offset(pc, target))
	if !ok {
		return -1
	}

	if bucket >= len(h.counts) {
		bucket = len(h.counts) - 1
	}

	h.counts[bucket]++
	return bucket
}

// Counts returns a copy of the bucket counters.
func (h *Histogram) Counts() []uint64 {
	out := make([]uint64, len(h.counts))
	copy(out, h.counts)
	return out
}

// Total returns the number of recorded offsets.
func (h *Histogram) Total() uint64 {
	var total uint64
	for _, c := range h.counts {
		total += c
	}
	return total
}

// WriteCSV writes the two-column bucket table.
func (h *Histogram) WriteCSV(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "Bits, Offset"); err != nil {
		return err
	}

	for bucket, count := range h.counts {
		if _, err := fmt.Fprintf(w, "%d, %d\n", bucket, count); err != nil {
			return err
		}
	}

	return nil
}

// FileName returns the artifact name for a run finalized at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("out%02d-%02d.csv", t.Hour(), t.Minute())
}

// Flush writes the table to dir under the name derived from now and returns
// the path written.
func (h *Histogram) Flush(dir string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create histogram directory: %w", err)
	}

	path := filepath.Join(dir, FileName(now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create histogram file: %w", err)
	}

	if err := h.WriteCSV(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write histogram: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close histogram file: %w", err)
	}

	return path, nil
}

// Reset zeroes every bucket.
func (h *Histogram) Reset() {
	clear(h.counts)
}
