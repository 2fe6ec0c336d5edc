package bpred

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrIndexOutOfRange is returned when a computed table index does not fit
// the prediction tables. It indicates an internal inconsistency and the run
// should be aborted.
var ErrIndexOutOfRange = errors.New("predictor index out of range")

// Config holds configuration for a predictor bank.
type Config struct {
	// TableBits is log2 of the number of entries per table. Default is 18.
	TableBits uint
	// HistoryBits is the global history width of variant v. Default is 10.
	HistoryBits uint
	// InstructionWidth is the instruction size in bytes. Must be a power
	// of 2. Default is 8.
	InstructionWidth uint64
}

// DefaultConfig returns 2^18 entries, 10 bits of history and 8-byte
// instructions.
func DefaultConfig() Config {
	return Config{
		TableBits:        18,
		HistoryBits:      10,
		InstructionWidth: 8,
	}
}

// Stats holds misprediction counts for every variant.
type Stats struct {
	// Branches is the number of conditional branches observed.
	Branches uint64
	// Mispredictions is indexed by Variant.
	Mispredictions [NumVariants]uint64
}

// Accuracy returns 1 - mispredictions/branches for the variant.
func (s Stats) Accuracy(v Variant) float64 {
	if s.Branches == 0 {
		return 0
	}
	return 1 - float64(s.Mispredictions[v])/float64(s.Branches)
}

// MispredictionRate returns the misprediction rate of the variant as a
// percentage.
func (s Stats) MispredictionRate(v Variant) float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Mispredictions[v]) / float64(s.Branches) * 100
}

// Bank runs all prediction variants over the same branch stream.
type Bank struct {
	models [NumVariants]Model

	entries    uint32
	alignShift uint
	width      uint64

	stats Stats
}

// NewBank allocates every prediction table. A zero TableBits or
// InstructionWidth takes its default; zero HistoryBits is a valid width.
func NewBank(config Config) *Bank {
	def := DefaultConfig()
	if config.TableBits == 0 {
		config.TableBits = def.TableBits
	}
	if config.InstructionWidth == 0 {
		config.InstructionWidth = def.InstructionWidth
	}

	entries := uint32(1) << config.TableBits

	b := &Bank{
		entries:    entries,
		alignShift: uint(bits.TrailingZeros64(config.InstructionWidth)),
		width:      config.InstructionWidth,
	}

	b.models[VariantOneBit] = NewOneBit(entries)
	b.models[VariantTwoBit] = NewTwoBit(entries)
	b.models[VariantOneBitLocal] = NewOneBitLocal(entries)
	b.models[VariantTwoBitGlobal4] = NewTwoBitGlobal(entries, GlobalHistory4Bits)
	b.models[VariantTwoBitGlobalN] = NewTwoBitGlobal(entries, config.HistoryBits)

	return b
}

// Entries returns the number of entries per table.
func (b *Bank) Entries() uint32 {
	return b.entries
}

// Model returns the model of a variant.
func (b *Bank) Model(v Variant) Model {
	return b.models[v]
}

// Index computes the table index for a branch address: the address bits
// above the instruction alignment, masked to the table size.
func (b *Bank) Index(pc uint64) uint32 {
	return uint32((pc >> b.alignShift) & uint64(b.entries-1))
}

// Observe applies one conditional branch to every variant. Each variant
// predicts first, the prediction is scored against the actual outcome, and
// only then is the variant updated. Returns whether the branch was taken.
func (b *Bank) Observe(pc, nextPC uint64) (bool, error) {
	index := b.Index(pc)
	if index >= b.entries {
		return false, fmt.Errorf("pc 0x%x: index %d >= %d: %w",
			pc, index, b.entries, ErrIndexOutOfRange)
	}

	taken := nextPC != pc+b.width

	b.stats.Branches++
	for v, m := range b.models {
		if m.Predict(index) != taken {
			b.stats.Mispredictions[v]++
		}
		m.Update(index, taken)
	}

	return taken, nil
}

// Stats returns the misprediction statistics.
func (b *Bank) Stats() Stats {
	return b.stats
}

// Reset clears all tables, histories and statistics.
func (b *Bank) Reset() {
	for _, m := range b.models {
		m.Reset()
	}
	b.stats = Stats{}
}
