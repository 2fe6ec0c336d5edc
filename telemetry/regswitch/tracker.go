// Package regswitch measures bit toggling on general-purpose register writes.
package regswitch

import (
	"math/bits"

	"github.com/sarchlab/bpsim/insts"
)

// Tracker accumulates the Hamming distance between consecutive values
// written to general-purpose registers.
//
// Only the most recently written register is remembered. The first write
// primes that slot and is not counted as an operation.
type Tracker struct {
	prevReg   insts.Reg
	prevValue uint64
	primed    bool

	bitSwitches uint64
	operations  uint64
}

// NewTracker creates a tracker with an empty previous-write slot.
func NewTracker() *Tracker {
	return &Tracker{prevReg: insts.RegNone}
}

// Observe applies the primary destination of one retired instruction and
// returns the number of bits that toggled.
func (t *Tracker) Observe(ev insts.Event) int {
	return t.Write(ev.Dest[0], ev.DestValues[0])
}

// Write records value written to reg. Writes to anything other than a
// general-purpose register are ignored.
func (t *Tracker) Write(reg insts.Reg, value uint64) int {
	if !reg.IsGPR() {
		return 0
	}

	distance := 0
	if t.primed {
		distance = bits.OnesCount64(t.prevValue ^ value)
		t.bitSwitches += uint64(distance)
		t.operations++
	}

	t.prevReg = reg
	t.prevValue = value
	t.primed = true

	return distance
}

// Last returns the most recently written register and its value.
func (t *Tracker) Last() (insts.Reg, uint64) {
	return t.prevReg, t.prevValue
}

// BitSwitches returns the total number of toggled bits.
func (t *Tracker) BitSwitches() uint64 {
	return t.bitSwitches
}

// Operations returns the number of counted register writes.
func (t *Tracker) Operations() uint64 {
	return t.operations
}

// AverageBitSwitches returns toggled bits per counted write.
func (t *Tracker) AverageBitSwitches() float64 {
	if t.operations == 0 {
		return 0
	}
	return float64(t.bitSwitches) / float64(t.operations)
}

// Reset clears the slot and all totals.
func (t *Tracker) Reset() {
	*t = Tracker{prevReg: insts.RegNone}
}
