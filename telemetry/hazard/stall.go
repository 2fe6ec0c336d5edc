// Package hazard detects dependency stalls between consecutive retired
// instructions.
//
// The detector is a one-instruction lookback heuristic, not a scoreboard. A
// load or control instruction arms it with its destination registers; the
// next instruction that is neither a load nor a control instruction is
// checked against them and disarms it.
package hazard

import "github.com/sarchlab/bpsim/insts"

// StallDetector counts load/control-to-use dependency stalls.
type StallDetector struct {
	pending [2]insts.Reg
	armed   bool

	stalls uint64
}

// NewStallDetector creates an idle stall detector.
func NewStallDetector() *StallDetector {
	return &StallDetector{pending: insts.NoDests}
}

// Observe applies one retired instruction and reports whether it stalled.
func (d *StallDetector) Observe(ev insts.Event) bool {
	// Loads and control instructions open the window.
	if ev.Flags.Any(insts.FlagLoad | insts.FlagControl) {
		d.pending = ev.Dest
		d.armed = true
		return false
	}

	if !d.armed {
		return false
	}

	// The window is exactly one instruction wide.
	d.armed = false

	if DependsOn(d.pending, ev.Src) {
		d.stalls++
		return true
	}

	return false
}

// DependsOn reports whether any source register reads one of the pending
// destinations. Unused slots never match.
func DependsOn(pending [2]insts.Reg, src [3]insts.Reg) bool {
	for _, dst := range pending {
		if dst == insts.RegNone {
			continue
		}

		for _, s := range src {
			if s == dst {
				return true
			}
		}
	}

	return false
}

// Armed reports whether the next instruction will be checked.
func (d *StallDetector) Armed() bool {
	return d.armed
}

// Pending returns the destinations the next instruction is checked against.
func (d *StallDetector) Pending() [2]insts.Reg {
	return d.pending
}

// Stalls returns the number of stalls detected.
func (d *StallDetector) Stalls() uint64 {
	return d.stalls
}

// Reset returns the detector to idle and clears the count.
func (d *StallDetector) Reset() {
	d.pending = insts.NoDests
	d.armed = false
	d.stalls = 0
}
