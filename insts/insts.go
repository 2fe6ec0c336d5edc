// Package insts provides the retired-instruction vocabulary consumed by the
// telemetry layer.
//
// The execution engine that produces these events is external. It decodes
// and executes an instruction, then reports it as an Event carrying only what
// the telemetry needs: the program counters, the branch target, a set of
// capability flags, and the register operands.
//
// Usage:
//
//	ev := insts.Event{
//		PC:     0x400100,
//		NextPC: 0x400200,
//		Target: 0x400200,
//		Flags:  insts.FlagConditional | insts.FlagControl,
//		Dest:   insts.NoDests,
//		Src:    [3]insts.Reg{insts.R(2), insts.R(3), insts.RegNone},
//	}
package insts

import "strings"

// DefaultWidth is the size in bytes of one encoded instruction.
const DefaultWidth = 8

// OpFlags is a set of capability tags attached to a retired instruction.
type OpFlags uint16

// Capability tags.
const (
	FlagConditional   OpFlags = 1 << iota // Conditional branch
	FlagUnconditional                     // Unconditional jump or call
	FlagFloatCompare                      // Floating-point compare
	FlagStore                             // Memory store
	FlagLoad                              // Memory load
	FlagImmediate                         // Has an immediate operand
	FlagMemory                            // Accesses memory
	FlagControl                           // Changes control flow

	FlagNone OpFlags = 0
)

var flagLetters = []struct {
	flag   OpFlags
	letter byte
}{
	{FlagConditional, 'C'},
	{FlagUnconditional, 'U'},
	{FlagFloatCompare, 'F'},
	{FlagStore, 'S'},
	{FlagLoad, 'L'},
	{FlagImmediate, 'I'},
	{FlagMemory, 'M'},
	{FlagControl, 'X'},
}

// Has reports whether every tag in other is present in f.
func (f OpFlags) Has(other OpFlags) bool {
	return f&other == other
}

// Any reports whether at least one tag in other is present in f.
func (f OpFlags) Any(other OpFlags) bool {
	return f&other != 0
}

// String renders the flags as comma separated letters, or "-" for none.
func (f OpFlags) String() string {
	if f == FlagNone {
		return "-"
	}

	letters := make([]string, 0, len(flagLetters))
	for _, fl := range flagLetters {
		if f.Has(fl.flag) {
			letters = append(letters, string(fl.letter))
		}
	}

	return strings.Join(letters, ",")
}

// FlagForLetter returns the tag written as letter in traces.
func FlagForLetter(letter byte) (OpFlags, bool) {
	for _, fl := range flagLetters {
		if fl.letter == letter {
			return fl.flag, true
		}
	}
	return FlagNone, false
}

// Event describes one retired instruction.
//
// The zero value of a register slot is r0, not RegNone. Build events with
// NewEvent, or set Dest and Src to NoDests and NoSrcs, so that unused slots
// never match a real register.
type Event struct {
	PC     uint64  // Address of the instruction
	NextPC uint64  // Address of the next instruction to retire
	Target uint64  // Branch target computed by the engine (branches only)
	Flags  OpFlags // Capability tags

	Dest [2]Reg // Destination registers, RegNone when unused
	Src  [3]Reg // Source registers, RegNone when unused

	// DestValues holds the destination register values after execution.
	DestValues [2]uint64
}

// NoDests is a destination pair with both slots unused.
var NoDests = [2]Reg{RegNone, RegNone}

// NoSrcs is a source triple with every slot unused.
var NoSrcs = [3]Reg{RegNone, RegNone, RegNone}

// NewEvent returns an event at pc with no flags and every register slot
// unused.
func NewEvent(pc, nextPC uint64) Event {
	return Event{
		PC:     pc,
		NextPC: nextPC,
		Dest:   NoDests,
		Src:    NoSrcs,
	}
}

// IsConditional reports whether the event is a conditional branch.
func (e Event) IsConditional() bool {
	return e.Flags.Has(FlagConditional)
}

// Taken reports whether control left the fall-through path.
func (e Event) Taken(width uint64) bool {
	return e.NextPC != e.PC+width
}
