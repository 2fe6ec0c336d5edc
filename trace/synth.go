package trace

import (
	"io"
	"math/rand"

	"github.com/sarchlab/bpsim/insts"
)

// SliceSource replays a fixed list of events.
type SliceSource struct {
	events []insts.Event
	pos    int
}

// NewSliceSource creates a source over events.
func NewSliceSource(events []insts.Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next returns the next event or io.EOF.
func (s *SliceSource) Next() (insts.Event, error) {
	if s.pos >= len(s.events) {
		return insts.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

// Reset rewinds to the first event.
func (s *SliceSource) Reset() {
	s.pos = 0
}

// Stream is a generated source. The i-th event is gen(i).
type Stream struct {
	gen   func(i uint64) insts.Event
	count uint64
	pos   uint64
}

// NewStream creates a source of count events produced by gen.
func NewStream(count uint64, gen func(i uint64) insts.Event) *Stream {
	return &Stream{gen: gen, count: count}
}

// Next returns the next event or io.EOF.
func (s *Stream) Next() (insts.Event, error) {
	if s.pos >= s.count {
		return insts.Event{}, io.EOF
	}
	ev := s.gen(s.pos)
	s.pos++
	return ev, nil
}

// Len returns the total number of events in the stream.
func (s *Stream) Len() uint64 {
	return s.count
}

// Reset rewinds the stream.
func (s *Stream) Reset() {
	s.pos = 0
}

// stride returns the fall-through distance for an instruction width. Zero
// selects insts.DefaultWidth.
func stride(width uint64) uint64 {
	if width == 0 {
		return insts.DefaultWidth
	}
	return width
}

// Branch builds a conditional branch at pc to target. NextPC is target when
// taken and pc+width otherwise.
func Branch(pc, width, target uint64, taken bool) insts.Event {
	next := pc + stride(width)
	if taken {
		next = target
	}

	return insts.Event{
		PC:     pc,
		NextPC: next,
		Target: target,
		Flags:  insts.FlagConditional | insts.FlagControl,
		Dest:   insts.NoDests,
		Src:    insts.NoSrcs,
	}
}

// ALU builds a register-writing instruction that writes value to dst.
func ALU(pc, width uint64, dst insts.Reg, value uint64, srcs ...insts.Reg) insts.Event {
	ev := insts.NewEvent(pc, pc+stride(width))
	ev.Dest[0] = dst
	ev.DestValues[0] = value
	copy(ev.Src[:], srcs)

	return ev
}

// Load builds a memory load of value into dst addressed through base.
func Load(pc, width uint64, dst, base insts.Reg, value uint64) insts.Event {
	ev := ALU(pc, width, dst, value, base)
	ev.Flags = insts.FlagLoad | insts.FlagMemory
	return ev
}

// Alternating generates a single branch that flips direction every time,
// starting not-taken.
func Alternating(pc, width, count uint64) *Stream {
	w := stride(width)
	target := pc - 4*w
	return NewStream(count, func(i uint64) insts.Event {
		return Branch(pc, w, target, i%2 == 1)
	})
}

// AlwaysTaken generates a single branch that is always taken.
func AlwaysTaken(pc, width, count uint64) *Stream {
	w := stride(width)
	target := pc - 4*w
	return NewStream(count, func(uint64) insts.Event {
		return Branch(pc, w, target, true)
	})
}

// Loop generates a loop back-edge branch taken trip-1 times and then not
// taken once, repeated for count branches.
func Loop(pc, width, trip, count uint64) *Stream {
	if trip == 0 {
		trip = 1
	}
	w := stride(width)
	target := pc - 8*w
	return NewStream(count, func(i uint64) insts.Event {
		return Branch(pc, w, target, i%trip != trip-1)
	})
}

// NestedLoop generates an inner loop of inner iterations inside an outer
// loop of outer iterations. The pattern repeats until count branches have
// been produced.
func NestedLoop(pc, width, inner, outer, count uint64) *Stream {
	if inner == 0 {
		inner = 1
	}
	if outer == 0 {
		outer = 1
	}

	w := stride(width)
	innerPC := pc
	outerPC := pc + 4*w
	period := (inner + 1) * outer

	return NewStream(count, func(i uint64) insts.Event {
		pos := i % period
		iter := pos / (inner + 1)
		slot := pos % (inner + 1)

		if slot < inner {
			return Branch(innerPC, w, innerPC-4*w, slot != inner-1)
		}
		return Branch(outerPC, w, outerPC-16*w, iter != outer-1)
	})
}

// Random generates branches over sites distinct addresses whose directions
// are drawn with the given taken probability. The same seed produces the
// same stream.
func Random(pc, width uint64, sites int, bias float64, seed int64, count uint64) *Stream {
	if sites <= 0 {
		sites = 1
	}
	w := stride(width)

	var rng *rand.Rand
	s := NewStream(count, nil)
	s.gen = func(i uint64) insts.Event {
		if i == 0 || rng == nil {
			rng = rand.New(rand.NewSource(seed))
		}
		site := uint64(rng.Intn(sites))
		taken := rng.Float64() < bias
		at := pc + site*w
		return Branch(at, w, at-2*w, taken)
	}

	return s
}

// Correlated generates two branches per step. The first follows a period
// pattern; the second repeats the first's outcome. Only predictors with
// history can learn the second.
func Correlated(pc, width, period, count uint64) *Stream {
	if period < 2 {
		period = 2
	}

	w := stride(width)
	first := pc
	second := pc + 2*w

	return NewStream(count, func(i uint64) insts.Event {
		step := i / 2
		taken := (step*7/period)%2 == 0
		if i%2 == 0 {
			return Branch(first, w, first+16*w, taken)
		}
		return Branch(second, w, second+16*w, taken)
	})
}

// LoadUse generates load-then-use pairs. Every load writes a register that
// the following instruction reads, so each pair causes one dependency stall.
// Written values count up so register toggles are deterministic.
func LoadUse(pc, width, count uint64) *Stream {
	w := stride(width)
	return NewStream(count, func(i uint64) insts.Event {
		at := pc + i*w
		dst := insts.R(int(2 + (i/2)%8))
		if i%2 == 0 {
			return Load(at, w, dst, insts.R(29), i)
		}
		return ALU(at, w, insts.R(1), i, dst, insts.R(1))
	})
}

// Mixed interleaves ALU writes, loads and loop branches. Every fourth
// instruction is a branch.
func Mixed(pc, width, trip, count uint64) *Stream {
	if trip == 0 {
		trip = 1
	}
	w := stride(width)
	branchPC := pc + 3*w

	return NewStream(count, func(i uint64) insts.Event {
		slot := i % 4
		at := pc + slot*w

		switch slot {
		case 0:
			return Load(at, w, insts.R(5), insts.R(29), i*3)
		case 1:
			return ALU(at, w, insts.R(6), i^0xff, insts.R(5))
		case 2:
			return ALU(at, w, insts.R(7), i<<4, insts.R(6), insts.R(7))
		default:
			iter := i / 4
			return Branch(branchPC, w, pc, iter%trip != trip-1)
		}
	})
}
