// Package trace reads, writes, generates and replays streams of retired
// instructions.
//
// A trace file holds one event per line:
//
//	pc next_pc target flags dests srcs [values]
//
// for example
//
//	0x400100 0x400108 0x400200 C,X -,- r2,r3,- 0x0,0x0
//
// Flags are comma separated letters (C conditional, U unconditional,
// F float compare, S store, L load, I immediate, M memory, X control) or
// "-". Registers are r0-r31, f0-f31, hi, lo, fcc, tmp or "-". Blank lines and
// lines starting with '#' are ignored.
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sarchlab/bpsim/insts"
)

// Source produces retired instructions in program order. Next returns
// io.EOF when the stream ends.
type Source interface {
	Next() (insts.Event, error)
}

// ParseError reports a malformed trace line.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("trace line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader decodes a text trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &Reader{scanner: scanner}
}

// Next returns the next event in the trace.
func (r *Reader) Next() (insts.Event, error) {
	for r.scanner.Scan() {
		r.line++

		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		ev, err := ParseLine(text)
		if err != nil {
			return insts.Event{}, &ParseError{Line: r.line, Err: err}
		}
		return ev, nil
	}

	if err := r.scanner.Err(); err != nil {
		return insts.Event{}, fmt.Errorf("failed to read trace: %w", err)
	}

	return insts.Event{}, io.EOF
}

// ReadAll decodes every remaining event.
func (r *Reader) ReadAll() ([]insts.Event, error) {
	var events []insts.Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// ParseLine decodes one trace line.
func ParseLine(line string) (insts.Event, error) {
	fields := strings.Fields(line)
	if len(fields) < 6 || len(fields) > 7 {
		return insts.Event{}, fmt.Errorf("expected 6 or 7 fields, got %d", len(fields))
	}

	var (
		ev  insts.Event
		err error
	)

	if ev.PC, err = parseAddr(fields[0]); err != nil {
		return ev, fmt.Errorf("pc: %w", err)
	}
	if ev.NextPC, err = parseAddr(fields[1]); err != nil {
		return ev, fmt.Errorf("next_pc: %w", err)
	}
	if ev.NextPC == ev.PC {
		return ev, fmt.Errorf("next_pc equals pc 0x%x", ev.PC)
	}
	if ev.Target, err = parseAddr(fields[2]); err != nil {
		return ev, fmt.Errorf("target: %w", err)
	}
	if ev.Flags, err = parseFlags(fields[3]); err != nil {
		return ev, err
	}

	if err := parseRegs(fields[4], ev.Dest[:]); err != nil {
		return ev, fmt.Errorf("dests: %w", err)
	}
	if err := parseRegs(fields[5], ev.Src[:]); err != nil {
		return ev, fmt.Errorf("srcs: %w", err)
	}

	if len(fields) == 7 {
		if err := parseValues(fields[6], ev.DestValues[:]); err != nil {
			return ev, fmt.Errorf("values: %w", err)
		}
	}

	return ev, nil
}

func parseAddr(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func parseFlags(s string) (insts.OpFlags, error) {
	if s == "-" {
		return insts.FlagNone, nil
	}

	var flags insts.OpFlags
	for _, part := range strings.Split(s, ",") {
		if len(part) != 1 {
			return flags, fmt.Errorf("bad flag %q", part)
		}

		f, ok := insts.FlagForLetter(part[0])
		if !ok {
			return flags, fmt.Errorf("unknown flag %q", part)
		}
		flags |= f
	}

	return flags, nil
}

// parseRegs fills every slot of out; missing trailing slots are unused.
func parseRegs(s string, out []insts.Reg) error {
	parts := strings.Split(s, ",")
	if len(parts) > len(out) {
		return fmt.Errorf("at most %d registers, got %d", len(out), len(parts))
	}

	for i := range out {
		out[i] = insts.RegNone
		if i >= len(parts) {
			continue
		}

		r, err := insts.ParseReg(parts[i])
		if err != nil {
			return err
		}
		out[i] = r
	}

	return nil
}

func parseValues(s string, out []uint64) error {
	parts := strings.Split(s, ",")
	if len(parts) > len(out) {
		return fmt.Errorf("at most %d values, got %d", len(out), len(parts))
	}

	for i, p := range parts {
		v, err := strconv.ParseUint(p, 0, 64)
		if err != nil {
			return err
		}
		out[i] = v
	}

	return nil
}
