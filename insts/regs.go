package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// Reg is a register identifier in the dependence namespace used by events.
//
// Layout: 0-31 integer registers (0 is hard-wired to zero), 32-63 floating
// point registers, then the miscellaneous registers.
type Reg uint8

// Register namespace boundaries.
const (
	NumIntRegs   = 32
	NumFloatRegs = 32

	RegZero  Reg = 0
	RegFloat Reg = NumIntRegs // First floating point register

	RegHI  Reg = NumIntRegs + NumFloatRegs
	RegLO  Reg = RegHI + 1
	RegFCC Reg = RegHI + 2
	RegTMP Reg = RegHI + 3

	// RegNone marks an unused operand slot.
	RegNone Reg = 0xFF
)

var miscNames = map[Reg]string{
	RegHI:  "hi",
	RegLO:  "lo",
	RegFCC: "fcc",
	RegTMP: "tmp",
}

// R returns integer register n.
func R(n int) Reg {
	return Reg(n)
}

// F returns floating point register n.
func F(n int) Reg {
	return RegFloat + Reg(n)
}

// IsGPR reports whether r is a general-purpose register that can hold a
// written value. The zero register and RegNone are excluded.
func (r Reg) IsGPR() bool {
	return r >= 1 && r < NumIntRegs
}

// Valid reports whether r names a register rather than an unused slot.
func (r Reg) Valid() bool {
	return r != RegNone && r <= RegTMP
}

// String returns the trace spelling of r.
func (r Reg) String() string {
	switch {
	case r == RegNone:
		return "-"
	case r < RegFloat:
		return "r" + strconv.Itoa(int(r))
	case r < RegHI:
		return "f" + strconv.Itoa(int(r-RegFloat))
	}

	if name, ok := miscNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reg%d", uint8(r))
}

// ParseReg parses the trace spelling of a register.
func ParseReg(s string) (Reg, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "-" || s == "" {
		return RegNone, nil
	}

	for r, name := range miscNames {
		if s == name {
			return r, nil
		}
	}

	var base Reg
	switch s[0] {
	case 'r':
		base = RegZero
	case 'f':
		base = RegFloat
	default:
		return RegNone, fmt.Errorf("unknown register %q", s)
	}

	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 || n >= NumIntRegs {
		return RegNone, fmt.Errorf("bad register number in %q", s)
	}

	return base + Reg(n), nil
}
