package bpred

// MaxHistoryBits is the widest history register supported.
const MaxHistoryBits = 16

// HistoryRegister is a fixed-width shift register of recent branch outcomes.
// The newest outcome enters at bit 0.
type HistoryRegister struct {
	width uint
	mask  uint32
	value uint32
}

// NewHistoryRegister creates a cleared history register of the given width.
// Widths above MaxHistoryBits are clamped.
func NewHistoryRegister(width uint) *HistoryRegister {
	if width > MaxHistoryBits {
		width = MaxHistoryBits
	}

	return &HistoryRegister{
		width: width,
		mask:  uint32(1)<<width - 1,
	}
}

// Width returns the number of outcomes retained.
func (h *HistoryRegister) Width() uint {
	return h.width
}

// Value returns the current history bits.
func (h *HistoryRegister) Value() uint32 {
	return h.value
}

// Shift records one outcome.
func (h *HistoryRegister) Shift(taken bool) {
	h.value = (h.value << 1) & h.mask
	if taken {
		h.value |= 1 & h.mask
	}
}

// Reset clears the register.
func (h *HistoryRegister) Reset() {
	h.value = 0
}
