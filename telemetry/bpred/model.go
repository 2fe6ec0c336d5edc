// Package bpred provides the branch prediction schemes evaluated side by side
// by the telemetry engine.
//
// Every scheme implements Model. A Bank owns one instance of each variant and
// drives them all from the same stream of conditional branch outcomes, judging
// each prediction against the state that existed before the outcome was
// applied.
package bpred

// Variant identifies one of the prediction schemes.
type Variant int

// Prediction schemes, in reporting order.
const (
	VariantOneBit        Variant = iota // i: last outcome per entry
	VariantTwoBit                       // ii: 2-bit saturating counter
	VariantOneBitLocal                  // iii: 1-bit cells selected by 1 bit of local history
	VariantTwoBitGlobal4                // iv: 2-bit counters selected by 4 bits of global history
	VariantTwoBitGlobalN                // v: 2-bit counters selected by H bits of global history

	NumVariants = 5
)

// GlobalHistory4Bits is the history width of variant iv.
const GlobalHistory4Bits = 4

var variantNames = [NumVariants]string{"i", "ii", "iii", "iv", "v"}

// String returns the roman numeral used in statistic names.
func (v Variant) String() string {
	if v < 0 || int(v) >= NumVariants {
		return "unknown"
	}
	return variantNames[v]
}

// Variants lists all prediction schemes in reporting order.
func Variants() []Variant {
	return []Variant{
		VariantOneBit,
		VariantTwoBit,
		VariantOneBitLocal,
		VariantTwoBitGlobal4,
		VariantTwoBitGlobalN,
	}
}

// Model is one prediction scheme over a table indexed by branch address.
type Model interface {
	// Predict returns the predicted direction for the entry. It does not
	// change any state.
	Predict(index uint32) bool

	// Update applies the actual outcome to the entry and to any history
	// the scheme keeps.
	Update(index uint32, taken bool)

	// Reset returns all state to its initial value.
	Reset()
}

// OneBit remembers the last outcome seen at each entry.
type OneBit struct {
	bits []uint64
}

// NewOneBit creates a 1-bit predictor with the given number of entries.
func NewOneBit(entries uint32) *OneBit {
	return &OneBit{bits: make([]uint64, (uint64(entries)+63)/64)}
}

// Predict returns the last outcome recorded at index.
func (p *OneBit) Predict(index uint32) bool {
	return p.bits[index>>6]&(1<<(index&63)) != 0
}

// Update records the outcome at index.
func (p *OneBit) Update(index uint32, taken bool) {
	if taken {
		p.bits[index>>6] |= 1 << (index & 63)
	} else {
		p.bits[index>>6] &^= 1 << (index & 63)
	}
}

// Reset clears all entries to not taken.
func (p *OneBit) Reset() {
	clear(p.bits)
}

// TwoBit is a bimodal predictor of 2-bit saturating counters.
type TwoBit struct {
	pht *counterTable
}

// NewTwoBit creates a bimodal predictor with counters starting at 0.
func NewTwoBit(entries uint32) *TwoBit {
	return &TwoBit{pht: newCounterTable(uint64(entries))}
}

// Predict returns taken when the counter is 2 or 3.
func (p *TwoBit) Predict(index uint32) bool {
	return p.pht.taken(uint64(index))
}

// Update trains the counter at index.
func (p *TwoBit) Update(index uint32, taken bool) {
	p.pht.train(uint64(index), taken)
}

// Counter exposes the raw counter value at index.
func (p *TwoBit) Counter(index uint32) uint8 {
	return p.pht.get(uint64(index))
}

// Reset returns every counter to strongly not taken.
func (p *TwoBit) Reset() {
	p.pht.reset()
}

// Entry layout for OneBitLocal.
const (
	localCell0   = 1 << 0
	localCell1   = 1 << 1
	localHistory = 1 << 2
)

// OneBitLocal keeps two 1-bit cells per entry and selects between them with
// a one-bit history of the last outcome seen at that same entry.
type OneBitLocal struct {
	entries []uint8
}

// NewOneBitLocal creates a 1-bit predictor with one bit of local history.
func NewOneBitLocal(entries uint32) *OneBitLocal {
	return &OneBitLocal{entries: make([]uint8, entries)}
}

func (p *OneBitLocal) selectedCell(entry uint8) uint8 {
	if entry&localHistory != 0 {
		return localCell1
	}
	return localCell0
}

// Predict returns the cell selected by the entry's last outcome.
func (p *OneBitLocal) Predict(index uint32) bool {
	entry := p.entries[index]
	return entry&p.selectedCell(entry) != 0
}

// Update writes the outcome into the selected cell, then into the history.
func (p *OneBitLocal) Update(index uint32, taken bool) {
	entry := p.entries[index]
	cell := p.selectedCell(entry)

	if taken {
		entry |= cell | localHistory
	} else {
		entry &^= cell | localHistory
	}

	p.entries[index] = entry
}

// Reset clears all cells and histories.
func (p *OneBitLocal) Reset() {
	clear(p.entries)
}

// TwoBitGlobal keeps 2^H counters per entry and selects one with an H-bit
// global history register shared by all entries.
type TwoBitGlobal struct {
	pht     *counterTable
	history *HistoryRegister
}

// NewTwoBitGlobal creates a global-history predictor.
func NewTwoBitGlobal(entries uint32, historyBits uint) *TwoBitGlobal {
	history := NewHistoryRegister(historyBits)
	states := uint64(1) << history.Width()

	return &TwoBitGlobal{
		pht:     newCounterTable(uint64(entries) * states),
		history: history,
	}
}

func (p *TwoBitGlobal) cell(index uint32) uint64 {
	return uint64(index)<<p.history.Width() | uint64(p.history.Value())
}

// Predict returns taken when the selected counter is 2 or 3.
func (p *TwoBitGlobal) Predict(index uint32) bool {
	return p.pht.taken(p.cell(index))
}

// Update trains the selected counter, then shifts the outcome into the
// global history.
func (p *TwoBitGlobal) Update(index uint32, taken bool) {
	p.pht.train(p.cell(index), taken)
	p.history.Shift(taken)
}

// History returns the global history register.
func (p *TwoBitGlobal) History() *HistoryRegister {
	return p.history
}

// Reset clears all counters and the history.
func (p *TwoBitGlobal) Reset() {
	p.pht.reset()
	p.history.Reset()
}
