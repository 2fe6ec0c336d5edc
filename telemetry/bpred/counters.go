package bpred

// counterTable stores 2-bit saturating counters packed four per byte.
// States: 0=Strongly Not Taken, 1=Weakly Not Taken,
//
//	2=Weakly Taken, 3=Strongly Taken
type counterTable struct {
	cells []uint8
	size  uint64
}

func newCounterTable(size uint64) *counterTable {
	return &counterTable{
		cells: make([]uint8, (size+3)/4),
		size:  size,
	}
}

func (t *counterTable) get(i uint64) uint8 {
	shift := (i & 3) << 1
	return (t.cells[i>>2] >> shift) & 0x3
}

func (t *counterTable) set(i uint64, v uint8) {
	byteIdx := i >> 2
	shift := (i & 3) << 1
	mask := uint8(0x3 << shift)
	t.cells[byteIdx] = (t.cells[byteIdx] &^ mask) | ((v & 0x3) << shift)
}

// taken reports the prediction of counter i.
func (t *counterTable) taken(i uint64) bool {
	return t.get(i) >= 2
}

// train moves counter i one step toward the outcome, saturating at 0 and 3.
func (t *counterTable) train(i uint64, taken bool) {
	counter := t.get(i)
	if taken {
		if counter < 3 {
			t.set(i, counter+1)
		}
	} else {
		if counter > 0 {
			t.set(i, counter-1)
		}
	}
}

func (t *counterTable) reset() {
	clear(t.cells)
}
