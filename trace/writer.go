package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/bpsim/insts"
)

// Writer encodes events in the text trace format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write encodes one event.
func (w *Writer) Write(ev insts.Event) error {
	_, err := fmt.Fprintln(w.w, FormatLine(ev))
	return err
}

// Copy writes every event from src and returns how many were written.
func (w *Writer) Copy(src Source) (uint64, error) {
	var n uint64
	for {
		ev, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		if err := w.Write(ev); err != nil {
			return n, err
		}
		n++
	}
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// FormatLine renders one event as a trace line.
func FormatLine(ev insts.Event) string {
	return fmt.Sprintf("0x%x 0x%x 0x%x %s %s %s 0x%x,0x%x",
		ev.PC, ev.NextPC, ev.Target, ev.Flags,
		joinRegs(ev.Dest[:]), joinRegs(ev.Src[:]),
		ev.DestValues[0], ev.DestValues[1])
}

func joinRegs(regs []insts.Reg) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
