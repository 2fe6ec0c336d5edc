package trace_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bpsim/insts"
	"github.com/sarchlab/bpsim/trace"
)

type recordingSink struct {
	events []insts.Event
	failAt int
}

func (s *recordingSink) Submit(ev insts.Event) error {
	if s.failAt > 0 && len(s.events)+1 == s.failAt {
		return errors.New("sink full")
	}
	s.events = append(s.events, ev)
	return nil
}

var _ = Describe("Replayer", func() {
	var sink *recordingSink

	BeforeEach(func() {
		sink = &recordingSink{}
	})

	It("should deliver every event in order", func() {
		src := trace.LoadUse(0x1000, 0, 20)
		r := trace.NewReplayer(src, sink)

		n, err := r.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(20)))
		Expect(r.Delivered()).To(Equal(uint64(20)))

		Expect(sink.events).To(HaveLen(20))
		for i, ev := range sink.events {
			Expect(ev.PC).To(Equal(uint64(0x1000 + i*insts.DefaultWidth)))
		}
	})

	It("should handle an empty source", func() {
		r := trace.NewReplayer(trace.NewSliceSource(nil), sink)

		n, err := r.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())
		Expect(sink.events).To(BeEmpty())
	})

	It("should stop at the instruction limit", func() {
		r := trace.NewReplayer(trace.AlwaysTaken(0x2000, 0, 100), sink,
			trace.WithMaxInstructions(7))

		n, err := r.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(uint64(7)))
		Expect(sink.events).To(HaveLen(7))
	})

	It("should stop on a sink error", func() {
		sink.failAt = 4
		r := trace.NewReplayer(trace.AlwaysTaken(0x2000, 0, 10), sink)

		n, err := r.Run()
		Expect(err).To(MatchError(ContainSubstring("sink full")))
		Expect(n).To(Equal(uint64(3)))
	})

	It("should surface parse errors from the source", func() {
		input := "0x10 0x18 0x0 - - -\nnot a trace line\n"
		r := trace.NewReplayer(trace.NewReader(strings.NewReader(input)), sink)

		n, err := r.Run()
		var perr *trace.ParseError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Line).To(Equal(2))
		Expect(n).To(Equal(uint64(1)))
	})
})
