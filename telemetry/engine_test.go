package telemetry_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bpsim/config"
	"github.com/sarchlab/bpsim/insts"
	"github.com/sarchlab/bpsim/telemetry"
	"github.com/sarchlab/bpsim/telemetry/bpred"
)

const width = insts.DefaultWidth

// branch builds a conditional branch at pc whose target lies offset
// instructions behind it.
func branch(pc uint64, taken bool, offset int64) insts.Event {
	target := uint64(int64(pc) - offset*width)
	next := pc + width
	if taken {
		next = target
	}

	return insts.Event{
		PC:     pc,
		NextPC: next,
		Target: target,
		Flags:  insts.FlagConditional | insts.FlagControl,
		Dest:   insts.NoDests,
		Src:    [3]insts.Reg{insts.R(2), insts.R(3), insts.RegNone},
	}
}

func alu(pc uint64, dst insts.Reg, value uint64, srcs ...insts.Reg) insts.Event {
	ev := insts.Event{
		PC:         pc,
		NextPC:     pc + width,
		Dest:       [2]insts.Reg{dst, insts.RegNone},
		Src:        insts.NoSrcs,
		DestValues: [2]uint64{value, 0},
	}
	copy(ev.Src[:], srcs)
	return ev
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 6, 10, 42, 0, 0, time.Local)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func smallConfig() *config.Config {
	c := config.Default()
	c.TableBits = 8
	c.OutputDir = ""
	return c
}

var _ = Describe("Engine", func() {
	var eng *telemetry.Engine

	BeforeEach(func() {
		var err error
		eng, err = telemetry.New(smallConfig(),
			telemetry.WithClock(fixedClock()),
			telemetry.WithLogger(GinkgoLogr))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject invalid configs", func() {
		c := config.Default()
		c.InstructionWidth = 3
		_, err := telemetry.New(c)
		Expect(err).To(MatchError(ContainSubstring("invalid telemetry config")))
	})

	Describe("lifecycle", func() {
		It("should start uninitialized", func() {
			Expect(eng.State()).To(Equal(telemetry.StateUninitialized))
			Expect(eng.Submit(alu(0x100, insts.R(1), 1))).To(MatchError(telemetry.ErrNotRunning))
		})

		It("should accept events while running", func() {
			Expect(eng.Start()).To(Succeed())
			Expect(eng.State()).To(Equal(telemetry.StateRunning))
			Expect(eng.Submit(alu(0x100, insts.R(1), 1))).To(Succeed())
			Expect(eng.Instructions()).To(Equal(uint64(1)))
		})

		It("should treat a second Start as a no-op", func() {
			Expect(eng.Start()).To(Succeed())
			Expect(eng.Submit(branch(0x100, true, 4))).To(Succeed())
			Expect(eng.Start()).To(Succeed())
			Expect(eng.Stats().CondBranches).To(Equal(uint64(1)))
		})

		It("should refuse events after Finalize", func() {
			Expect(eng.Start()).To(Succeed())
			Expect(eng.Finalize()).To(Succeed())

			Expect(eng.State()).To(Equal(telemetry.StateFinalized))
			Expect(eng.Submit(alu(0x100, insts.R(1), 1))).To(MatchError(telemetry.ErrFinalized))
			Expect(eng.Finalize()).To(MatchError(telemetry.ErrFinalized))
			Expect(eng.Start()).To(MatchError(telemetry.ErrFinalized))
		})

		It("should finalize an engine that never started", func() {
			Expect(eng.Finalize()).To(Succeed())
			Expect(eng.Stats().Instructions).To(BeZero())
		})

		It("should name its states", func() {
			Expect(telemetry.StateRunning.String()).To(Equal("running"))
		})
	})

	Describe("dispatch", func() {
		BeforeEach(func() {
			Expect(eng.Start()).To(Succeed())
		})

		It("should count every capability tag", func() {
			events := []insts.Event{
				branch(0x100, false, 2),
				{PC: 0x108, NextPC: 0x200, Flags: insts.FlagUnconditional | insts.FlagControl, Dest: insts.NoDests, Src: insts.NoSrcs},
				{PC: 0x200, NextPC: 0x208, Flags: insts.FlagFloatCompare, Dest: insts.NoDests, Src: insts.NoSrcs},
				{PC: 0x208, NextPC: 0x210, Flags: insts.FlagStore | insts.FlagMemory, Dest: insts.NoDests, Src: insts.NoSrcs},
				{PC: 0x210, NextPC: 0x218, Flags: insts.FlagLoad | insts.FlagMemory | insts.FlagImmediate, Dest: insts.NoDests, Src: insts.NoSrcs},
			}
			for _, ev := range events {
				Expect(eng.Submit(ev)).To(Succeed())
			}

			s := eng.Stats()
			Expect(s.Instructions).To(Equal(uint64(5)))
			Expect(s.TotalCycles).To(Equal(uint64(5)))
			Expect(s.Counters()).To(HaveKeyWithValue(telemetry.StatTotalCycles, uint64(5)))
			Expect(s.CondBranches).To(Equal(uint64(1)))
			Expect(s.UncondBranches).To(Equal(uint64(1)))
			Expect(s.FloatCompares).To(Equal(uint64(1)))
			Expect(s.Stores).To(Equal(uint64(1)))
			Expect(s.Loads).To(Equal(uint64(1)))
			Expect(s.Immediates).To(Equal(uint64(1)))
			Expect(s.MemRefs).To(Equal(uint64(2)))
		})

		It("should only feed conditional branches to the predictors and histogram", func() {
			Expect(eng.Submit(alu(0x100, insts.R(1), 1))).To(Succeed())
			Expect(eng.Submit(branch(0x108, true, 5))).To(Succeed())

			s := eng.Stats()
			Expect(s.Predictor.Branches).To(Equal(uint64(1)))
			Expect(s.Histogram[4]).To(Equal(uint64(1)))
		})

		It("should track register toggles across all instructions", func() {
			Expect(eng.Submit(alu(0x100, insts.R(4), 0b1010))).To(Succeed())
			Expect(eng.Submit(alu(0x108, insts.R(4), 0b0110))).To(Succeed())

			s := eng.Stats()
			Expect(s.BitSwitches).To(Equal(uint64(2)))
			Expect(s.RegisterOps).To(Equal(uint64(1)))
			Expect(s.AverageBitSwitches()).To(BeNumerically("~", 2.0, 1e-9))
		})

		It("should count a load-use stall", func() {
			ld := alu(0x100, insts.R(5), 7, insts.R(29))
			ld.Flags = insts.FlagLoad | insts.FlagMemory

			Expect(eng.Submit(ld)).To(Succeed())
			Expect(eng.Submit(alu(0x108, insts.R(6), 8, insts.R(5)))).To(Succeed())
			Expect(eng.Stats().DependencyStalls).To(Equal(uint64(1)))
		})

		It("should not count a use two instructions after the load", func() {
			ld := alu(0x100, insts.R(5), 7, insts.R(29))
			ld.Flags = insts.FlagLoad | insts.FlagMemory

			Expect(eng.Submit(ld)).To(Succeed())
			Expect(eng.Submit(alu(0x108, insts.R(6), 8, insts.R(9)))).To(Succeed())
			Expect(eng.Submit(alu(0x110, insts.R(7), 8, insts.R(5)))).To(Succeed())
			Expect(eng.Stats().DependencyStalls).To(BeZero())
		})
	})

	Describe("alternating branch", func() {
		It("should separate the variants by how well they follow the pattern", func() {
			Expect(eng.Start()).To(Succeed())
			for i := 0; i < 1000; i++ {
				Expect(eng.Submit(branch(0x4000, i%2 == 1, 3))).To(Succeed())
			}
			Expect(eng.Finalize()).To(Succeed())

			s := eng.Stats()
			Expect(s.CondBranches).To(Equal(uint64(1000)))
			Expect(s.Accuracy(bpred.VariantOneBit)).To(BeNumerically("<", 0.01))
			Expect(s.Accuracy(bpred.VariantTwoBit)).To(BeNumerically("~", 0.5, 0.01))
			Expect(s.Accuracy(bpred.VariantTwoBitGlobal4)).To(BeNumerically(">", 0.99))
			Expect(s.Accuracy(bpred.VariantTwoBitGlobal4)).To(BeNumerically(">", s.Accuracy(bpred.VariantTwoBit)))
			Expect(s.CondBranchFrequency()).To(Equal(1.0))
		})
	})

	Describe("determinism", func() {
		It("should produce identical counters for identical streams", func() {
			run := func() map[string]uint64 {
				e, err := telemetry.New(smallConfig(), telemetry.WithClock(fixedClock()))
				Expect(err).NotTo(HaveOccurred())
				Expect(e.Start()).To(Succeed())

				pc := uint64(0x1000)
				for i := 0; i < 500; i++ {
					Expect(e.Submit(alu(pc, insts.R(i%8+1), uint64(i*i), insts.R(i%5)))).To(Succeed())
					Expect(e.Submit(branch(pc+width, i%3 == 0, int64(i%7)-7))).To(Succeed())
					pc += 0x40
				}
				Expect(e.Finalize()).To(Succeed())
				return e.Stats().Counters()
			}

			Expect(run()).To(Equal(run()))
		})
	})

	Describe("histogram artifact", func() {
		It("should be written on Finalize", func() {
			c := smallConfig()
			c.OutputDir = GinkgoT().TempDir()

			e, err := telemetry.New(c, telemetry.WithClock(fixedClock()))
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Start()).To(Succeed())
			Expect(e.Submit(branch(0x100, true, 5))).To(Succeed())
			Expect(e.Finalize()).To(Succeed())

			Expect(e.HistogramPath()).To(Equal(filepath.Join(c.OutputDir, "out10-42.csv")))
			data, err := os.ReadFile(e.HistogramPath())
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(HavePrefix("Bits, Offset\n0, 0\n"))
			Expect(string(data)).To(ContainSubstring("\n4, 1\n"))
		})

		It("should be skipped without an output directory", func() {
			Expect(eng.Start()).To(Succeed())
			Expect(eng.Finalize()).To(Succeed())
			Expect(eng.HistogramPath()).To(BeEmpty())
		})
	})

	It("should measure elapsed time between Start and Finalize", func() {
		Expect(eng.Start()).To(Succeed())
		Expect(eng.Submit(alu(0x100, insts.R(1), 1))).To(Succeed())
		Expect(eng.Finalize()).To(Succeed())

		s := eng.Stats()
		Expect(s.Elapsed).To(Equal(time.Second))
		Expect(s.InstRate()).To(BeNumerically("~", 1.0, 1e-9))
		Expect(eng.Stats()).To(Equal(s))
	})
})
