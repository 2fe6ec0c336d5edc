package benchmarks_test

import (
	"bytes"
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/bpsim/benchmarks"
	"github.com/sarchlab/bpsim/telemetry/bpred"
	"github.com/sarchlab/bpsim/trace"
)

func resultByName(results []benchmarks.BenchmarkResult, name string) benchmarks.BenchmarkResult {
	for _, r := range results {
		if r.Name == name {
			return r
		}
	}
	Fail("no result named " + name)
	return benchmarks.BenchmarkResult{}
}

var _ = Describe("Harness", func() {
	var (
		out     *bytes.Buffer
		harness *benchmarks.Harness
	)

	BeforeEach(func() {
		out = &bytes.Buffer{}
		cfg := benchmarks.DefaultConfig()
		cfg.Output = out
		harness = benchmarks.NewHarness(cfg)
	})

	Context("with every microbenchmark", func() {
		var results []benchmarks.BenchmarkResult

		BeforeEach(func() {
			harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())

			var err error
			results, err = harness.RunAll()
			Expect(err).NotTo(HaveOccurred())
		})

		It("should run them all", func() {
			Expect(results).To(HaveLen(len(benchmarks.GetMicrobenchmarks())))
			for _, r := range results {
				Expect(r.Instructions).NotTo(BeZero(), r.Name)
			}
		})

		It("should count the expected dependency stalls", func() {
			for _, b := range benchmarks.GetMicrobenchmarks() {
				if b.ExpectedStalls < 0 {
					continue
				}
				r := resultByName(results, b.Name)
				Expect(r.DependencyStalls).To(Equal(uint64(b.ExpectedStalls)), b.Name)
			}
		})

		It("should separate history predictors on the alternating pattern", func() {
			r := resultByName(results, "alternating")

			Expect(r.CondBranches).To(Equal(uint64(10000)))
			Expect(r.AccuracyPercent[bpred.VariantOneBit]).To(BeNumerically("<", 1))
			Expect(r.AccuracyPercent[bpred.VariantTwoBitGlobal4]).To(BeNumerically(">", 99))
			Expect(r.AccuracyPercent[bpred.VariantTwoBitGlobalN]).To(BeNumerically(">", 99))
		})

		It("should learn an always taken branch with every variant", func() {
			r := resultByName(results, "always_taken")
			for _, v := range bpred.Variants() {
				Expect(r.Mispredictions[v]).To(BeNumerically("<", 20), v.String())
			}
		})

		It("should print a text report", func() {
			harness.PrintResults(results)

			text := out.String()
			Expect(text).To(ContainSubstring("Benchmark: alternating"))
			Expect(text).To(ContainSubstring("Dependency Stalls: 1000"))
		})

		It("should print one CSV row per result", func() {
			harness.PrintCSV(results)

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(len(results) + 1))
			Expect(lines[0]).To(HavePrefix("name,instructions,cond_branches,accuracy_i"))
			Expect(lines[0]).To(HaveSuffix("dependency_stalls,bit_switches"))
		})

		It("should print a JSON report", func() {
			Expect(harness.PrintJSON(results)).To(Succeed())

			var report benchmarks.BenchmarkReport
			Expect(json.Unmarshal(out.Bytes(), &report)).To(Succeed())
			Expect(report.Metadata.Version).To(Equal(benchmarks.Version))
			Expect(report.Results).To(HaveLen(len(results)))
			Expect(report.Summary.TotalBenchmarks).To(Equal(len(results)))
		})
	})

	It("should lay workloads out for the configured instruction width", func() {
		cfg := benchmarks.DefaultConfig()
		cfg.Output = out
		cfg.Telemetry.InstructionWidth = 4
		harness = benchmarks.NewHarness(cfg)
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())

		results, err := harness.RunAll()
		Expect(err).NotTo(HaveOccurred())

		r := resultByName(results, "alternating")
		Expect(r.Mispredictions[bpred.VariantOneBit]).To(Equal(uint64(9999)))
		Expect(r.AccuracyPercent[bpred.VariantOneBit]).To(BeNumerically("<", 1))
		Expect(r.AccuracyPercent[bpred.VariantTwoBitGlobal4]).To(BeNumerically(">", 99))

		Expect(resultByName(results, "load_use_chain").DependencyStalls).To(Equal(uint64(1000)))
	})

	It("should honor the instruction limit", func() {
		cfg := benchmarks.DefaultConfig()
		cfg.Output = out
		cfg.Telemetry.MaxInstructions = 100
		harness = benchmarks.NewHarness(cfg)
		harness.AddBenchmark(benchmarks.Benchmark{
			Name:   "limited",
			Source: func(width uint64) trace.Source { return trace.AlwaysTaken(0x1000, width, 1000) },
		})

		results, err := harness.RunAll()
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Instructions).To(Equal(uint64(100)))
	})

	It("should report a broken source", func() {
		harness.AddBenchmark(benchmarks.Benchmark{
			Name: "broken",
			Source: func(uint64) trace.Source {
				return trace.NewReader(strings.NewReader("garbage\n"))
			},
		})

		_, err := harness.RunAll()
		Expect(err).To(MatchError(ContainSubstring("benchmark broken")))
	})
})

var _ = Describe("Summarize", func() {
	It("should pool branches across results", func() {
		results := []benchmarks.BenchmarkResult{
			{Instructions: 10, CondBranches: 10},
			{Instructions: 30, CondBranches: 30},
		}
		results[0].Mispredictions[bpred.VariantOneBit] = 10
		results[1].Mispredictions[bpred.VariantOneBit] = 10

		s := benchmarks.Summarize(results)
		Expect(s.TotalBenchmarks).To(Equal(2))
		Expect(s.TotalInstructions).To(Equal(uint64(40)))
		Expect(s.AccuracyPercent[bpred.VariantOneBit]).To(BeNumerically("~", 50, 1e-9))
		Expect(s.AccuracyPercent[bpred.VariantTwoBit]).To(BeNumerically("~", 100, 1e-9))
	})

	It("should leave accuracy at zero without branches", func() {
		s := benchmarks.Summarize(nil)
		Expect(s.TotalBenchmarks).To(BeZero())
		Expect(s.AccuracyPercent[bpred.VariantOneBit]).To(BeZero())
	})
})
