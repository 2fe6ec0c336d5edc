// Package benchmarks runs synthetic branch workloads through the telemetry
// engine and compares the five predictor variants.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/bpsim/config"
	"github.com/sarchlab/bpsim/telemetry"
	"github.com/sarchlab/bpsim/telemetry/bpred"
	"github.com/sarchlab/bpsim/trace"
)

// Version is reported in JSON output.
const Version = "0.3.0"

// BenchmarkResult holds the telemetry of a single workload run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the workload exercises
	Description string `json:"description"`

	// Instructions is the number of events delivered to the engine
	Instructions uint64 `json:"instructions"`

	// CondBranches is the number of conditional branches
	CondBranches uint64 `json:"cond_branches"`

	// Mispredictions per variant, indexed i..v
	Mispredictions [bpred.NumVariants]uint64 `json:"mispredictions"`

	// AccuracyPercent per variant, indexed i..v
	AccuracyPercent [bpred.NumVariants]float64 `json:"accuracy_percent"`

	// DependencyStalls is the number of load/control-to-use stalls
	DependencyStalls uint64 `json:"dependency_stalls"`

	// BitSwitches is the total number of toggled register bits
	BitSwitches uint64 `json:"bit_switches"`

	// AvgBitSwitches is toggled bits per compared register write
	AvgBitSwitches float64 `json:"avg_bit_switches"`

	// Histogram holds the branch offset bucket counts
	Histogram []uint64 `json:"histogram,omitempty"`

	// WallTime is the time taken to replay the workload
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single synthetic workload.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the workload exercises
	Description string

	// Source builds a fresh event stream for each run, laid out for the
	// given instruction width in bytes
	Source func(width uint64) trace.Source

	// ExpectedStalls is the expected dependency stall count, or -1 if the
	// workload makes no claim
	ExpectedStalls int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Telemetry is the engine configuration shared by every run. Its
	// OutputDir is ignored; benchmark runs never write histogram files.
	Telemetry *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives per-run progress messages
	Logger logr.Logger

	// Verbose adds the offset histogram to the text report
	Verbose bool
}

// DefaultConfig returns a default harness configuration. Tables are kept
// small so every workload runs in milliseconds.
func DefaultConfig() HarnessConfig {
	cfg := config.Default()
	cfg.TableBits = 12
	cfg.HistoryBits = 8

	return HarnessConfig{
		Telemetry: cfg,
		Output:    os.Stdout,
		Logger:    logr.Discard(),
	}
}

// Harness runs workloads and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Telemetry == nil {
		config.Telemetry = DefaultConfig().Telemetry
	}
	if config.Logger.GetSink() == nil {
		config.Logger = logr.Discard()
	}

	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks. It stops at the first failing run.
func (h *Harness) RunAll() ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result, err := h.runBenchmark(bench)
		if err != nil {
			return results, fmt.Errorf("benchmark %s: %w", bench.Name, err)
		}
		results = append(results, result)
	}

	return results, nil
}

func (h *Harness) runBenchmark(bench Benchmark) (BenchmarkResult, error) {
	cfg := h.config.Telemetry.Clone()
	cfg.OutputDir = ""

	eng, err := telemetry.New(cfg, telemetry.WithLogger(h.config.Logger))
	if err != nil {
		return BenchmarkResult{}, err
	}
	if err := eng.Start(); err != nil {
		return BenchmarkResult{}, err
	}

	replayer := trace.NewReplayer(bench.Source(cfg.InstructionWidth), eng,
		trace.WithMaxInstructions(cfg.MaxInstructions),
		trace.WithReplayLogger(h.config.Logger))

	start := time.Now()
	if _, err := replayer.Run(); err != nil {
		return BenchmarkResult{}, err
	}
	wallTime := time.Since(start)

	if err := eng.Finalize(); err != nil {
		return BenchmarkResult{}, err
	}

	stats := eng.Stats()
	result := BenchmarkResult{
		Name:             bench.Name,
		Description:      bench.Description,
		Instructions:     stats.Instructions,
		CondBranches:     stats.CondBranches,
		Mispredictions:   stats.Predictor.Mispredictions,
		DependencyStalls: stats.DependencyStalls,
		BitSwitches:      stats.BitSwitches,
		AvgBitSwitches:   stats.AverageBitSwitches(),
		Histogram:        stats.Histogram,
		WallTime:         wallTime,
	}
	for _, v := range bpred.Variants() {
		result.AccuracyPercent[v] = stats.Accuracy(v) * 100
	}

	h.config.Logger.V(1).Info("benchmark done",
		"name", bench.Name,
		"instructions", result.Instructions,
		"wallTime", wallTime)

	return result, nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	out := h.config.Output

	_, _ = fmt.Fprintln(out, "=== Branch Predictor Benchmark Results ===")
	_, _ = fmt.Fprintln(out, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(out, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(out, "  Instructions:      %d\n", r.Instructions)
		_, _ = fmt.Fprintf(out, "  Cond Branches:     %d\n", r.CondBranches)
		_, _ = fmt.Fprintf(out, "  Dependency Stalls: %d\n", r.DependencyStalls)
		_, _ = fmt.Fprintf(out, "  Bit Switches:      %d (%.2f avg)\n", r.BitSwitches, r.AvgBitSwitches)

		if r.CondBranches > 0 {
			_, _ = fmt.Fprintln(out, "  --- Predictors ---")
			for _, v := range bpred.Variants() {
				_, _ = fmt.Fprintf(out, "  %-4s mispredicts: %-8d accuracy: %6.2f%%\n",
					v, r.Mispredictions[v], r.AccuracyPercent[v])
			}
		}

		if h.config.Verbose && len(r.Histogram) > 0 {
			_, _ = fmt.Fprintln(out, "  --- Offset Histogram ---")
			for bucket, count := range r.Histogram {
				if count > 0 {
					_, _ = fmt.Fprintf(out, "  %2d bits: %d\n", bucket, count)
				}
			}
		}

		_, _ = fmt.Fprintf(out, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(out, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	out := h.config.Output

	_, _ = fmt.Fprint(out, "name,instructions,cond_branches")
	for _, v := range bpred.Variants() {
		_, _ = fmt.Fprintf(out, ",accuracy_%s", v)
	}
	_, _ = fmt.Fprintln(out, ",dependency_stalls,bit_switches")

	for _, r := range results {
		_, _ = fmt.Fprintf(out, "%s,%d,%d", r.Name, r.Instructions, r.CondBranches)
		for _, v := range bpred.Variants() {
			_, _ = fmt.Fprintf(out, ",%.2f", r.AccuracyPercent[v])
		}
		_, _ = fmt.Fprintf(out, ",%d,%d\n", r.DependencyStalls, r.BitSwitches)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config is the telemetry configuration used for every run
	Config *config.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// TotalInstructions is the sum of all delivered instructions
	TotalInstructions uint64 `json:"total_instructions"`

	// TotalCondBranches is the sum of all conditional branches
	TotalCondBranches uint64 `json:"total_cond_branches"`

	// AccuracyPercent per variant over all branches of all benchmarks
	AccuracyPercent [bpred.NumVariants]float64 `json:"accuracy_percent"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results across benchmarks.
func Summarize(results []BenchmarkResult) ReportSummary {
	var (
		summary        ReportSummary
		mispredictions [bpred.NumVariants]uint64
	)

	summary.TotalBenchmarks = len(results)
	for _, r := range results {
		summary.TotalInstructions += r.Instructions
		summary.TotalCondBranches += r.CondBranches
		summary.TotalWallTime += r.WallTime
		for v := range mispredictions {
			mispredictions[v] += r.Mispredictions[v]
		}
	}

	if summary.TotalCondBranches > 0 {
		for v, m := range mispredictions {
			summary.AccuracyPercent[v] = 100 * (1 - float64(m)/float64(summary.TotalCondBranches))
		}
	}

	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config:    h.config.Telemetry,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
