// Package main provides the trace-driven branch predictor simulator CLI.
//
// Usage:
//
//	bpsim [options] <trace> [<trace> ...]
//
// Each trace is replayed through its own telemetry engine. With more than
// one trace the runs proceed in parallel and each writes its offset
// histogram to a subdirectory of -out named after the trace and its position
// on the command line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/pkg/profile"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sarchlab/bpsim/config"
	"github.com/sarchlab/bpsim/telemetry"
	"github.com/sarchlab/bpsim/trace"
)

var (
	configPath  = flag.String("config", "", "Path to telemetry configuration file (JSON or YAML)")
	maxInst     = flag.Uint64("max-inst", 0, "Stop after this many instructions (0 = unlimited)")
	historyBits = flag.Uint("history", 0, "Global history bits of variant v")
	tableBits   = flag.Uint("table-bits", 0, "Log2 of predictor table entries")
	outputDir   = flag.String("out", "", "Directory for the offset histogram (\"\" keeps the config value)")
	noHistogram = flag.Bool("no-histogram", false, "Do not write the offset histogram")
	jobs        = flag.Int("j", 4, "Traces replayed in parallel")
	jsonOutput  = flag.Bool("json", false, "Print statistics as JSON")
	verbose     = flag.Int("v", 0, "Log verbosity")
	cpuProfile  = flag.String("cpuprofile", "", "Write a CPU profile to this directory")
	memProfile  = flag.String("memprofile", "", "Write a memory profile to this directory")
)

// runResult is the outcome of one trace.
type runResult struct {
	Trace     string             `json:"trace"`
	Histogram string             `json:"histogram,omitempty"`
	Counters  map[string]uint64  `json:"counters"`
	Formulas  map[string]float64 `json:"formulas"`
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: bpsim [options] <trace> [<trace> ...]\n")
		fmt.Fprintf(os.Stderr, "\nA trace of \"-\" is read from stdin.\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		return 1
	}

	if *cpuProfile != "" && *memProfile != "" {
		fmt.Fprintf(os.Stderr, "Error: -cpuprofile and -memprofile are mutually exclusive\n")
		return 1
	}
	if *cpuProfile != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuProfile),
			profile.NoShutdownHook).Stop()
	}
	if *memProfile != "" {
		defer profile.Start(profile.MemProfile, profile.ProfilePath(*memProfile),
			profile.NoShutdownHook).Stop()
	}

	log := funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: *verbose})

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	paths := flag.Args()
	results := make([]runResult, len(paths))

	var g errgroup.Group
	g.SetLimit(max(*jobs, 1))

	for i, path := range paths {
		traceCfg := cfg.Clone()
		if len(paths) > 1 && traceCfg.OutputDir != "" {
			traceCfg.OutputDir = filepath.Join(traceCfg.OutputDir, traceName(path, i))
		}

		g.Go(func() error {
			res, err := runTrace(path, traceCfg, log.WithValues("trace", path))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			return 1
		}
		return 0
	}

	p := message.NewPrinter(language.English)
	for _, res := range results {
		printReport(p, res)
	}

	return 0
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-inst":
			cfg.MaxInstructions = *maxInst
		case "history":
			cfg.HistoryBits = *historyBits
		case "table-bits":
			cfg.TableBits = *tableBits
		case "out":
			cfg.OutputDir = *outputDir
		}
	})
	if *noHistogram {
		cfg.OutputDir = ""
	}

	return cfg, cfg.Validate()
}

// traceName derives an output subdirectory name from the position and path
// of a trace. The position keeps traces with the same base name apart.
func traceName(path string, i int) string {
	if path == "-" {
		return fmt.Sprintf("%d-stdin", i)
	}
	base := filepath.Base(path)
	return fmt.Sprintf("%d-%s", i, strings.TrimSuffix(base, filepath.Ext(base)))
}

func runTrace(path string, cfg *config.Config, log logr.Logger) (runResult, error) {
	var in io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return runResult{}, err
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	eng, err := telemetry.New(cfg, telemetry.WithLogger(log))
	if err != nil {
		return runResult{}, err
	}
	if err := eng.Start(); err != nil {
		return runResult{}, err
	}

	replayer := trace.NewReplayer(trace.NewReader(in), eng,
		trace.WithMaxInstructions(cfg.MaxInstructions),
		trace.WithReplayLogger(log))

	_, runErr := replayer.Run()

	// The histogram is written even when the replay failed part way.
	if err := eng.Finalize(); err != nil {
		return runResult{}, err
	}
	if runErr != nil {
		return runResult{}, runErr
	}

	stats := eng.Stats()
	return runResult{
		Trace:     path,
		Histogram: eng.HistogramPath(),
		Counters:  stats.Counters(),
		Formulas:  stats.Formulas(),
	}, nil
}

func printReport(p *message.Printer, res runResult) {
	p.Printf("\n")
	p.Printf("Trace: %s\n", res.Trace)
	if res.Histogram != "" {
		p.Printf("Offset histogram: %s\n", res.Histogram)
	}
	p.Printf("\n")

	for _, name := range telemetry.CounterNames() {
		p.Printf("%-28s %16d\n", name, res.Counters[name])
	}
	for _, name := range telemetry.FormulaNames() {
		p.Printf("%-28s %16.4f\n", name, res.Formulas[name])
	}
}
