package benchmarks

import "github.com/sarchlab/bpsim/trace"

const basePC = 0x400000

// GetMicrobenchmarks returns the standard set of synthetic workloads. Each
// one targets a specific predictor or hazard behavior.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		alwaysTaken(),
		alternating(),
		shortLoop(),
		longLoop(),
		nestedLoops(),
		randomBranches(),
		correlatedBranches(),
		loadUseChain(),
		mixedWorkload(),
	}
}

// GetCoreBenchmarks returns a minimal set of workloads for quick checks.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		alternating(),
		shortLoop(),
		loadUseChain(),
	}
}

// 1. Always Taken - every variant learns it after warm-up
func alwaysTaken() Benchmark {
	return Benchmark{
		Name:           "always_taken",
		Description:    "One branch, always taken - warm-up cost only",
		Source:         func(width uint64) trace.Source { return trace.AlwaysTaken(basePC, width, 10000) },
		ExpectedStalls: 0,
	}
}

// 2. Alternating - defeats the 1-bit predictor, history predictors learn it
func alternating() Benchmark {
	return Benchmark{
		Name:           "alternating",
		Description:    "One branch flipping every execution - needs history",
		Source:         func(width uint64) trace.Source { return trace.Alternating(basePC, width, 10000) },
		ExpectedStalls: 0,
	}
}

// 3. Short Loop - exit every 4th iteration, fits in 4 bits of history
func shortLoop() Benchmark {
	return Benchmark{
		Name:           "loop_4",
		Description:    "Loop back-edge with trip count 4",
		Source:         func(width uint64) trace.Source { return trace.Loop(basePC, width, 4, 10000) },
		ExpectedStalls: 0,
	}
}

// 4. Long Loop - exit every 100th iteration, counters dominate
func longLoop() Benchmark {
	return Benchmark{
		Name:           "loop_100",
		Description:    "Loop back-edge with trip count 100",
		Source:         func(width uint64) trace.Source { return trace.Loop(basePC, width, 100, 10000) },
		ExpectedStalls: 0,
	}
}

// 5. Nested Loops - two back-edges sharing the global history
func nestedLoops() Benchmark {
	return Benchmark{
		Name:           "nested_loops",
		Description:    "Inner loop of 3 inside outer loop of 5",
		Source:         func(width uint64) trace.Source { return trace.NestedLoop(basePC, width, 3, 5, 10000) },
		ExpectedStalls: 0,
	}
}

// 6. Random - biased coin flips over 64 sites, no variant can learn it
func randomBranches() Benchmark {
	return Benchmark{
		Name:           "random_70",
		Description:    "64 branch sites taken with probability 0.7",
		Source:         func(width uint64) trace.Source { return trace.Random(basePC, width, 64, 0.7, 1, 10000) },
		ExpectedStalls: 0,
	}
}

// 7. Correlated - second branch repeats the first
func correlatedBranches() Benchmark {
	return Benchmark{
		Name:           "correlated",
		Description:    "Branch pairs where the second follows the first",
		Source:         func(width uint64) trace.Source { return trace.Correlated(basePC, width, 8, 10000) },
		ExpectedStalls: 0,
	}
}

// 8. Load-Use Chain - every load feeds the next instruction
func loadUseChain() Benchmark {
	return Benchmark{
		Name:           "load_use_chain",
		Description:    "1000 load/use pairs - one dependency stall each",
		Source:         func(width uint64) trace.Source { return trace.LoadUse(basePC, width, 2000) },
		ExpectedStalls: 1000,
	}
}

// 9. Mixed - loads, ALU writes and a loop branch
func mixedWorkload() Benchmark {
	return Benchmark{
		Name:           "mixed",
		Description:    "Load, two ALU ops and a loop branch of trip count 8",
		Source:         func(width uint64) trace.Source { return trace.Mixed(basePC, width, 8, 8000) },
		ExpectedStalls: 2000,
	}
}
