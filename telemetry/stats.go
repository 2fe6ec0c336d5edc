package telemetry

import (
	"time"

	"github.com/sarchlab/bpsim/telemetry/bpred"
)

// Counter names reported by Stats.Counters.
const (
	StatInsn             = "sim_num_insn"
	StatTotalCycles      = "sim_num_total_cycles"
	StatRefs             = "sim_num_refs"
	StatCondBranches     = "sim_num_cond_branches"
	StatUncondBranches   = "sim_num_uncond_branches"
	StatFloatCompares    = "sim_num_fcomp_branches"
	StatStores           = "sim_num_fstore_branches"
	StatLoads            = "sim_num_fload_branches"
	StatImmediates       = "sim_num_fimm_branches"
	StatBitSwitches      = "sim_num_total_bit_change"
	StatRegisterOps      = "sim_num_register_change"
	StatDependencyStalls = "sim_num_load_stalls"
	StatElapsedTime      = "sim_elapsed_time"

	statMispredictPrefix = "sim_num_mispredict_"
)

// Formula names reported by Stats.Formulas.
const (
	StatAvgBitSwitch   = "sim_avg_bit_change"
	StatCondBranchFreq = "sim_cond_branch_freq"
	StatInstRate       = "sim_inst_rate"
	statAccuracyPrefix = "sim_pred_accuracy_"
)

// MispredictStat returns the counter name for a variant's mispredictions.
func MispredictStat(v bpred.Variant) string {
	return statMispredictPrefix + v.String()
}

// AccuracyStat returns the formula name for a variant's accuracy.
func AccuracyStat(v bpred.Variant) string {
	return statAccuracyPrefix + v.String()
}

// Stats is a snapshot of every telemetry counter.
type Stats struct {
	// Instructions is the number of retired instructions submitted.
	Instructions uint64
	// TotalCycles counts one cycle per retired instruction.
	TotalCycles uint64
	// MemRefs is the number of memory-accessing instructions.
	MemRefs uint64

	// Category counters, one per capability tag.
	CondBranches   uint64
	UncondBranches uint64
	FloatCompares  uint64
	Stores         uint64
	Loads          uint64
	Immediates     uint64

	// Predictor holds the per-variant misprediction counts.
	Predictor bpred.Stats

	// BitSwitches is the total Hamming distance over register writes.
	BitSwitches uint64
	// RegisterOps is the number of register writes that were compared.
	RegisterOps uint64

	// DependencyStalls is the number of load/control-to-use stalls.
	DependencyStalls uint64

	// Histogram holds the offset bit-width bucket counts.
	Histogram []uint64

	// Elapsed is the wall time between Start and Finalize.
	Elapsed time.Duration
}

// Accuracy returns 1 - mispredictions/branches for the variant.
func (s Stats) Accuracy(v bpred.Variant) float64 {
	return s.Predictor.Accuracy(v)
}

// AverageBitSwitches returns toggled bits per register operation.
func (s Stats) AverageBitSwitches() float64 {
	if s.RegisterOps == 0 {
		return 0
	}
	return float64(s.BitSwitches) / float64(s.RegisterOps)
}

// CondBranchFrequency returns the fraction of instructions that are
// conditional branches.
func (s Stats) CondBranchFrequency() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.CondBranches) / float64(s.Instructions)
}

// InstRate returns simulated instructions per wall-clock second.
func (s Stats) InstRate() float64 {
	secs := s.Elapsed.Seconds()
	if secs == 0 {
		return 0
	}
	return float64(s.Instructions) / secs
}

// CounterNames lists counter names in reporting order.
func CounterNames() []string {
	names := []string{
		StatInsn,
		StatTotalCycles,
		StatRefs,
		StatCondBranches,
		StatUncondBranches,
		StatFloatCompares,
		StatStores,
		StatLoads,
		StatImmediates,
	}

	for _, v := range bpred.Variants() {
		names = append(names, MispredictStat(v))
	}

	return append(names,
		StatBitSwitches,
		StatRegisterOps,
		StatDependencyStalls,
		StatElapsedTime,
	)
}

// FormulaNames lists derived statistic names in reporting order.
func FormulaNames() []string {
	names := make([]string, 0, bpred.NumVariants+3)
	for _, v := range bpred.Variants() {
		names = append(names, AccuracyStat(v))
	}

	return append(names, StatAvgBitSwitch, StatCondBranchFreq, StatInstRate)
}

// Counters returns the flat counter mapping consumed by reporters.
func (s Stats) Counters() map[string]uint64 {
	m := map[string]uint64{
		StatInsn:             s.Instructions,
		StatTotalCycles:      s.TotalCycles,
		StatRefs:             s.MemRefs,
		StatCondBranches:     s.CondBranches,
		StatUncondBranches:   s.UncondBranches,
		StatFloatCompares:    s.FloatCompares,
		StatStores:           s.Stores,
		StatLoads:            s.Loads,
		StatImmediates:       s.Immediates,
		StatBitSwitches:      s.BitSwitches,
		StatRegisterOps:      s.RegisterOps,
		StatDependencyStalls: s.DependencyStalls,
		StatElapsedTime:      uint64(s.Elapsed / time.Second),
	}

	for _, v := range bpred.Variants() {
		m[MispredictStat(v)] = s.Predictor.Mispredictions[v]
	}

	return m
}

// Formulas returns the derived statistics.
func (s Stats) Formulas() map[string]float64 {
	m := map[string]float64{
		StatAvgBitSwitch:   s.AverageBitSwitches(),
		StatCondBranchFreq: s.CondBranchFrequency(),
		StatInstRate:       s.InstRate(),
	}

	for _, v := range bpred.Variants() {
		m[AccuracyStat(v)] = s.Accuracy(v)
	}

	return m
}
