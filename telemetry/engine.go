// Package telemetry observes a stream of retired instructions and keeps the
// branch prediction, register toggle, dependency stall and branch offset
// statistics of a run.
//
// An Engine is single-threaded. Events must be submitted one at a time in
// retirement order; the predictors and the stall window depend on it.
//
// Usage:
//
//	eng, err := telemetry.New(config.Default())
//	...
//	_ = eng.Start()
//	for _, ev := range events {
//		if err := eng.Submit(ev); err != nil {
//			...
//		}
//	}
//	_ = eng.Finalize()
//	stats := eng.Stats()
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/bpsim/config"
	"github.com/sarchlab/bpsim/insts"
	"github.com/sarchlab/bpsim/telemetry/bpred"
	"github.com/sarchlab/bpsim/telemetry/hazard"
	"github.com/sarchlab/bpsim/telemetry/histogram"
	"github.com/sarchlab/bpsim/telemetry/regswitch"
)

// State is the lifecycle state of an Engine.
type State int

// Engine states.
const (
	StateUninitialized State = iota
	StateRunning
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrNotRunning is returned when events are submitted before Start.
	ErrNotRunning = errors.New("telemetry engine is not running")
	// ErrFinalized is returned when the engine is used after Finalize.
	ErrFinalized = errors.New("telemetry engine is finalized")
)

// Option is a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(log logr.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithClock replaces the wall clock used for elapsed time and the
// histogram file name.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Engine dispatches retired instructions to the predictor bank, the
// register toggle tracker, the stall detector and the offset histogram.
type Engine struct {
	config *config.Config
	log    logr.Logger
	now    func() time.Time

	state State

	// Sub-trackers, allocated by Start.
	bank      *bpred.Bank
	tracker   *regswitch.Tracker
	detector  *hazard.StallDetector
	histogram *histogram.Histogram

	// Category counters
	instructions   uint64
	totalCycles    uint64
	memRefs        uint64
	condBranches   uint64
	uncondBranches uint64
	floatCompares  uint64
	stores         uint64
	loads          uint64
	immediates     uint64

	startTime     time.Time
	elapsed       time.Duration
	histogramPath string
}

// New creates an engine in the uninitialized state. The configuration is
// validated and copied.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	e := &Engine{
		config: cfg.Clone(),
		log:    logr.Discard(),
		now:    time.Now,
		state:  StateUninitialized,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() *config.Config {
	return e.config
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Start allocates every table and begins accepting events.
func (e *Engine) Start() error {
	switch e.state {
	case StateRunning:
		return nil
	case StateFinalized:
		return ErrFinalized
	}

	e.bank = bpred.NewBank(bpred.Config{
		TableBits:        e.config.TableBits,
		HistoryBits:      e.config.HistoryBits,
		InstructionWidth: e.config.InstructionWidth,
	})
	e.tracker = regswitch.NewTracker()
	e.detector = hazard.NewStallDetector()
	e.histogram = histogram.New(e.config.HistogramBuckets, e.config.InstructionWidth)

	e.startTime = e.now()
	e.state = StateRunning

	e.log.V(1).Info("telemetry started",
		"entries", e.bank.Entries(),
		"historyBits", e.config.HistoryBits,
		"instructionWidth", e.config.InstructionWidth)

	return nil
}

// Submit processes one retired instruction. It must be called once per
// instruction, in program order.
func (e *Engine) Submit(ev insts.Event) error {
	switch e.state {
	case StateUninitialized:
		return ErrNotRunning
	case StateFinalized:
		return ErrFinalized
	}

	e.instructions++
	e.totalCycles++
	e.countCategories(ev.Flags)

	e.tracker.Observe(ev)
	e.detector.Observe(ev)

	if !ev.IsConditional() {
		return nil
	}

	if _, err := e.bank.Observe(ev.PC, ev.NextPC); err != nil {
		e.log.Error(err, "predictor table lookup failed", "instruction", e.instructions)
		return fmt.Errorf("instruction %d: %w", e.instructions, err)
	}

	e.histogram.Record(ev.PC, ev.Target)

	return nil
}

func (e *Engine) countCategories(flags insts.OpFlags) {
	if flags.Has(insts.FlagMemory) {
		e.memRefs++
	}
	if flags.Has(insts.FlagConditional) {
		e.condBranches++
	}
	if flags.Has(insts.FlagUnconditional) {
		e.uncondBranches++
	}
	if flags.Has(insts.FlagFloatCompare) {
		e.floatCompares++
	}
	if flags.Has(insts.FlagStore) {
		e.stores++
	}
	if flags.Has(insts.FlagLoad) {
		e.loads++
	}
	if flags.Has(insts.FlagImmediate) {
		e.immediates++
	}
}

// Instructions returns the number of submitted events.
func (e *Engine) Instructions() uint64 {
	return e.instructions
}

// Finalize stops accepting events, freezes the counters and writes the
// offset histogram. Finalizing an engine that never started only freezes
// it.
func (e *Engine) Finalize() error {
	if e.state == StateFinalized {
		return ErrFinalized
	}

	wasRunning := e.state == StateRunning
	e.state = StateFinalized

	if !wasRunning {
		return nil
	}

	now := e.now()
	e.elapsed = now.Sub(e.startTime)

	if e.config.OutputDir != "" {
		path, err := e.histogram.Flush(e.config.OutputDir, now)
		if err != nil {
			return fmt.Errorf("failed to flush offset histogram: %w", err)
		}
		e.histogramPath = path
	}

	stats := e.bank.Stats()
	e.log.Info("telemetry finalized",
		"instructions", e.instructions,
		"condBranches", stats.Branches,
		"dependencyStalls", e.detector.Stalls(),
		"histogram", e.histogramPath)

	return nil
}

// HistogramPath returns the file written by Finalize, if any.
func (e *Engine) HistogramPath() string {
	return e.histogramPath
}

// Stats returns a snapshot of all counters. Before Finalize the elapsed time
// is measured up to now.
func (e *Engine) Stats() Stats {
	s := Stats{
		Instructions:   e.instructions,
		TotalCycles:    e.totalCycles,
		MemRefs:        e.memRefs,
		CondBranches:   e.condBranches,
		UncondBranches: e.uncondBranches,
		FloatCompares:  e.floatCompares,
		Stores:         e.stores,
		Loads:          e.loads,
		Immediates:     e.immediates,
	}

	if e.bank == nil {
		return s
	}

	s.Predictor = e.bank.Stats()
	s.BitSwitches = e.tracker.BitSwitches()
	s.RegisterOps = e.tracker.Operations()
	s.DependencyStalls = e.detector.Stalls()
	s.Histogram = e.histogram.Counts()

	if e.state == StateFinalized {
		s.Elapsed = e.elapsed
	} else {
		s.Elapsed = e.now().Sub(e.startTime)
	}

	return s
}
