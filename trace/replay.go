package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/bpsim/insts"
)

// Sink consumes retired instructions, one at a time, in program order.
type Sink interface {
	Submit(ev insts.Event) error
}

// retireEvent delivers one retired instruction at its retirement time.
type retireEvent struct {
	*sim.EventBase
	inst insts.Event
}

// ReplayerOption is a functional option for configuring the Replayer.
type ReplayerOption func(*Replayer)

// WithMaxInstructions stops the replay after n instructions. A value of 0
// means no limit.
func WithMaxInstructions(n uint64) ReplayerOption {
	return func(r *Replayer) {
		r.maxInstructions = n
	}
}

// WithReplayLogger sets the logger used for progress messages.
func WithReplayLogger(log logr.Logger) ReplayerOption {
	return func(r *Replayer) {
		r.log = log
	}
}

// WithRetirePeriod sets the simulated time between two retirements.
func WithRetirePeriod(period sim.VTimeInSec) ReplayerOption {
	return func(r *Replayer) {
		r.period = period
	}
}

// Replayer feeds a Source into a Sink through an akita serial engine.
//
// Only one retirement event is pending at any time: handling event N reads
// and schedules event N+1. The sink therefore sees every instruction
// exactly once and in source order.
type Replayer struct {
	engine sim.Engine
	source Source
	sink   Sink
	log    logr.Logger

	period          sim.VTimeInSec
	maxInstructions uint64

	delivered uint64
	err       error
}

// NewReplayer creates a replayer from source to sink.
func NewReplayer(source Source, sink Sink, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		engine: sim.NewSerialEngine(),
		source: source,
		sink:   sink,
		log:    logr.Discard(),
		period: 1,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handle delivers one retirement event to the sink.
func (r *Replayer) Handle(e sim.Event) error {
	evt, ok := e.(*retireEvent)
	if !ok {
		return fmt.Errorf("replayer cannot handle event %T", e)
	}

	// A failed submit schedules nothing, which drains the engine. The error
	// is reported by Run.
	if err := r.sink.Submit(evt.inst); err != nil {
		r.err = fmt.Errorf("instruction at pc 0x%x: %w", evt.inst.PC, err)
		return nil
	}

	r.delivered++
	r.scheduleNext(evt.Time() + r.period)

	return nil
}

func (r *Replayer) scheduleNext(at sim.VTimeInSec) {
	if r.maxInstructions > 0 && r.delivered >= r.maxInstructions {
		r.log.V(1).Info("instruction limit reached", "limit", r.maxInstructions)
		return
	}

	ev, err := r.source.Next()
	if errors.Is(err, io.EOF) {
		return
	}
	if err != nil {
		r.err = err
		return
	}

	r.engine.Schedule(&retireEvent{
		EventBase: sim.NewEventBase(at, r),
		inst:      ev,
	})
}

// Run replays until the source ends, the limit is reached or an error
// occurs. Returns the number of instructions delivered.
func (r *Replayer) Run() (uint64, error) {
	r.scheduleNext(0)

	if r.err == nil {
		if err := r.engine.Run(); err != nil && r.err == nil {
			r.err = err
		}
	}

	r.log.V(1).Info("replay finished", "delivered", r.delivered)

	return r.delivered, r.err
}

// Delivered returns the number of instructions handed to the sink.
func (r *Replayer) Delivered() uint64 {
	return r.delivered
}
