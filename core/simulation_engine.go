package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/parcel-simulator/internal/logging"
	"github.com/signalsfoundry/parcel-simulator/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/signalsfoundry/parcel-simulator/core"

// ErrTurnLimit is returned by Run when WithMaxTurns is set and the robot has
// not delivered every parcel within that many turns.
var ErrTurnLimit = errors.New("turn limit reached")

// Run outcomes reported to the MetricsRecorder.
const (
	OutcomeDelivered = "delivered"
	OutcomeTurnLimit = "turn_limit"
	OutcomeCancelled = "cancelled"
)

// TurnEvent describes one completed turn.
type TurnEvent struct {
	Turn      int // 1-based
	From      model.Location
	Direction model.Location
	Legal     bool
	Delivered int
	Remaining int
	State     WorldState
}

// Report summarises a finished run.
type Report struct {
	Robot string
	Turns int
	Final WorldState
}

// MetricsRecorder receives per-move and per-run observations.
type MetricsRecorder interface {
	ObserveMove(robot string, legal bool, delivered, remaining int)
	ObserveRun(robot, outcome string, turns int)
}

// Pacer is consulted after every turn; it may block to slow a run down.
type Pacer interface {
	Wait(ctx context.Context) error
}

// EngineOption configures a SimulationEngine.
type EngineOption func(*SimulationEngine)

// WithLogger sets the engine logger.
func WithLogger(log logging.Logger) EngineOption {
	return func(se *SimulationEngine) {
		if log != nil {
			se.log = log
		}
	}
}

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) EngineOption {
	return func(se *SimulationEngine) {
		if m != nil {
			se.metrics = m
		}
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) EngineOption {
	return func(se *SimulationEngine) {
		if t != nil {
			se.tracer = t
		}
	}
}

// WithMaxTurns caps every run at n turns. Zero or negative means unbounded.
func WithMaxTurns(n int) EngineOption {
	return func(se *SimulationEngine) { se.maxTurns = n }
}

// WithMoveEvents controls whether each turn is added to the run span as a
// "move" event. Enabled by default.
func WithMoveEvents(enabled bool) EngineOption {
	return func(se *SimulationEngine) { se.moveEvents = enabled }
}

// WithPacer installs a pacer consulted between turns.
func WithPacer(p Pacer) EngineOption {
	return func(se *SimulationEngine) { se.pacer = p }
}

// SimulationEngine runs robots over a shared, read-only graph. An engine may
// drive any number of runs; each run owns its own state and memory.
type SimulationEngine struct {
	Graph Graph

	log           logging.Logger
	metrics       MetricsRecorder
	tracer        trace.Tracer
	pacer         Pacer
	maxTurns      int
	moveEvents    bool
	turnListeners []func(TurnEvent)
}

// NewSimulationEngine constructs an engine over g.
func NewSimulationEngine(g Graph, opts ...EngineOption) *SimulationEngine {
	se := &SimulationEngine{
		Graph:      g,
		log:        logging.Noop(),
		metrics:    noopRecorder{},
		tracer:     otel.Tracer(tracerName),
		moveEvents: true,
	}
	for _, opt := range opts {
		opt(se)
	}
	return se
}

// RegisterTurnListener registers fn to be called after every turn of every run.
// Listeners must be registered before runs start.
func (se *SimulationEngine) RegisterTurnListener(fn func(TurnEvent)) {
	se.turnListeners = append(se.turnListeners, fn)
}

// Run drives robot from state until every parcel is delivered and reports the
// number of turns taken. A state with no parcels completes at turn 0 without
// consulting the robot. Without WithMaxTurns a robot that never delivers keeps
// the loop running until ctx is cancelled.
func (se *SimulationEngine) Run(ctx context.Context, state WorldState, robot Robot, memory any) (Report, error) {
	name := RobotName(robot)
	ctx, span := se.tracer.Start(ctx, "simulation.run", trace.WithAttributes(
		attribute.String("robot", name),
		attribute.String("start", string(state.Place)),
		attribute.Int("parcels", len(state.Parcels)),
	))
	defer span.End()

	log := se.log
	if l := logging.LoggerFromContext(ctx); l != nil {
		log = l
	}
	log = log.With(logging.String("robot", name))
	log.Debug(ctx, "run started",
		logging.String("start", string(state.Place)),
		logging.Int("parcels", len(state.Parcels)),
	)

	for turn := 0; ; turn++ {
		if state.Done() {
			span.SetAttributes(attribute.Int("turns", turn))
			se.metrics.ObserveRun(name, OutcomeDelivered, turn)
			log.Info(ctx, "all parcels delivered", logging.Int("turns", turn))
			return Report{Robot: name, Turns: turn, Final: state}, nil
		}

		if err := ctx.Err(); err != nil {
			return se.abort(ctx, span, log, name, OutcomeCancelled, turn, state, err)
		}
		if se.maxTurns > 0 && turn >= se.maxTurns {
			err := fmt.Errorf("%w: %d turns, %d parcels outstanding", ErrTurnLimit, turn, len(state.Parcels))
			return se.abort(ctx, span, log, name, OutcomeTurnLimit, turn, state, err)
		}

		action := robot.Decide(state, memory)
		next := state.Move(se.Graph, action.Direction)
		event := TurnEvent{
			Turn:      turn + 1,
			From:      state.Place,
			Direction: action.Direction,
			Legal:     se.Graph.Adjacent(state.Place, action.Direction),
			Delivered: len(state.Parcels) - len(next.Parcels),
			Remaining: len(next.Parcels),
			State:     next,
		}
		state = next
		memory = action.Memory

		se.emit(ctx, span, log, name, event)

		if se.pacer != nil {
			// Cancellation surfaces through the ctx check on the next turn.
			_ = se.pacer.Wait(ctx)
		}
	}
}

func (se *SimulationEngine) emit(ctx context.Context, span trace.Span, log logging.Logger, robot string, ev TurnEvent) {
	if se.moveEvents {
		span.AddEvent("move", trace.WithAttributes(
			attribute.Int("turn", ev.Turn),
			attribute.String("from", string(ev.From)),
			attribute.String("direction", string(ev.Direction)),
			attribute.Bool("legal", ev.Legal),
			attribute.Int("delivered", ev.Delivered),
			attribute.Int("remaining", ev.Remaining),
		))
	}
	se.metrics.ObserveMove(robot, ev.Legal, ev.Delivered, ev.Remaining)

	msg := "moved"
	if !ev.Legal {
		msg = "illegal move absorbed"
	}
	log.Debug(ctx, msg,
		logging.Int("turn", ev.Turn),
		logging.String("from", string(ev.From)),
		logging.String("direction", string(ev.Direction)),
		logging.Bool("legal", ev.Legal),
		logging.Int("remaining", ev.Remaining),
	)

	for _, fn := range se.turnListeners {
		fn(ev)
	}
}

func (se *SimulationEngine) abort(ctx context.Context, span trace.Span, log logging.Logger, robot, outcome string, turn int, state WorldState, err error) (Report, error) {
	span.SetAttributes(attribute.Int("turns", turn))
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	se.metrics.ObserveRun(robot, outcome, turn)
	log.Warn(ctx, "run stopped before delivery",
		logging.String("outcome", outcome),
		logging.Int("turns", turn),
		logging.Int("remaining", len(state.Parcels)),
		logging.String("error", err.Error()),
	)
	return Report{Robot: robot, Turns: turn, Final: state}, err
}

type noopRecorder struct{}

func (noopRecorder) ObserveMove(string, bool, int, int) {}
func (noopRecorder) ObserveRun(string, string, int)     {}
