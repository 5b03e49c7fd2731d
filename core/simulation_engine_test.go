package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/parcel-simulator/internal/logging"
	"github.com/signalsfoundry/parcel-simulator/model"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeRecorder struct {
	moves    int
	illegal  int
	outcomes []string
	turns    []int
}

func (f *fakeRecorder) ObserveMove(_ string, legal bool, _, _ int) {
	f.moves++
	if !legal {
		f.illegal++
	}
}

func (f *fakeRecorder) ObserveRun(_ string, outcome string, turns int) {
	f.outcomes = append(f.outcomes, outcome)
	f.turns = append(f.turns, turns)
}

type countingPacer struct{ waits int }

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return ctx.Err()
}

// scriptedRobot proposes the given directions in order and records the
// memory it was handed on each turn.
func scriptedRobot(dirs []model.Location, seen *[]any) Robot {
	return RobotFunc(func(_ WorldState, memory any) Action {
		*seen = append(*seen, memory)
		i, _ := memory.(int)
		return Action{Direction: dirs[i%len(dirs)], Memory: i + 1}
	})
}

func TestRunWithNoParcelsFinishesAtTurnZero(t *testing.T) {
	engine := NewSimulationEngine(abcGraph())
	calls := 0
	robot := RobotFunc(func(WorldState, any) Action {
		calls++
		return Action{Direction: "B"}
	})

	report, err := engine.Run(context.Background(), NewWorldState("A", nil), robot, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Turns != 0 || calls != 0 {
		t.Fatalf("Turns = %d, robot calls = %d; want 0, 0", report.Turns, calls)
	}
}

func TestRunDeliversSingleParcel(t *testing.T) {
	engine := NewSimulationEngine(abcGraph())
	var events []TurnEvent
	engine.RegisterTurnListener(func(ev TurnEvent) { events = append(events, ev) })

	var seen []any
	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "B"}})
	report, err := engine.Run(context.Background(), state, scriptedRobot([]model.Location{"B"}, &seen), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Turns != 1 || report.Final.Place != "B" || !report.Final.Done() {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(events) != 1 || events[0].Direction != "B" || !events[0].Legal || events[0].Delivered != 1 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRunCountsIllegalMovesAsTurns(t *testing.T) {
	rec := &fakeRecorder{}
	engine := NewSimulationEngine(abcGraph(), WithMetricsRecorder(rec))
	var events []TurnEvent
	engine.RegisterTurnListener(func(ev TurnEvent) { events = append(events, ev) })

	var seen []any
	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "C"}})
	robot := scriptedRobot([]model.Location{"C", "B", "A", "B", "C"}, &seen)

	report, err := engine.Run(context.Background(), state, robot, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// C is not adjacent to A, so the first turn is wasted.
	wantPlaces := []model.Location{"A", "B", "A", "B", "C"}
	var places []model.Location
	for _, ev := range events {
		places = append(places, ev.State.Place)
	}
	if report.Turns != len(events) {
		t.Fatalf("Turns = %d, events = %d", report.Turns, len(events))
	}
	if diff := cmp.Diff(wantPlaces, places); diff != "" {
		t.Fatalf("places mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{0, 1, 2, 3, 4}, seen); diff != "" {
		t.Fatalf("memory was not threaded between turns (-want +got):\n%s", diff)
	}
	if rec.moves != 5 || rec.illegal != 1 {
		t.Fatalf("recorder moves=%d illegal=%d, want 5 and 1", rec.moves, rec.illegal)
	}
	if diff := cmp.Diff([]string{OutcomeDelivered}, rec.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunTurnLimit(t *testing.T) {
	rec := &fakeRecorder{}
	engine := NewSimulationEngine(abcGraph(), WithMaxTurns(7), WithMetricsRecorder(rec))
	stuck := RobotFunc(func(WorldState, any) Action { return Action{Direction: "C"} })

	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "B"}})
	report, err := engine.Run(context.Background(), state, stuck, nil)
	if !errors.Is(err, ErrTurnLimit) {
		t.Fatalf("Run err = %v, want ErrTurnLimit", err)
	}
	if report.Turns != 7 {
		t.Fatalf("Turns = %d, want 7", report.Turns)
	}
	if diff := cmp.Diff(state, report.Final); diff != "" {
		t.Fatalf("stuck robot changed state (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{OutcomeTurnLimit}, rec.outcomes); diff != "" {
		t.Fatalf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	engine := NewSimulationEngine(abcGraph())
	turns := 0
	robot := RobotFunc(func(WorldState, any) Action {
		turns++
		if turns == 3 {
			cancel()
		}
		return Action{Direction: "C"}
	})

	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "B"}})
	report, err := engine.Run(ctx, state, robot, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if report.Turns != 3 {
		t.Fatalf("Turns = %d, want 3", report.Turns)
	}
}

func TestRunConsultsPacerEveryTurn(t *testing.T) {
	pacer := &countingPacer{}
	engine := NewSimulationEngine(MustBuildGraph(VillageRoads), WithPacer(pacer))
	state := NewWorldState(DefaultStart, []model.Parcel{{Place: "Cabin", Address: "Farm"}})

	report, err := engine.Run(context.Background(), state, GoalOrientedRobot{Graph: engine.Graph}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pacer.waits != report.Turns {
		t.Fatalf("pacer waits = %d, turns = %d", pacer.waits, report.Turns)
	}
}

func TestRunRecordsSpanWithMoveEvents(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	engine := NewSimulationEngine(abcGraph(), WithTracer(tp.Tracer("test")))
	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "C"}})
	report, err := engine.Run(context.Background(), state, GoalOrientedRobot{Graph: engine.Graph}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "simulation.run" {
		t.Fatalf("unexpected spans %+v", spans)
	}
	if got := len(spans[0].Events); got != report.Turns {
		t.Fatalf("span has %d move events, want %d", got, report.Turns)
	}
}

func TestRunWithoutMoveEventsKeepsOnlyRunSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	engine := NewSimulationEngine(abcGraph(), WithTracer(tp.Tracer("test")), WithMoveEvents(false))
	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "C"}})
	if _, err := engine.Run(context.Background(), state, GoalOrientedRobot{Graph: engine.Graph}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if got := len(spans[0].Events); got != 0 {
		t.Fatalf("span has %d events, want 0", got)
	}
}

func TestRunLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logging.NewWithWriter(&buf, logging.Config{Level: "debug", Format: "json"})
	ctx, _ := logging.WithRunLogger(context.Background(), base)

	engine := NewSimulationEngine(abcGraph())
	state := NewWorldState("A", []model.Parcel{{Place: "A", Address: "C"}})
	if _, err := engine.Run(ctx, state, RouteRobot{Route: []model.Location{"B", "C"}}, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}

	runID := logging.RunIDFromContext(ctx)
	var moves int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if rec["run_id"] != runID {
			t.Fatalf("record %v has run_id %v, want %q", rec, rec["run_id"], runID)
		}
		if rec["msg"] == "moved" {
			moves++
			if rec["legal"] != true {
				t.Fatalf("move record missing legal=true: %v", rec)
			}
		}
	}
	if moves != 2 {
		t.Fatalf("logged %d moves, want 2", moves)
	}
}
