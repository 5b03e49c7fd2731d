package core

import (
	"math/rand"

	"github.com/signalsfoundry/parcel-simulator/model"
)

// Action is a robot's decision for one turn: the neighbour to move to and the
// memory handed back to the robot on its next turn.
type Action struct {
	Direction model.Location
	Memory    any
}

// Robot decides the next move from the current state and its own memory.
// Implementations must depend only on their arguments and immutable
// configuration; the engine owns memory between turns.
type Robot interface {
	Decide(state WorldState, memory any) Action
}

// RobotFunc adapts a plain function to the Robot interface.
type RobotFunc func(state WorldState, memory any) Action

// Decide calls f(state, memory).
func (f RobotFunc) Decide(state WorldState, memory any) Action {
	return f(state, memory)
}

// IntSource yields pseudo-random integers in [0, n). *rand.Rand satisfies it.
type IntSource interface {
	Intn(n int) int
}

// RandomRobot wanders: every turn it picks a uniformly random neighbour of
// its current place. Duplicate edges weight the pick accordingly.
//
// Rand should be set for reproducible runs; a nil Rand falls back to the
// math/rand top-level source.
type RandomRobot struct {
	Graph Graph
	Rand  IntSource
}

// Decide implements Robot. Memory is ignored and always returned as nil.
func (r RandomRobot) Decide(state WorldState, _ any) Action {
	neighbors := r.Graph.Neighbors(state.Place)
	if len(neighbors) == 0 {
		// Stranded: propose staying put, which Move absorbs as a no-op.
		return Action{Direction: state.Place}
	}
	intn := rand.Intn
	if r.Rand != nil {
		intn = r.Rand.Intn
	}
	return Action{Direction: neighbors[intn(len(neighbors))]}
}

// RouteRobot follows a fixed route that visits every location, starting over
// when it runs out. Its memory is the remaining part of the route.
type RouteRobot struct {
	Route []model.Location
}

// Decide implements Robot.
func (r RouteRobot) Decide(_ WorldState, memory any) Action {
	remaining, _ := memory.([]model.Location)
	if len(remaining) == 0 {
		remaining = r.Route
	}
	if len(remaining) == 0 {
		return Action{}
	}
	return Action{Direction: remaining[0], Memory: remaining[1:]}
}

// GoalOrientedRobot heads for the first outstanding parcel: to its place when
// it has not been picked up yet, otherwise to its address. The planned path
// lives in memory and is replanned once exhausted.
type GoalOrientedRobot struct {
	Graph Graph
}

// Decide implements Robot.
func (r GoalOrientedRobot) Decide(state WorldState, memory any) Action {
	route, _ := memory.([]model.Location)
	if len(route) == 0 {
		if len(state.Parcels) == 0 {
			return Action{Direction: state.Place}
		}
		parcel := state.Parcels[0]
		if parcel.Place != state.Place {
			route = FindRoute(r.Graph, state.Place, parcel.Place)
		} else {
			route = FindRoute(r.Graph, state.Place, parcel.Address)
		}
		if len(route) == 0 {
			// Unreachable goal; waste the turn instead of failing.
			return Action{Direction: state.Place}
		}
	}
	return Action{Direction: route[0], Memory: route[1:]}
}

// FindRoute returns the shortest path from from to to, excluding from and
// including to. It returns nil when to is unreachable or equal to from.
func FindRoute(g Graph, from, to model.Location) []model.Location {
	if from == to {
		return nil
	}

	queue := []model.Location{from}
	prev := map[model.Location]model.Location{from: from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == to {
			var path []model.Location
			for node := to; node != from; node = prev[node] {
				path = append(path, node)
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path
		}

		for _, neighbor := range g.Neighbors(current) {
			if _, seen := prev[neighbor]; seen {
				continue
			}
			prev[neighbor] = current
			queue = append(queue, neighbor)
		}
	}
	return nil
}

// Name implements the optional robot naming used for logs and metrics.
func (RandomRobot) Name() string { return "random" }

// Name implements the optional robot naming used for logs and metrics.
func (RouteRobot) Name() string { return "route" }

// Name implements the optional robot naming used for logs and metrics.
func (GoalOrientedRobot) Name() string { return "goal" }

// RobotName returns r's name when it provides one, and "custom" otherwise.
func RobotName(r Robot) string {
	if n, ok := r.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "custom"
}
