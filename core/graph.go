package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/parcel-simulator/model"
)

// EdgeSeparator joins the two location names of an edge descriptor.
const EdgeSeparator = "-"

// ErrMalformedEdge is returned when an edge descriptor does not name exactly
// two distinct, non-empty locations.
var ErrMalformedEdge = errors.New("malformed edge descriptor")

// Graph maps every location that appears in an edge to its neighbours.
// A built Graph is never mutated and may be shared between runs.
type Graph map[model.Location][]model.Location

// BuildGraph turns "From-To" descriptors into a symmetric adjacency graph.
// Repeated edges yield repeated neighbour entries. The first malformed
// descriptor aborts construction and no graph is returned.
func BuildGraph(edges []string) (Graph, error) {
	g := make(Graph)
	for i, edge := range edges {
		parts := strings.Split(edge, EdgeSeparator)
		if len(parts) != 2 {
			return nil, fmt.Errorf("edge %d %q: %w: want 2 locations, got %d", i, edge, ErrMalformedEdge, len(parts))
		}
		from, to := model.Location(strings.TrimSpace(parts[0])), model.Location(strings.TrimSpace(parts[1]))
		if from == "" || to == "" {
			return nil, fmt.Errorf("edge %d %q: %w: empty location name", i, edge, ErrMalformedEdge)
		}
		if from == to {
			return nil, fmt.Errorf("edge %d %q: %w: self loop", i, edge, ErrMalformedEdge)
		}
		g[from] = append(g[from], to)
		g[to] = append(g[to], from)
	}
	return g, nil
}

// MustBuildGraph is BuildGraph for static edge lists; it panics on error.
func MustBuildGraph(edges []string) Graph {
	g, err := BuildGraph(edges)
	if err != nil {
		panic(err)
	}
	return g
}

// Neighbors returns the neighbour list of loc, or nil for unknown locations.
// Callers must not modify the returned slice.
func (g Graph) Neighbors(loc model.Location) []model.Location {
	return g[loc]
}

// Adjacent reports whether to is a neighbour of from.
func (g Graph) Adjacent(from, to model.Location) bool {
	for _, n := range g[from] {
		if n == to {
			return true
		}
	}
	return false
}

// Locations returns every location in the graph in sorted order.
func (g Graph) Locations() []model.Location {
	locs := make([]model.Location, 0, len(g))
	for loc := range g {
		locs = append(locs, loc)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i] < locs[j] })
	return locs
}
