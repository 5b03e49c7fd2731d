package core

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/parcel-simulator/model"
)

func TestBuildGraphIsSymmetric(t *testing.T) {
	g, err := BuildGraph(VillageRoads)
	if err != nil {
		t.Fatalf("BuildGraph: %v", err)
	}
	for _, edge := range VillageRoads {
		g2 := MustBuildGraph([]string{edge})
		for from, tos := range g2 {
			for _, to := range tos {
				if !g.Adjacent(from, to) || !g.Adjacent(to, from) {
					t.Fatalf("edge %q: %s and %s not mutually adjacent", edge, from, to)
				}
			}
		}
	}
	if got := len(g.Locations()); got != 11 {
		t.Fatalf("village has %d locations, want 11", got)
	}
}

func TestBuildGraphKeepsDuplicateEdges(t *testing.T) {
	g := MustBuildGraph([]string{"A-B", "B-A", "B-C"})
	want := Graph{
		"A": {"B", "B"},
		"B": {"A", "A", "C"},
		"C": {"B"},
	}
	if diff := cmp.Diff(want, g); diff != "" {
		t.Fatalf("graph mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildGraphRejectsMalformedEdges(t *testing.T) {
	tests := []struct {
		name  string
		edges []string
	}{
		{"no separator", []string{"AB"}},
		{"too many parts", []string{"A-B-C"}},
		{"empty side", []string{"A-"}},
		{"self loop", []string{"A-A"}},
		{"bad edge after good one", []string{"A-B", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := BuildGraph(tt.edges)
			if !errors.Is(err, ErrMalformedEdge) {
				t.Fatalf("BuildGraph(%q) err = %v, want ErrMalformedEdge", tt.edges, err)
			}
			if g != nil {
				t.Fatalf("BuildGraph returned partial graph %v", g)
			}
		})
	}
}

func TestMustBuildGraphPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	MustBuildGraph([]string{"nope"})
}

func TestUnknownLocationHasNoNeighbors(t *testing.T) {
	g := MustBuildGraph([]string{"A-B"})
	if n := g.Neighbors("Z"); len(n) != 0 {
		t.Fatalf("Neighbors(Z) = %v, want empty", n)
	}
	if g.Adjacent("Z", "A") {
		t.Fatalf("unknown location reported adjacent")
	}
	if _, ok := g["Z"]; ok {
		t.Fatalf("lookup must not insert unknown locations")
	}
}

func TestLocationsSorted(t *testing.T) {
	g := MustBuildGraph([]string{"C-A", "B-A"})
	want := []model.Location{"A", "B", "C"}
	if diff := cmp.Diff(want, g.Locations()); diff != "" {
		t.Fatalf("Locations mismatch (-want +got):\n%s", diff)
	}
}
