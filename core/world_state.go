package core

import "github.com/signalsfoundry/parcel-simulator/model"

// WorldState is an immutable snapshot of the robot's location and the parcels
// still waiting for delivery. Move returns a new value and never touches the
// receiver's parcel slice.
type WorldState struct {
	Place   model.Location
	Parcels []model.Parcel
}

// NewWorldState copies parcels into a fresh state, dropping any parcel that
// already sits at its address.
func NewWorldState(place model.Location, parcels []model.Parcel) WorldState {
	out := make([]model.Parcel, 0, len(parcels))
	for _, p := range parcels {
		if !p.Delivered() {
			out = append(out, p)
		}
	}
	return WorldState{Place: place, Parcels: out}
}

// Done reports whether every parcel has been delivered.
func (s WorldState) Done() bool {
	return len(s.Parcels) == 0
}

// Move walks the robot to destination, carrying every parcel at the current
// place and dropping those that arrive at their address.
//
// A destination that is not adjacent to the current place (including any
// move from a location missing from g) is absorbed: s is returned unchanged.
func (s WorldState) Move(g Graph, destination model.Location) WorldState {
	if !g.Adjacent(s.Place, destination) {
		return s
	}

	parcels := make([]model.Parcel, 0, len(s.Parcels))
	for _, p := range s.Parcels {
		if p.Place == s.Place {
			p.Place = destination
		}
		if p.Delivered() {
			continue
		}
		parcels = append(parcels, p)
	}
	return WorldState{Place: destination, Parcels: parcels}
}
