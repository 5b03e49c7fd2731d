package core

import "github.com/signalsfoundry/parcel-simulator/model"

// RandomParcels generates count parcels whose place and address are distinct
// locations of g. Graphs with fewer than two locations yield no parcels.
func RandomParcels(g Graph, rnd IntSource, count int) []model.Parcel {
	locs := g.Locations()
	if len(locs) < 2 || count <= 0 {
		return nil
	}
	parcels := make([]model.Parcel, 0, count)
	for range count {
		address := locs[rnd.Intn(len(locs))]
		place := address
		for place == address {
			place = locs[rnd.Intn(len(locs))]
		}
		parcels = append(parcels, model.Parcel{Place: place, Address: address})
	}
	return parcels
}

// RandomWorldState starts the robot at start with count random parcels.
func RandomWorldState(g Graph, rnd IntSource, start model.Location, count int) WorldState {
	return NewWorldState(start, RandomParcels(g, rnd, count))
}

// RandomTasks generates n independent random starting states.
func RandomTasks(g Graph, rnd IntSource, start model.Location, parcels, n int) []WorldState {
	tasks := make([]WorldState, 0, n)
	for range n {
		tasks = append(tasks, RandomWorldState(g, rnd, start, parcels))
	}
	return tasks
}
