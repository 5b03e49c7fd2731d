package core

import "github.com/signalsfoundry/parcel-simulator/model"

// DefaultStart is where the robot and the post office sit in the village.
const DefaultStart model.Location = "Post Office"

// VillageRoads is the road network of the village used by the CLI defaults.
var VillageRoads = []string{
	"Alice's House-Bob's House", "Alice's House-Cabin",
	"Alice's House-Post Office", "Bob's House-Town Hall",
	"Daria's House-Ernie's House", "Daria's House-Town Hall",
	"Ernie's House-Grete's House", "Grete's House-Farm",
	"Grete's House-Shop", "Marketplace-Farm",
	"Marketplace-Post Office", "Marketplace-Shop",
	"Marketplace-Town Hall", "Shop-Town Hall",
}

// MailRoute is a closed walk from the post office that passes every place in
// the village.
var MailRoute = []model.Location{
	"Alice's House", "Cabin", "Alice's House", "Bob's House",
	"Town Hall", "Daria's House", "Ernie's House",
	"Grete's House", "Shop", "Grete's House", "Farm",
	"Marketplace", "Post Office",
}
