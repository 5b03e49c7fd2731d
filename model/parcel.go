package model

// Location names a place in the village. Locations carry no attributes beyond
// their identity.
type Location string

// Parcel is an item sitting at Place that must be carried to Address.
type Parcel struct {
	Place   Location `yaml:"place" json:"place"`
	Address Location `yaml:"address" json:"address"`
}

// Delivered reports whether the parcel has reached its address.
func (p Parcel) Delivered() bool {
	return p.Place == p.Address
}
