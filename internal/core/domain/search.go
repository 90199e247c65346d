package domain

// PlaceMatch is a geocoder hit for a free-text location query. Coordinates
// are true space, as geocoders return them.
type PlaceMatch struct {
	Label string  `json:"label"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Kind  string  `json:"kind,omitempty"`
}
