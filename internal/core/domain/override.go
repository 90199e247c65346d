package domain

import "time"

// LocationOverride is the exact reading the helper feeds to the OS location
// services. Coordinates are always true space; the caller converts before
// building one.
type LocationOverride struct {
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Altitude           float64   `json:"altitude"`            // meters
	HorizontalAccuracy float64   `json:"horizontal_accuracy"` // meters
	VerticalAccuracy   float64   `json:"vertical_accuracy"`   // meters
	Timestamp          time.Time `json:"timestamp"`
}
