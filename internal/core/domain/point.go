package domain

import (
	"fmt"
	"math"
)

// CoordinateSpace identifies the datum a raw coordinate pair is expressed in.
// Every coordinate crossing a component boundary carries its space explicitly;
// nothing is ever inferred from the values themselves.
type CoordinateSpace string

const (
	// SpaceDisplay is the regionally distorted system used by local map tiles.
	SpaceDisplay CoordinateSpace = "display"
	// SpaceTrue is the undistorted system consumed by GPS hardware and the
	// OS location feed.
	SpaceTrue CoordinateSpace = "true"
)

// ParseCoordinateSpace converts a wire string into a CoordinateSpace.
func ParseCoordinateSpace(s string) (CoordinateSpace, error) {
	switch CoordinateSpace(s) {
	case SpaceDisplay:
		return SpaceDisplay, nil
	case SpaceTrue:
		return SpaceTrue, nil
	}
	return "", NewOpError(KindInvalidCoordinate, fmt.Sprintf("unknown coordinate space %q", s))
}

// DefaultAltitudeMeters is reported to the helper when a selection carries no
// altitude of its own.
const DefaultAltitudeMeters = 0.0

// LocationPoint is a picked map location.
type LocationPoint struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Altitude *float64 `json:"altitude,omitempty"` // meters
	Label    string   `json:"label,omitempty"`
	Note     string   `json:"note,omitempty"`
}

// AltitudeOrDefault returns the point's altitude, or the fixed sea-level
// default when the selection carries none.
func (p LocationPoint) AltitudeOrDefault() float64 {
	if p.Altitude != nil {
		return *p.Altitude
	}
	return DefaultAltitudeMeters
}

// Validate checks that the point is a finite, in-range degree coordinate.
func (p LocationPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return NewOpError(KindInvalidCoordinate, "coordinate is not a finite number")
	}
	if p.Lat < -90 || p.Lat > 90 {
		return NewOpError(KindInvalidCoordinate, fmt.Sprintf("latitude %.6f out of range [-90, 90]", p.Lat))
	}
	if p.Lon < -180 || p.Lon > 180 {
		return NewOpError(KindInvalidCoordinate, fmt.Sprintf("longitude %.6f out of range [-180, 180]", p.Lon))
	}
	if p.Altitude != nil && (math.IsNaN(*p.Altitude) || math.IsInf(*p.Altitude, 0)) {
		return NewOpError(KindInvalidCoordinate, "altitude is not a finite number")
	}
	return nil
}
