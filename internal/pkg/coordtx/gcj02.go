// Package coordtx converts coordinates between display space, the regionally
// distorted datum used by local map tiles, and true space (WGS 84), the datum
// consumed by GPS hardware and the OS location feed.
//
// Both directions are pure, deterministic, and defined for every input; no
// region membership check is applied. The distortion is an empirical offset
// series, so the inverse is approximate: round-tripping a point carries a
// residual on the order of a meter inside the operating envelope, never zero.
package coordtx

import "math"

// Reference ellipsoid parameters of the distorted datum.
const (
	semiMajorAxis = 6378245.0
	eccentricity2 = 0.00669342162296594323
)

// ToDisplay converts a true-space coordinate into display space by adding
// the distortion offset evaluated at the input.
func ToDisplay(lat, lon float64) (float64, float64) {
	dLat, dLon := offset(lat, lon)
	return lat + dLat, lon + dLon
}

// ToTrue converts a display-space coordinate into true space. The offset is
// evaluated at the input rather than at the unknown true point, which makes
// this the approximate inverse of ToDisplay.
func ToTrue(lat, lon float64) (float64, float64) {
	dLat, dLon := offset(lat, lon)
	return lat - dLat, lon - dLon
}

func offset(lat, lon float64) (float64, float64) {
	x := lon - 105.0
	y := lat - 35.0

	dLat := seriesLat(x, y)
	dLon := seriesLon(x, y)

	radLat := lat / 180.0 * math.Pi
	magic := math.Sin(radLat)
	magic = 1 - eccentricity2*magic*magic
	sqrtMagic := math.Sqrt(magic)

	dLat = (dLat * 180.0) / ((semiMajorAxis * (1 - eccentricity2)) / (magic * sqrtMagic) * math.Pi)
	dLon = (dLon * 180.0) / (semiMajorAxis / sqrtMagic * math.Cos(radLat) * math.Pi)
	return dLat, dLon
}

func seriesLat(x, y float64) float64 {
	ret := -100.0 + 2.0*x + 3.0*y + 0.2*y*y + 0.1*x*y + 0.2*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(y*math.Pi) + 40.0*math.Sin(y/3.0*math.Pi)) * 2.0 / 3.0
	ret += (160.0*math.Sin(y/12.0*math.Pi) + 320.0*math.Sin(y*math.Pi/30.0)) * 2.0 / 3.0
	return ret
}

func seriesLon(x, y float64) float64 {
	ret := 300.0 + x + 2.0*y + 0.1*x*x + 0.1*x*y + 0.1*math.Sqrt(math.Abs(x))
	ret += (20.0*math.Sin(6.0*x*math.Pi) + 20.0*math.Sin(2.0*x*math.Pi)) * 2.0 / 3.0
	ret += (20.0*math.Sin(x*math.Pi) + 40.0*math.Sin(x/3.0*math.Pi)) * 2.0 / 3.0
	ret += (150.0*math.Sin(x/12.0*math.Pi) + 300.0*math.Sin(x/30.0*math.Pi)) * 2.0 / 3.0
	return ret
}
