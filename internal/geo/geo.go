package geo

import "math"

const earthRadiusMeters = 6371000

// metersPerDegreeLat is the length of one degree of latitude on the
// spherical Earth model used by HaversineMeters.
const metersPerDegreeLat = earthRadiusMeters * math.Pi / 180

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Valid reports whether the coordinate lies in the usual degree ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// BlocksToMeters converts a block count into meters using the given
// per-block length. Defined for blocks >= 0.
func BlocksToMeters(blocks int, blockLength float64) float64 {
	return float64(blocks) * blockLength
}

// HaversineMeters calculates the great-circle distance between two points
// in meters. The intermediate term is clamped to [0, 1] so antipodal
// points don't trip a sqrt domain error on rounding.
func HaversineMeters(a, b Coordinate) float64 {
	lat1Rad := a.Lat * math.Pi / 180
	lat2Rad := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	if h > 1 {
		h = 1
	} else if h < 0 {
		h = 0
	}
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// DegreeSpan returns the latitude and longitude spans, in degrees, of a
// box that covers the given distance in every direction from a point at
// latitude lat. Longitude degrees shrink with cos(lat); near the poles
// the span is capped at the full circle.
func DegreeSpan(meters, lat float64) (dLat, dLon float64) {
	dLat = meters / metersPerDegreeLat

	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat <= 1e-6 {
		return dLat, 360
	}
	dLon = meters / (metersPerDegreeLat * cosLat)
	if dLon > 360 {
		dLon = 360
	}
	return dLat, dLon
}
