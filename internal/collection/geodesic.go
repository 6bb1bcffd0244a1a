package collection

import "math"

const earthRadiusMeters = 6371e3

// boxDistAlgo returns the ranking function for Nearby scans. It scores
// a box by the geodetic distance in meters from the query point to the
// nearest spot on the box, so the spatial index pops candidates in true
// distance order rather than planar order.
func boxDistAlgo[T any](center [2]float64) (
	algo func(min, max [2]float64, data T, item bool) (dist float64),
) {
	return func(min, max [2]float64, data T, item bool) (dist float64) {
		return earthRadiusMeters * pointBoxDistRad(
			rad(center[1]), rad(center[0]),
			rad(min[1]), rad(min[0]),
			rad(max[1]), rad(max[0]),
		)
	}
}

func rad(deg float64) float64 {
	return deg * math.Pi / 180
}

// unitDistRad is the haversine distance between two points on the unit
// sphere, all angles in radians.
func unitDistRad(latA, lngA, latB, lngB float64) float64 {
	if latA == latB && lngA == lngB {
		return 0
	}
	sinLat := math.Sin((latA - latB) / 2)
	sinLng := math.Sin((lngA - lngB) / 2)
	h := sinLat*sinLat + sinLng*sinLng*math.Cos(latA)*math.Cos(latB)
	return 2 * math.Asin(math.Sqrt(h))
}

// pointBoxDistRad is the distance on the unit sphere from a query point
// to the nearest edge of a lat/lng rectangle, all angles in radians.
//
// Algorithm from:
// Schubert, E., Zimek, A., & Kriegel, H.-P. (2013).
// Geodetic Distance Queries on R-Trees for Indexing Geographic Data.
// Lecture Notes in Computer Science, 146-164.
// doi:10.1007/978-3-642-40235-7_9
func pointBoxDistRad(latQ, lngQ, latLo, lngLo, latHi, lngHi float64) float64 {
	// degenerate rect, treat as a point
	if latLo >= latHi && lngLo >= lngHi {
		return unitDistRad(latLo, lngLo, latQ, lngQ)
	}

	if lngLo <= lngQ && lngQ <= lngHi {
		// q sits between the bounding meridians, so it is inside the
		// rect or due north or south of it
		if latLo <= latQ && latQ <= latHi {
			return 0
		}
		if latQ < latLo {
			return latLo - latQ
		}
		return latQ - latHi
	}

	// pick the nearer of the east and west edges, going around the
	// antimeridian when that way is shorter
	dEast := lngLo - lngQ
	if dEast < 0 {
		dEast += 2 * math.Pi
	}
	dWest := lngQ - lngHi
	if dWest < 0 {
		dWest += 2 * math.Pi
	}
	var dLng, lngEdge float64
	if dEast <= dWest {
		dLng, lngEdge = dEast, lngLo
	} else {
		dLng, lngEdge = dWest, lngHi
	}

	sinDLng, cosDLng := math.Sincos(dLng)
	tanLatQ := math.Tan(latQ)

	if dLng >= math.Pi/2 {
		// more than a quarter turn away in longitude puts q past both
		// corners of the chosen edge, compare against the center
		// parallel to decide north or south
		latMid := (latHi + latLo) / 2
		if tanLatQ >= math.Tan(latMid)*cosDLng {
			return unitDistRad(latQ, lngQ, latHi, lngEdge)
		}
		return unitDistRad(latQ, lngQ, latLo, lngEdge)
	}

	if tanLatQ >= math.Tan(latHi)*cosDLng {
		return unitDistRad(latQ, lngQ, latHi, lngEdge) // north corner
	}
	if tanLatQ <= math.Tan(latLo)*cosDLng {
		return unitDistRad(latQ, lngQ, latLo, lngEdge) // south corner
	}

	// due east or west of the rect. The nearest edge is a meridian, so
	// the cross-track distance formula collapses to this.
	return math.Asin(math.Cos(latQ) * sinDLng)
}
