package merge

import (
	"math"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"

	"github.com/landbridge/landbridge/internal/geom"
)

// sampleBoundary returns candidate connection points along the outer
// rings of a shape. Holes never contribute samples. An empty shape
// yields an empty set, which callers resolve with a centroid fallback.
func sampleBoundary(o geojson.Object, target int) []geometry.Point {
	var points []geometry.Point
	for _, ring := range geom.OuterRings(o) {
		points = append(points, sampleRing(ring, target)...)
	}
	return points
}

// sampleRing emits every ring vertex plus points interpolated evenly
// along each segment, enough that the count per ring approaches the
// target. Rings with more vertices than the target still emit every
// vertex.
func sampleRing(ring geometry.Series, target int) []geometry.Point {
	nsegs := ring.NumSegments()
	if nsegs == 0 {
		// too few points to form a segment, emit what is there
		var points []geometry.Point
		for i := 0; i < ring.NumPoints(); i++ {
			points = append(points, ring.PointAt(i))
		}
		return points
	}
	perseg := int(math.Ceil(float64(target) / float64(nsegs)))
	points := make([]geometry.Point, 0, nsegs*(perseg+1))
	for i := 0; i < nsegs; i++ {
		seg := ring.SegmentAt(i)
		points = append(points, seg.A)
		for j := 1; j <= perseg; j++ {
			t := float64(j) / float64(perseg+1)
			points = append(points, geometry.Point{
				X: seg.A.X + (seg.B.X-seg.A.X)*t,
				Y: seg.A.Y + (seg.B.Y-seg.A.Y)*t,
			})
		}
	}
	return points
}
