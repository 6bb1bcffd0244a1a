package merge

import (
	"github.com/tidwall/geojson"

	"github.com/landbridge/landbridge/internal/geom"
)

// corridorWidthRatio sets corridor half-width as a share of the
// bounding box diagonal of the whole input set.
const corridorWidthRatio = 0.02

// fallbackHalfWidthKM stands in when the bounding box has no
// measurable diagonal, such as a single point.
const fallbackHalfWidthKM = 1.0

// corridorHalfWidthKM derives the corridor half-width for a set of
// shapes. The width tracks the overall extent so corridors stay
// proportionate, and the factor scales it linearly.
func corridorHalfWidthKM(shapes []geojson.Object, factor float64) float64 {
	var diag float64
	if rect, ok := geom.CollectionBounds(shapes); ok {
		diag = geom.DiagonalKM(rect)
	}
	width := diag * corridorWidthRatio
	if width == 0 {
		width = fallbackHalfWidthKM
	}
	return width * factor
}

// buildCorridors widens each spanning tree segment into a capsule
// polygon of the given half-width.
func buildCorridors(tree []Edge, halfWidthKM float64) []*geojson.Polygon {
	corridors := make([]*geojson.Polygon, 0, len(tree))
	for _, edge := range tree {
		corridors = append(corridors,
			geom.SegmentBuffer(edge.Segment.A, edge.Segment.B, halfWidthKM))
	}
	return corridors
}
