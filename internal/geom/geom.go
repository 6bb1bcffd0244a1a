package geom

import (
	"errors"

	polyclip "github.com/akavel/polyclip-go"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geo"
	"github.com/tidwall/geojson/geometry"
)

// All distances in this package are kilometers over the WGS84 mean sphere.

var parseOpts = geojson.ParseOptions{
	IndexChildren:     64,
	IndexGeometry:     64,
	IndexGeometryKind: geometry.None,
}

// DistanceKM returns the great-circle distance between two points.
func DistanceKM(a, b geometry.Point) float64 {
	return geo.DistanceTo(a.Y, a.X, b.Y, b.X) / 1000
}

// PathLengthKM returns the summed segment distance along a path of points.
// Paths with fewer than two points have zero length.
func PathLengthKM(points []geometry.Point) float64 {
	var total float64
	for i := 1; i < len(points); i++ {
		total += DistanceKM(points[i-1], points[i])
	}
	return total
}

// CollectionBounds returns the rect covering every object. ok is false when
// there are no objects with measurable geometry.
func CollectionBounds(objs []geojson.Object) (rect geometry.Rect, ok bool) {
	for _, o := range objs {
		if o == nil || o.Empty() {
			continue
		}
		r := o.Rect()
		if !ok {
			rect = r
			ok = true
			continue
		}
		if r.Min.X < rect.Min.X {
			rect.Min.X = r.Min.X
		}
		if r.Min.Y < rect.Min.Y {
			rect.Min.Y = r.Min.Y
		}
		if r.Max.X > rect.Max.X {
			rect.Max.X = r.Max.X
		}
		if r.Max.Y > rect.Max.Y {
			rect.Max.Y = r.Max.Y
		}
	}
	return rect, ok
}

// DiagonalKM returns the distance between the min and max corners of a rect.
func DiagonalKM(rect geometry.Rect) float64 {
	return DistanceKM(rect.Min, rect.Max)
}

// Centroid returns the center point of an object.
func Centroid(o geojson.Object) geometry.Point {
	if o == nil {
		return geometry.Point{}
	}
	return o.Center()
}

const bufferSteps = 15

// minBufferWidthKM keeps a requested zero-width buffer from producing a
// collapsed ring. One millimeter.
const minBufferWidthKM = 1e-6

// SegmentBuffer widens the segment a-b symmetrically by widthKM kilometers,
// returning a capsule polygon: two offset sides plus rounded end caps traced
// at stepped bearings.
func SegmentBuffer(a, b geometry.Point, widthKM float64) *geojson.Polygon {
	if widthKM < minBufferWidthKM {
		widthKM = minBufferWidthKM
	}
	meters := geo.NormalizeDistance(widthKM * 1000)

	bearAB := geo.BearingTo(a.Y, a.X, b.Y, b.X)
	bearBA := bearAB + 180
	if a != b {
		bearBA = geo.BearingTo(b.Y, b.X, a.Y, a.X)
	}

	points := make([]geometry.Point, 0, (bufferSteps+1)*2+1)
	appendCap := func(center geometry.Point, baseBearing float64) {
		// sweep the half circle facing away from the other endpoint
		for i := 0; i <= bufferSteps; i++ {
			bearing := baseBearing + 90 + float64(i)*(180.0/bufferSteps)
			lat, lon := geo.DestinationPoint(center.Y, center.X, meters, bearing)
			points = append(points, geometry.Point{X: lon, Y: lat})
		}
	}
	appendCap(a, bearAB)
	appendCap(b, bearBA)
	points = append(points, points[0])

	return geojson.NewPolygon(
		geometry.NewPoly(points, nil, &geometry.IndexOptions{
			Kind: geometry.None,
		}),
	)
}

// Union returns the boolean union of two polygonal objects. Inputs must be
// a Polygon, MultiPolygon, or Feature wrapping one. An empty operand yields
// the other operand unchanged.
func Union(a, b geojson.Object) (geojson.Object, error) {
	ca, err := toClip(a)
	if err != nil {
		return nil, err
	}
	cb, err := toClip(b)
	if err != nil {
		return nil, err
	}
	if len(ca) == 0 {
		return b, nil
	}
	if len(cb) == 0 {
		return a, nil
	}
	return fromClip(ca.Construct(polyclip.UNION, cb)), nil
}

// toClip flattens the rings of a polygonal object into polyclip contours.
func toClip(o geojson.Object) (polyclip.Polygon, error) {
	var poly polyclip.Polygon
	appendPoly := func(base *geometry.Poly) {
		rings := []geometry.Ring{base.Exterior}
		rings = append(rings, base.Holes...)
		for _, ring := range rings {
			if ct := clipContour(ring); len(ct) > 0 {
				poly = append(poly, ct)
			}
		}
	}
	switch g := o.(type) {
	case nil:
	case *geojson.Polygon:
		appendPoly(g.Base())
	case *geojson.MultiPolygon:
		for _, child := range g.Base() {
			p, ok := child.(*geojson.Polygon)
			if !ok {
				return nil, errors.New("multipolygon with non-polygon child")
			}
			appendPoly(p.Base())
		}
	case *geojson.Feature:
		return toClip(g.Base())
	default:
		return nil, errors.New("object is not polygonal")
	}
	return poly, nil
}

func clipContour(ring geometry.Ring) polyclip.Contour {
	if ring == nil {
		return nil
	}
	n := ring.NumPoints()
	if n > 1 && ring.PointAt(0) == ring.PointAt(n-1) {
		// contours are implicitly closed
		n--
	}
	var ct polyclip.Contour
	for i := 0; i < n; i++ {
		pt := ring.PointAt(i)
		ct = append(ct, polyclip.Point{X: pt.X, Y: pt.Y})
	}
	return ct
}

// fromClip reassembles polyclip output contours into a Polygon or
// MultiPolygon. A contour contained by an even number of others is an
// exterior ring; odd-depth contours are holes of their innermost enclosing
// exterior.
func fromClip(poly polyclip.Polygon) geojson.Object {
	type contour struct {
		index int
		ct    polyclip.Contour
		depth int
	}
	var contours []contour
	for i, ct := range poly {
		if len(ct) < 3 {
			continue
		}
		contours = append(contours, contour{index: i, ct: ct})
	}
	for i := range contours {
		pt := contours[i].ct[0]
		for j := range contours {
			if i != j && contours[j].ct.Contains(pt) {
				contours[i].depth++
			}
		}
	}

	var exteriors []contour
	var holes []contour
	for _, c := range contours {
		if c.depth%2 == 0 {
			exteriors = append(exteriors, c)
		} else {
			holes = append(holes, c)
		}
	}

	// assign each hole to its innermost enclosing exterior
	holesOf := make(map[int][][]geometry.Point)
	for _, h := range holes {
		owner := -1
		var ownerArea float64
		for _, e := range exteriors {
			if e.depth != h.depth-1 || !e.ct.Contains(h.ct[0]) {
				continue
			}
			area := bboxArea(e.ct)
			if owner == -1 || area < ownerArea {
				owner = e.index
				ownerArea = area
			}
		}
		if owner != -1 {
			holesOf[owner] = append(holesOf[owner], ringPoints(h.ct))
		}
	}

	polys := make([]*geometry.Poly, 0, len(exteriors))
	for _, e := range exteriors {
		polys = append(polys, geometry.NewPoly(
			ringPoints(e.ct), holesOf[e.index], &geometry.IndexOptions{
				Kind: geometry.None,
			},
		))
	}
	if len(polys) == 1 {
		return geojson.NewPolygon(polys[0])
	}
	return geojson.NewMultiPolygon(polys)
}

func ringPoints(ct polyclip.Contour) []geometry.Point {
	points := make([]geometry.Point, 0, len(ct)+1)
	for _, pt := range ct {
		points = append(points, geometry.Point{X: pt.X, Y: pt.Y})
	}
	// close the ring
	points = append(points, points[0])
	return points
}

func bboxArea(ct polyclip.Contour) float64 {
	bb := ct.BoundingBox()
	return (bb.Max.X - bb.Min.X) * (bb.Max.Y - bb.Min.Y)
}

// Copy returns a deep copy of an object. Parsed geometry values share
// memory, so the object is round-tripped through its JSON form.
func Copy(o geojson.Object) geojson.Object {
	if o == nil {
		return nil
	}
	copied, err := geojson.Parse(string(o.AppendJSON(nil)), &parseOpts)
	if err != nil {
		return o
	}
	return copied
}

// OuterRings returns the outer ring of each polygon in a Polygon,
// MultiPolygon, or Feature wrapping one. Holes are excluded. Returns nil
// for any other type.
func OuterRings(o geojson.Object) []geometry.Series {
	switch g := o.(type) {
	case *geojson.Polygon:
		if base := g.Base(); base.Exterior != nil {
			return []geometry.Series{base.Exterior}
		}
	case *geojson.MultiPolygon:
		var rings []geometry.Series
		for _, child := range g.Base() {
			rings = append(rings, OuterRings(child)...)
		}
		return rings
	case *geojson.Feature:
		return OuterRings(g.Base())
	}
	return nil
}

// IsPolygonal reports whether the object is a Polygon, MultiPolygon, or a
// Feature wrapping one.
func IsPolygonal(o geojson.Object) bool {
	switch g := o.(type) {
	case *geojson.Polygon, *geojson.MultiPolygon:
		return true
	case *geojson.Feature:
		return IsPolygonal(g.Base())
	}
	return false
}
