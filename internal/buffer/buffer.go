// Package buffer grows geojson objects outward by a distance in
// meters. The expansion is approximate: boundaries are widened with
// flat quadrilaterals and round joints rather than a true geodesic
// offset, which is plenty for search areas.
package buffer

import (
	"errors"
	"math"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geo"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/gjson"
)

// discSteps is the vertex count of the round joints and endcaps.
const discSteps = 15

// Simple expands a geojson object by meters on every side. Zero and
// negative distances return the object untouched.
func Simple(g geojson.Object, meters float64) (geojson.Object, error) {
	if meters <= 0 {
		return g, nil
	}
	if math.IsInf(meters, 0) || math.IsNaN(meters) {
		return g, errors.New("invalid meters")
	}
	switch g := g.(type) {
	case *geojson.Point:
		return disc(g.Base(), meters), nil
	case *geojson.SimplePoint:
		return disc(g.Base(), meters), nil
	case *geojson.MultiPoint:
		return expandAll(g.Base(), meters)
	case *geojson.LineString:
		return geojson.NewGeometryCollection(
			expandSeries(nil, g.Base(), meters)), nil
	case *geojson.MultiLineString:
		return expandAll(g.Base(), meters)
	case *geojson.Polygon:
		return expandPolygon(g, meters), nil
	case *geojson.MultiPolygon:
		return expandAll(g.Base(), meters)
	case *geojson.Feature:
		bg, err := Simple(g.Base(), meters)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeature(bg, g.Members()), nil
	case *geojson.FeatureCollection:
		feats := make([]geojson.Object, len(g.Base()))
		for i, child := range g.Base() {
			f, err := Simple(child, meters)
			if err != nil {
				return nil, err
			}
			feats[i] = f
		}
		return geojson.NewFeatureCollection(feats), nil
	case *geojson.Circle:
		return Simple(g.Primative(), meters)
	case nil:
		return nil, errors.New("cannot buffer nil object")
	default:
		typ := gjson.Get(g.JSON(), "type").String()
		return nil, errors.New("cannot buffer " + typ + " type")
	}
}

func expandAll(children []geojson.Object, meters float64,
) (*geojson.GeometryCollection, error) {
	geoms := make([]geojson.Object, len(children))
	for i, child := range children {
		g, err := Simple(child, meters)
		if err != nil {
			return nil, err
		}
		geoms[i] = g
	}
	return geojson.NewGeometryCollection(geoms), nil
}

// expandPolygon widens every ring of the polygon, holes included, and
// keeps the original interior.
func expandPolygon(p *geojson.Polygon, meters float64) *geojson.GeometryCollection {
	var geoms []geojson.Object
	b := p.Base()
	geoms = expandSeries(geoms, b.Exterior, meters)
	for _, hole := range b.Holes {
		geoms = expandSeries(geoms, hole, meters)
	}
	geoms = append(geoms, p)
	return geojson.NewGeometryCollection(geoms)
}

// expandSeries appends one flat quad per segment plus a round joint at
// every vertex, covering the series with a constant-width band.
func expandSeries(dst []geojson.Object, s geometry.Series, meters float64,
) []geojson.Object {
	nsegs := s.NumSegments()
	for i := 0; i < nsegs; i++ {
		seg := s.SegmentAt(i)
		if i == 0 {
			dst = append(dst, disc(seg.A, meters))
		}
		dst = append(dst, segmentQuad(seg, meters), disc(seg.B, meters))
	}
	return dst
}

// segmentQuad is the rectangle of width 2*meters around one segment.
func segmentQuad(seg geometry.Segment, meters float64) *geojson.Polygon {
	fwd := geo.BearingTo(seg.A.Y, seg.A.X, seg.B.Y, seg.B.X)
	rev := geo.BearingTo(seg.B.Y, seg.B.X, seg.A.Y, seg.A.X)
	lat1, lon1 := geo.DestinationPoint(seg.A.Y, seg.A.X, meters, fwd-90)
	lat2, lon2 := geo.DestinationPoint(seg.A.Y, seg.A.X, meters, fwd+90)
	lat3, lon3 := geo.DestinationPoint(seg.B.Y, seg.B.X, meters, rev-90)
	lat4, lon4 := geo.DestinationPoint(seg.B.Y, seg.B.X, meters, rev+90)
	return geojson.NewPolygon(
		geometry.NewPoly([]geometry.Point{
			{X: lon1, Y: lat1},
			{X: lon2, Y: lat2},
			{X: lon3, Y: lat3},
			{X: lon4, Y: lat4},
			{X: lon1, Y: lat1},
		}, nil, nil))
}

// disc is an approximate circle of the given radius around a point.
func disc(p geometry.Point, meters float64) *geojson.Polygon {
	meters = geo.NormalizeDistance(meters)

	// convert the radius to lat/lon degrees at this latitude
	maxY, _ := geo.DestinationPoint(p.Y, p.X, meters, 0)
	_, maxX := geo.DestinationPoint(p.Y, p.X, meters, 90)
	minY, _ := geo.DestinationPoint(p.Y, p.X, meters, 180)
	_, minX := geo.DestinationPoint(p.Y, p.X, meters, 270)
	lons := (maxX - minX) / 2
	lats := (maxY - minY) / 2

	points := make([]geometry.Point, 0, discSteps+1)
	for th := 0.0; th <= 360.0; th += 360.0 / float64(discSteps) {
		radians := (math.Pi / 180) * th
		points = append(points, geometry.Point{
			X: p.X + lons*math.Cos(radians),
			Y: p.Y + lats*math.Sin(radians),
		})
	}
	points = append(points, points[0])
	return geojson.NewPolygon(
		geometry.NewPoly(points, nil, &geometry.IndexOptions{
			Kind: geometry.None,
		}),
	)
}
