// Package merge joins disjoint polygonal shapes into one connected
// geometry. It samples each shape's outer boundary, finds the shortest
// connection for every pair, selects a minimum spanning tree over those
// connections, widens the selected segments into corridor polygons, and
// unions the originals with the corridors into a single output shape.
package merge

import (
	"errors"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"

	"github.com/landbridge/landbridge/internal/geom"
)

// DefaultSamplesPerRing is the boundary sample target used when the
// caller does not choose one.
const DefaultSamplesPerRing = 24

var (
	// ErrNoShapes is returned when the input sequence is empty.
	ErrNoShapes = errors.New("no shapes provided")
	// ErrInvalidFactor is returned for a negative corridor factor.
	ErrInvalidFactor = errors.New("corridor factor must not be negative")
	// ErrUnionFailure is returned when the union fold ends with no
	// accumulated geometry.
	ErrUnionFailure = errors.New("union produced no result")
)

// Options control a merge run.
type Options struct {
	// CorridorFactor scales corridor width linearly. Values below 1
	// thin connections, values above 1 widen them.
	CorridorFactor float64
	// SamplesPerRing is the target number of boundary samples per
	// outer ring. Zero and below select DefaultSamplesPerRing.
	SamplesPerRing int
}

// DefaultOptions returns the standard merge options.
func DefaultOptions() Options {
	return Options{
		CorridorFactor: 1,
		SamplesPerRing: DefaultSamplesPerRing,
	}
}

// Edge is a candidate connection between two input shapes. A and B are
// indices into the input sequence, A < B. Segment holds the sampled
// boundary points that realized the distance.
type Edge struct {
	A, B     int
	Distance float64 // kilometers
	Segment  geometry.Segment
}

// Debug is a read-only snapshot of the intermediate merge stages. It
// has no effect on the output shape.
type Debug struct {
	// Pairs holds every pairwise connection, ascending by distance.
	Pairs []Edge
	// MSTEdges holds the accepted spanning tree connections.
	MSTEdges []Edge
	// Corridors holds one buffered polygon per spanning tree edge.
	Corridors []*geojson.Polygon
}

// Result is the outcome of a merge run.
type Result struct {
	Output geojson.Object
	Debug  Debug
}

// Merge unions a sequence of polygonal shapes into one connected
// geometry by bridging them with minimum length corridors. The input
// shapes are deep copied and never mutated. A single shape is returned
// unchanged with an empty debug record.
func Merge(shapes []geojson.Object, opts Options) (Result, error) {
	if len(shapes) == 0 {
		return Result{}, ErrNoShapes
	}
	if opts.CorridorFactor < 0 {
		return Result{}, ErrInvalidFactor
	}
	if opts.SamplesPerRing <= 0 {
		opts.SamplesPerRing = DefaultSamplesPerRing
	}
	inputs := make([]geojson.Object, len(shapes))
	for i, shape := range shapes {
		inputs[i] = geom.Copy(shape)
	}
	if len(inputs) == 1 {
		return Result{Output: inputs[0]}, nil
	}

	samples := make([][]geometry.Point, len(inputs))
	for i, shape := range inputs {
		samples[i] = sampleBoundary(shape, opts.SamplesPerRing)
	}
	pairs := buildGraph(inputs, samples)
	tree := spanningTree(pairs, len(inputs))
	halfWidth := corridorHalfWidthKM(inputs, opts.CorridorFactor)
	corridors := buildCorridors(tree, halfWidth)

	pieces := make([]geojson.Object, 0, len(inputs)+len(corridors))
	pieces = append(pieces, inputs...)
	for _, corridor := range corridors {
		pieces = append(pieces, corridor)
	}
	output, err := unionAll(pieces)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Output: output,
		Debug: Debug{
			Pairs:     pairs,
			MSTEdges:  tree,
			Corridors: corridors,
		},
	}, nil
}

// unionAll left-folds the pieces into one geometry. The first piece
// seeds the accumulator and each following piece unions into it, in
// input order.
func unionAll(pieces []geojson.Object) (geojson.Object, error) {
	var acc geojson.Object
	for _, piece := range pieces {
		if acc == nil {
			acc = piece
			continue
		}
		merged, err := geom.Union(acc, piece)
		if err != nil {
			return nil, err
		}
		acc = merged
	}
	if acc == nil {
		return nil, ErrUnionFailure
	}
	return acc, nil
}
