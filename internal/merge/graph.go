package merge

import (
	"math"
	"sort"

	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"

	"github.com/landbridge/landbridge/internal/geom"
)

// nearestConnection scans every sample pair from two shapes and returns
// the segment with the smallest distance. The first minimum encountered
// wins. When either side has no samples the shape centroids stand in,
// so degenerate shapes still connect.
func nearestConnection(a, b geojson.Object, samplesA, samplesB []geometry.Point) (geometry.Segment, float64) {
	if len(samplesA) == 0 || len(samplesB) == 0 {
		seg := geometry.Segment{A: geom.Centroid(a), B: geom.Centroid(b)}
		return seg, geom.DistanceKM(seg.A, seg.B)
	}
	var seg geometry.Segment
	best := math.Inf(1)
	for _, pa := range samplesA {
		for _, pb := range samplesB {
			if d := geom.DistanceKM(pa, pb); d < best {
				best = d
				seg = geometry.Segment{A: pa, B: pb}
			}
		}
	}
	return seg, best
}

// buildGraph builds the complete connection graph over the shapes, one
// edge per unordered pair, ordered ascending by distance.
func buildGraph(shapes []geojson.Object, samples [][]geometry.Point) []Edge {
	var edges []Edge
	for i := 0; i < len(shapes); i++ {
		for j := i + 1; j < len(shapes); j++ {
			seg, dist := nearestConnection(shapes[i], shapes[j],
				samples[i], samples[j])
			edges = append(edges, Edge{A: i, B: j, Distance: dist, Segment: seg})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		return edges[i].Distance < edges[j].Distance
	})
	return edges
}

// spanningTree selects a minimum spanning tree from edges already
// sorted ascending by distance, Kruskal style. Scanning stops once
// n-1 edges are accepted.
func spanningTree(edges []Edge, n int) []Edge {
	sets := newDisjointSet(n)
	tree := make([]Edge, 0, n-1)
	for _, edge := range edges {
		if sets.union(edge.A, edge.B) {
			tree = append(tree, edge)
			if len(tree) == n-1 {
				break
			}
		}
	}
	return tree
}

// disjointSet is an array backed union-find with path compression and
// union by rank. Two indices share a representative iff they are
// connected by accepted edges.
type disjointSet struct {
	parent []int
	rank   []int
}

func newDisjointSet(n int) *disjointSet {
	sets := &disjointSet{
		parent: make([]int, n),
		rank:   make([]int, n),
	}
	for i := range sets.parent {
		sets.parent[i] = i
	}
	return sets
}

func (sets *disjointSet) find(x int) int {
	root := x
	for sets.parent[root] != root {
		root = sets.parent[root]
	}
	for sets.parent[x] != root {
		sets.parent[x], x = root, sets.parent[x]
	}
	return root
}

// union joins the sets holding x and y. It reports false when the two
// already share a set.
func (sets *disjointSet) union(x, y int) bool {
	rx, ry := sets.find(x), sets.find(y)
	if rx == ry {
		return false
	}
	if sets.rank[rx] < sets.rank[ry] {
		rx, ry = ry, rx
	}
	sets.parent[ry] = rx
	if sets.rank[rx] == sets.rank[ry] {
		sets.rank[rx]++
	}
	return true
}
