package collection

import (
	"runtime"

	"github.com/tidwall/btree"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/rtree"

	"github.com/landbridge/landbridge/internal/deadline"
	"github.com/landbridge/landbridge/internal/object"
)

// yieldStep forces the iterator to yield goroutine every 256 steps.
const yieldStep = 256

// Cursor allows for quickly paging through Scan, Intersects, and Nearby
type Cursor interface {
	Offset() uint64
	Step(count uint64)
}

func byID(a, b *object.Object) bool {
	return a.ID() < b.ID()
}

func byExpires(a, b *object.Object) bool {
	if a.Expires() < b.Expires() {
		return true
	}
	if a.Expires() > b.Expires() {
		return false
	}
	// the expirations match so we'll compare IDs, which are always unique.
	return byID(a, b)
}

// Collection represents a collection of geojson objects.
type Collection struct {
	objs    btree.Map[string, *object.Object]      // sorted by id
	spatial rtree.RTreeGN[float32, *object.Object] // geospatially indexed
	expires *btree.BTreeG[*object.Object]          // sorted by ex+id
	weight  int
	points  int
	objects int
}

var optsNoLock = btree.Options{NoLocks: true}

// New creates an empty collection
func New() *Collection {
	col := &Collection{
		expires: btree.NewBTreeGOptions(byExpires, optsNoLock),
	}
	return col
}

// Count returns the number of objects in collection.
func (c *Collection) Count() int {
	return c.objects
}

// PointCount returns the number of points (lat/lon coordinates) in collection.
func (c *Collection) PointCount() int {
	return c.points
}

// TotalWeight calculates the in-memory cost of the collection in bytes.
func (c *Collection) TotalWeight() int {
	return c.weight
}

// Bounds returns the bounds of all the items in the collection.
func (c *Collection) Bounds() (rect geometry.Rect, ok bool) {
	_, _, left := c.spatial.LeftMost()
	_, _, bottom := c.spatial.BottomMost()
	_, _, right := c.spatial.RightMost()
	_, _, top := c.spatial.TopMost()
	if left == nil {
		return rect, false
	}
	return geometry.Rect{
		Min: geometry.Point{X: left.Rect().Min.X, Y: bottom.Rect().Min.Y},
		Max: geometry.Point{X: right.Rect().Max.X, Y: top.Rect().Max.Y},
	}, true
}

func (c *Collection) indexDelete(item *object.Object) {
	if !item.Geo().Empty() {
		c.spatial.Delete(rtreeItem(item))
	}
}

func (c *Collection) indexInsert(item *object.Object) {
	if !item.Geo().Empty() {
		c.spatial.Insert(rtreeItem(item))
	}
}

const dRNDTOWARDS = (1.0 - 1.0/8388608.0) /* Round towards zero */
const dRNDAWAY = (1.0 + 1.0/8388608.0)    /* Round away from zero */

func rtreeValueDown(d float64) float32 {
	f := float32(d)
	if float64(f) > d {
		if d < 0 {
			f = float32(d * dRNDAWAY)
		} else {
			f = float32(d * dRNDTOWARDS)
		}
	}
	return f
}
func rtreeValueUp(d float64) float32 {
	f := float32(d)
	if float64(f) < d {
		if d < 0 {
			f = float32(d * dRNDTOWARDS)
		} else {
			f = float32(d * dRNDAWAY)
		}
	}
	return f
}

func rtreeItem(item *object.Object) (min, max [2]float32, data *object.Object) {
	min, max = rtreeRect(item.Rect())
	return min, max, item
}

func rtreeRect(rect geometry.Rect) (min, max [2]float32) {
	return [2]float32{
			rtreeValueDown(rect.Min.X),
			rtreeValueDown(rect.Min.Y),
		}, [2]float32{
			rtreeValueUp(rect.Max.X),
			rtreeValueUp(rect.Max.Y),
		}
}

// Set adds or replaces an object in the collection and returns the
// previous object, if any.
func (c *Collection) Set(obj *object.Object) (prev *object.Object) {
	prev, _ = c.objs.Set(obj.ID(), obj)
	c.setFill(prev, obj)
	return prev
}

func (c *Collection) setFill(prev, obj *object.Object) {
	if prev != nil {
		c.indexDelete(prev)
		c.objects--
		if prev.Expires() != 0 {
			c.expires.Delete(prev)
		}
		c.points -= prev.Geo().NumPoints()
		c.weight -= prev.Weight()
	}
	c.indexInsert(obj)
	c.objects++
	if obj.Expires() != 0 {
		c.expires.Set(obj)
	}
	c.points += obj.Geo().NumPoints()
	c.weight += obj.Weight()
}

// Delete removes an object and returns it.
// If the object does not exist then the return value will be nil.
func (c *Collection) Delete(id string) (prev *object.Object) {
	prev, _ = c.objs.Delete(id)
	if prev == nil {
		return nil
	}
	c.indexDelete(prev)
	c.objects--
	if prev.Expires() != 0 {
		c.expires.Delete(prev)
	}
	c.points -= prev.Geo().NumPoints()
	c.weight -= prev.Weight()
	return prev
}

// Get returns an object.
// If the object does not exist then the return value will be nil.
func (c *Collection) Get(id string) *object.Object {
	obj, _ := c.objs.Get(id)
	return obj
}

// Scan iterates though the collection ids.
func (c *Collection) Scan(
	desc bool,
	cursor Cursor,
	deadline *deadline.Deadline,
	iterator func(obj *object.Object) bool,
) bool {
	var keepon = true
	var count uint64
	var offset uint64
	if cursor != nil {
		offset = cursor.Offset()
		cursor.Step(offset)
	}
	iter := func(_ string, obj *object.Object) bool {
		count++
		if count <= offset {
			return true
		}
		nextStep(count, cursor, deadline)
		keepon = iterator(obj)
		return keepon
	}
	if desc {
		c.objs.Reverse(iter)
	} else {
		c.objs.Scan(iter)
	}
	return keepon
}

// ScanRange iterates though the collection starting with specified id.
func (c *Collection) ScanRange(
	start, end string,
	desc bool,
	cursor Cursor,
	deadline *deadline.Deadline,
	iterator func(o *object.Object) bool,
) bool {
	var keepon = true
	var count uint64
	var offset uint64
	if cursor != nil {
		offset = cursor.Offset()
		cursor.Step(offset)
	}
	iter := func(_ string, o *object.Object) bool {
		count++
		if count <= offset {
			return true
		}
		nextStep(count, cursor, deadline)
		if !desc {
			if o.ID() >= end {
				return false
			}
		} else {
			if o.ID() <= end {
				return false
			}
		}
		keepon = iterator(o)
		return keepon
	}

	if desc {
		c.objs.Descend(start, iter)
	} else {
		c.objs.Ascend(start, iter)
	}
	return keepon
}

// ScanGreaterOrEqual iterates though the collection starting with specified id.
func (c *Collection) ScanGreaterOrEqual(id string, desc bool,
	cursor Cursor,
	deadline *deadline.Deadline,
	iterator func(o *object.Object) bool,
) bool {
	var keepon = true
	var count uint64
	var offset uint64
	if cursor != nil {
		offset = cursor.Offset()
		cursor.Step(offset)
	}
	iter := func(_ string, o *object.Object) bool {
		count++
		if count <= offset {
			return true
		}
		nextStep(count, cursor, deadline)
		keepon = iterator(o)
		return keepon
	}
	if desc {
		c.objs.Descend(id, iter)
	} else {
		c.objs.Ascend(id, iter)
	}
	return keepon
}

func (c *Collection) geoSearch(
	rect geometry.Rect,
	iter func(o *object.Object) bool,
) bool {
	alive := true
	min, max := rtreeRect(rect)
	c.spatial.Search(
		min, max,
		func(_, _ [2]float32, o *object.Object) bool {
			alive = iter(o)
			return alive
		},
	)
	return alive
}

// Intersects returns all objects that intersect an object or bounding box.
func (c *Collection) Intersects(
	gobj geojson.Object,
	cursor Cursor,
	deadline *deadline.Deadline,
	iter func(o *object.Object) bool,
) bool {
	var count uint64
	var offset uint64
	if cursor != nil {
		offset = cursor.Offset()
		cursor.Step(offset)
	}
	return c.geoSearch(gobj.Rect(), func(o *object.Object) bool {
		count++
		if count <= offset {
			return true
		}
		nextStep(count, cursor, deadline)
		if o.Geo().Intersects(gobj) {
			return iter(o)
		}
		return true
	})
}

// Nearby returns the nearest neighbors
func (c *Collection) Nearby(
	target geojson.Object,
	cursor Cursor,
	deadline *deadline.Deadline,
	iter func(o *object.Object, dist float64) bool,
) bool {
	alive := true
	center := target.Center()
	var count uint64
	var offset uint64
	if cursor != nil {
		offset = cursor.Offset()
		cursor.Step(offset)
	}
	distFn := boxDistAlgo[*object.Object]([2]float64{center.X, center.Y})
	c.spatial.Nearby(
		func(min, max [2]float32, data *object.Object, item bool) float64 {
			return distFn(
				[2]float64{float64(min[0]), float64(min[1])},
				[2]float64{float64(max[0]), float64(max[1])},
				data, item,
			)
		},
		func(_, _ [2]float32, o *object.Object, dist float64) bool {
			count++
			if count <= offset {
				return true
			}
			nextStep(count, cursor, deadline)
			alive = iter(o, dist)
			return alive
		},
	)
	return alive
}

func nextStep(step uint64, cursor Cursor, deadline *deadline.Deadline) {
	if step&(yieldStep-1) == (yieldStep - 1) {
		runtime.Gosched()
		deadline.Check()
	}
	if cursor != nil {
		cursor.Step(1)
	}
}

// ScanExpired iterates over objects that have expired as of unixNano,
// soonest first. Objects without a TTL are never visited.
func (c *Collection) ScanExpired(unixNano int64, iter func(o *object.Object) bool) {
	c.expires.Scan(func(o *object.Object) bool {
		if !o.Expired(unixNano) {
			return false
		}
		return iter(o)
	})
}
