package server

import (
	"bytes"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/landbridge/landbridge/internal/buffer"
	"github.com/landbridge/landbridge/internal/object"
	"github.com/mmcloughlin/geohash"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geo"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/resp"
)

const defaultCircleSteps = 64

// searchArea is the parsed target of a NEARBY or INTERSECTS command.
type searchArea struct {
	searchScanBaseTokens
	obj geojson.Object
}

func (server *Server) cmdSearchArgs(
	cmd string, vs []string, types []string,
) (s searchArea, err error) {
	var t searchScanBaseTokens
	vs, t, err = parseSearchScanBaseTokens(cmd, t, vs)
	if err != nil {
		return
	}
	s.searchScanBaseTokens = t
	var typ string
	var ok bool
	if vs, typ, ok = tokenval(vs); !ok || typ == "" {
		err = errInvalidNumberOfArguments
		return
	}
	if s.output == outputBounds && cmd == "intersects" {
		if _, err := strconv.ParseFloat(typ, 64); err == nil {
			// It's likely that the output was not specified, but rather
			// the search bounds.
			s.output = defaultSearchOutput
			vs = append([]string{typ}, vs...)
			typ = "BOUNDS"
		}
	}
	var bufferMeters float64
	if cmd == "intersects" && lc(typ, "buffer") {
		var smeters string
		if vs, smeters, ok = tokenval(vs); !ok || smeters == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if bufferMeters, err = strconv.ParseFloat(smeters, 64); err != nil ||
			bufferMeters < 0 {
			err = errInvalidArgument(smeters)
			return
		}
		if vs, typ, ok = tokenval(vs); !ok || typ == "" {
			err = errInvalidNumberOfArguments
			return
		}
	}
	ltyp := strings.ToLower(typ)
	var found bool
	for _, t := range types {
		if ltyp == t {
			found = true
			break
		}
	}
	if !found {
		err = errInvalidArgument(typ)
		return
	}
	switch ltyp {
	case "point":
		var slat, slon, smeters string
		if vs, slat, ok = tokenval(vs); !ok || slat == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if vs, slon, ok = tokenval(vs); !ok || slon == "" {
			err = errInvalidNumberOfArguments
			return
		}
		var lat, lon, meters float64
		if lat, err = strconv.ParseFloat(slat, 64); err != nil {
			err = errInvalidArgument(slat)
			return
		}
		if lon, err = strconv.ParseFloat(slon, 64); err != nil {
			err = errInvalidArgument(slon)
			return
		}
		// radius is optional for nearby
		if vs, smeters, ok = tokenval(vs); ok && smeters != "" {
			if meters, err = strconv.ParseFloat(smeters, 64); err != nil {
				err = errInvalidArgument(smeters)
				return
			}
			if meters < 0 {
				err = errInvalidArgument(smeters)
				return
			}
		} else {
			meters = -1
		}
		s.obj = geojson.NewCircle(geometry.Point{X: lon, Y: lat}, meters,
			defaultCircleSteps)
	case "object":
		var obj string
		if vs, obj, ok = tokenval(vs); !ok || obj == "" {
			err = errInvalidNumberOfArguments
			return
		}
		s.obj, err = geojson.Parse(obj, &server.geomParseOpts)
		if err != nil {
			return
		}
	case "bounds":
		var sminlat, sminlon, smaxlat, smaxlon string
		if vs, sminlat, ok = tokenval(vs); !ok || sminlat == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if vs, sminlon, ok = tokenval(vs); !ok || sminlon == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if vs, smaxlat, ok = tokenval(vs); !ok || smaxlat == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if vs, smaxlon, ok = tokenval(vs); !ok || smaxlon == "" {
			err = errInvalidNumberOfArguments
			return
		}
		var minlat, minlon, maxlat, maxlon float64
		if minlat, err = strconv.ParseFloat(sminlat, 64); err != nil {
			err = errInvalidArgument(sminlat)
			return
		}
		if minlon, err = strconv.ParseFloat(sminlon, 64); err != nil {
			err = errInvalidArgument(sminlon)
			return
		}
		if maxlat, err = strconv.ParseFloat(smaxlat, 64); err != nil {
			err = errInvalidArgument(smaxlat)
			return
		}
		if maxlon, err = strconv.ParseFloat(smaxlon, 64); err != nil {
			err = errInvalidArgument(smaxlon)
			return
		}
		s.obj = geojson.NewRect(geometry.Rect{
			Min: geometry.Point{X: minlon, Y: minlat},
			Max: geometry.Point{X: maxlon, Y: maxlat},
		})
	case "hash":
		var hash string
		if vs, hash, ok = tokenval(vs); !ok || hash == "" {
			err = errInvalidNumberOfArguments
			return
		}
		box := geohash.BoundingBox(hash)
		s.obj = geojson.NewRect(geometry.Rect{
			Min: geometry.Point{X: box.MinLng, Y: box.MinLat},
			Max: geometry.Point{X: box.MaxLng, Y: box.MaxLat},
		})
	case "get":
		var key, id string
		if vs, key, ok = tokenval(vs); !ok || key == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if vs, id, ok = tokenval(vs); !ok || id == "" {
			err = errInvalidNumberOfArguments
			return
		}
		col := server.getCol(key)
		if col == nil {
			err = errKeyNotFound
			return
		}
		o := col.Get(id)
		if o == nil {
			err = errIDNotFound
			return
		}
		s.obj = o.Geo()
	}
	if bufferMeters > 0 {
		if _, ok := s.obj.(*geojson.Rect); ok {
			// raw rects cannot be buffered directly
			rect := s.obj.Rect()
			s.obj = boundsPolygon(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y)
		}
		s.obj, err = buffer.Simple(s.obj, bufferMeters)
		if err != nil {
			return
		}
	}
	if len(vs) != 0 {
		err = errInvalidNumberOfArguments
		return
	}
	return
}

var nearbyTypes = []string{"point"}
var intersectsTypes = []string{"bounds", "hash", "get", "object"}

func (server *Server) cmdNearby(msg *Message) (res resp.Value, err error) {
	start := time.Now()
	vs := msg.Args[1:]
	wr := &bytes.Buffer{}
	s, err := server.cmdSearchArgs("nearby", vs, nearbyTypes)
	if err != nil {
		return NOMessage, err
	}
	sw, err := server.newScanWriter(wr, msg, s.key, s.output, s.precision,
		s.globs, s.cursor, s.limit, s.nofields)
	if err != nil {
		return NOMessage, err
	}
	if msg.OutputType == JSON {
		wr.WriteString(`{"ok":true`)
	}
	if sw.col != nil {
		iter := func(o *object.Object, dist float64) bool {
			meters := 0.0
			if s.distance {
				meters = geo.DistanceFromHaversine(dist)
			}
			return sw.pushObject(ScanWriterParams{
				obj:        o,
				dist:       meters,
				distOutput: s.distance,
				noTest:     true,
			})
		}
		server.nearestNeighbors(&s, sw, msg, s.obj.(*geojson.Circle), iter)
	}
	sw.writeFoot()
	if msg.OutputType == JSON {
		wr.WriteString(`,"elapsed":"` + time.Now().Sub(start).String() + "\"}")
		return resp.BytesValue(wr.Bytes()), nil
	}
	return sw.respOut, nil
}

type iterItem struct {
	o    *object.Object
	dist float64
}

// nearestNeighbors collects the matching objects ordered by exact
// distance from the target center. The spatial index alone orders by
// bounding box distance, which is not exact for polygons.
func (server *Server) nearestNeighbors(
	s *searchArea, sw *scanWriter, msg *Message, target *geojson.Circle,
	iter func(o *object.Object, dist float64) bool,
) {
	maxDist := target.Haversine()
	limit := sw.limit
	now := time.Now().UnixNano()
	var items []iterItem
	sw.col.Nearby(target, sw, msg.Deadline, func(o *object.Object, _ float64) bool {
		if o.Expired(now) {
			return true
		}
		ok, keepGoing := sw.testObject(o)
		if !ok {
			return true
		}
		dist := target.HaversineTo(o.Geo().Center())
		if maxDist > 0 && dist > maxDist {
			return false
		}
		items = append(items, iterItem{o: o, dist: dist})
		if !keepGoing {
			return false
		}
		return uint64(len(items)) < limit
	})
	sort.Slice(items, func(i, j int) bool {
		return items[i].dist < items[j].dist
	})
	for _, item := range items {
		if !iter(item.o, item.dist) {
			return
		}
	}
}

func (server *Server) cmdIntersects(msg *Message) (res resp.Value, err error) {
	start := time.Now()
	vs := msg.Args[1:]

	wr := &bytes.Buffer{}
	s, err := server.cmdSearchArgs("intersects", vs, intersectsTypes)
	if err != nil {
		return NOMessage, err
	}
	sw, err := server.newScanWriter(wr, msg, s.key, s.output, s.precision,
		s.globs, s.cursor, s.limit, s.nofields)
	if err != nil {
		return NOMessage, err
	}
	if msg.OutputType == JSON {
		wr.WriteString(`{"ok":true`)
	}
	if sw.col != nil {
		now := time.Now().UnixNano()
		sw.col.Intersects(s.obj, sw, msg.Deadline, func(o *object.Object) bool {
			if o.Expired(now) {
				return true
			}
			return sw.pushObject(ScanWriterParams{obj: o})
		})
	}
	sw.writeFoot()
	if msg.OutputType == JSON {
		wr.WriteString(`,"elapsed":"` + time.Now().Sub(start).String() + "\"}")
		return resp.BytesValue(wr.Bytes()), nil
	}
	return sw.respOut, nil
}
