package server

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/landbridge/landbridge/internal/glob"
	"github.com/landbridge/landbridge/internal/log"
	"github.com/landbridge/landbridge/internal/merge"
	"github.com/landbridge/landbridge/internal/object"
	"github.com/tidwall/buntdb"
	"github.com/tidwall/geojson"
	"github.com/tidwall/geojson/geometry"
	"github.com/tidwall/resp"
)

// mergeHistoryTTL is how long a merge journal entry survives.
const mergeHistoryTTL = 24 * time.Hour

// mergeArgs is the parsed form of a MERGE command.
type mergeArgs struct {
	key     string
	pattern string
	bounds  geojson.Object
	opts    merge.Options
	store   bool
	destKey string
	destID  string
	debug   bool
}

func (server *Server) parseMergeArgs(vs []string) (ma mergeArgs, err error) {
	var ok bool
	if vs, ma.key, ok = tokenval(vs); !ok || ma.key == "" {
		err = errInvalidNumberOfArguments
		return
	}
	ma.opts = merge.Options{
		CorridorFactor: server.config.mergeFactor(),
		SamplesPerRing: server.config.mergeSamples(),
	}
	var hasFactor, hasSamples bool
	var nvs []string
	var wtok string
	for {
		nvs, wtok, ok = tokenval(vs)
		if !ok || wtok == "" {
			break
		}
		switch strings.ToLower(wtok) {
		default:
			err = errInvalidArgument(wtok)
			return
		case "match":
			vs = nvs
			if ma.pattern != "" {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
			if vs, ma.pattern, ok = tokenval(vs); !ok || ma.pattern == "" {
				err = errInvalidNumberOfArguments
				return
			}
		case "bounds":
			vs = nvs
			if ma.bounds != nil {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
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
			ma.bounds = geojson.NewRect(geometry.Rect{
				Min: geometry.Point{X: minlon, Y: minlat},
				Max: geometry.Point{X: maxlon, Y: maxlat},
			})
		case "factor":
			vs = nvs
			if hasFactor {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
			var sfactor string
			if vs, sfactor, ok = tokenval(vs); !ok || sfactor == "" {
				err = errInvalidNumberOfArguments
				return
			}
			var factor float64
			factor, err = strconv.ParseFloat(sfactor, 64)
			if err != nil || factor < 0 {
				err = errInvalidArgument(sfactor)
				return
			}
			ma.opts.CorridorFactor = factor
			hasFactor = true
		case "samples":
			vs = nvs
			if hasSamples {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
			var ssamples string
			if vs, ssamples, ok = tokenval(vs); !ok || ssamples == "" {
				err = errInvalidNumberOfArguments
				return
			}
			var samples uint64
			samples, err = strconv.ParseUint(ssamples, 10, 32)
			if err != nil || samples == 0 {
				err = errInvalidArgument(ssamples)
				return
			}
			ma.opts.SamplesPerRing = int(samples)
			hasSamples = true
		case "store":
			vs = nvs
			if ma.store {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
			if vs, ma.destKey, ok = tokenval(vs); !ok || ma.destKey == "" {
				err = errInvalidNumberOfArguments
				return
			}
			if vs, ma.destID, ok = tokenval(vs); !ok || ma.destID == "" {
				err = errInvalidNumberOfArguments
				return
			}
			ma.store = true
		case "debug":
			vs = nvs
			if ma.debug {
				err = errDuplicateArgument(strings.ToUpper(wtok))
				return
			}
			ma.debug = true
		}
	}
	if len(vs) != 0 {
		err = errInvalidNumberOfArguments
		return
	}
	return
}

func (server *Server) cmdMerge(msg *Message) (res resp.Value, d commandDetails, err error) {
	start := time.Now()
	vs := msg.Args[1:]

	ma, err := server.parseMergeArgs(vs)
	if err != nil {
		return
	}
	col := server.getCol(ma.key)
	if col == nil {
		err = errKeyNotFound
		return
	}

	// gather the matching shapes in id order
	now := time.Now().UnixNano()
	var shapes []geojson.Object
	iter := func(o *object.Object) bool {
		if o.Expired(now) {
			return true
		}
		if ma.pattern != "" {
			if match, _ := glob.Match(ma.pattern, o.ID()); !match {
				return true
			}
		}
		if ma.bounds != nil && !o.Geo().Intersects(ma.bounds) {
			return true
		}
		shapes = append(shapes, o.Geo())
		return true
	}
	if ma.pattern != "" {
		g := glob.Parse(ma.pattern, false)
		if g.Limits[0] == "" && g.Limits[1] == "" {
			col.Scan(false, nil, msg.Deadline, iter)
		} else {
			col.ScanRange(g.Limits[0], g.Limits[1], false, nil,
				msg.Deadline, iter)
		}
	} else {
		col.Scan(false, nil, msg.Deadline, iter)
	}

	result, merr := merge.Merge(shapes, ma.opts)
	if merr != nil {
		err = merr
		return
	}
	data := result.Output.AppendJSON(nil)

	if ma.store {
		nmsg := *msg
		nmsg.Args = []string{"SET", ma.destKey, ma.destID, "OBJECT", string(data)}
		// SET destkey destid OBJECT json
		res, d, err = server.cmdSet(&nmsg)
		if err != nil {
			return
		}
	}

	// skip journaling when the command is replayed from the aof at startup
	if msg.ConnType != Null || msg.OutputType != Null {
		server.writeMergeHistory(ma, len(shapes))
	}

	switch msg.OutputType {
	case JSON:
		var buf bytes.Buffer
		buf.WriteString(`{"ok":true`)
		if ma.store {
			buf.WriteString(`,"shapes":` + strconv.Itoa(len(shapes)))
			buf.WriteString(`,"corridors":` + strconv.Itoa(len(result.Debug.Corridors)))
			buf.WriteString(`,"stored":true`)
		} else {
			buf.WriteString(`,"object":`)
			buf.Write(data)
		}
		if ma.debug {
			buf.WriteString(`,"debug":`)
			buf.Write(appendJSONMergeDebug(nil, result.Debug))
		}
		buf.WriteString(`,"elapsed":"` + time.Now().Sub(start).String() + "\"}")
		res = resp.StringValue(buf.String())
	case RESP:
		if ma.store {
			res = resp.IntegerValue(len(shapes))
		} else {
			res = resp.BytesValue(data)
		}
	}
	return
}

func appendJSONMergeEdge(dst []byte, e merge.Edge) []byte {
	dst = append(dst, `{"a":`...)
	dst = strconv.AppendInt(dst, int64(e.A), 10)
	dst = append(dst, `,"b":`...)
	dst = strconv.AppendInt(dst, int64(e.B), 10)
	dst = append(dst, `,"km":`...)
	dst = strconv.AppendFloat(dst, e.Distance, 'f', -1, 64)
	dst = append(dst, `,"segment":[[`...)
	dst = strconv.AppendFloat(dst, e.Segment.A.X, 'f', -1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, e.Segment.A.Y, 'f', -1, 64)
	dst = append(dst, `],[`...)
	dst = strconv.AppendFloat(dst, e.Segment.B.X, 'f', -1, 64)
	dst = append(dst, ',')
	dst = strconv.AppendFloat(dst, e.Segment.B.Y, 'f', -1, 64)
	dst = append(dst, `]]}`...)
	return dst
}

func appendJSONMergeDebug(dst []byte, dbg merge.Debug) []byte {
	dst = append(dst, `{"pairs":[`...)
	for i, e := range dbg.Pairs {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendJSONMergeEdge(dst, e)
	}
	dst = append(dst, `],"mstEdges":[`...)
	for i, e := range dbg.MSTEdges {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = appendJSONMergeEdge(dst, e)
	}
	dst = append(dst, `],"corridorPolygons":[`...)
	for i, p := range dbg.Corridors {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = p.AppendJSON(dst)
	}
	dst = append(dst, `]}`...)
	return dst
}

// uint64ToString converts a uint to a string with leading zeros,
// so that history keys sort in insert order.
func uint64ToString(u uint64) string {
	s := strings.Repeat("0", 20) + strconv.FormatUint(u, 10)
	return s[len(s)-20:]
}

func (server *Server) writeMergeHistory(ma mergeArgs, shapes int) {
	ts := time.Now()
	var doc []byte
	doc = append(doc, `{"id":"`...)
	doc = append(doc, historyID()...)
	doc = append(doc, `","ts":`...)
	doc = appendJSONTimeFormat(doc, ts)
	doc = append(doc, `,"key":`...)
	doc = append(doc, jsonString(ma.key)...)
	doc = append(doc, `,"shapes":`...)
	doc = strconv.AppendInt(doc, int64(shapes), 10)
	doc = append(doc, `,"factor":`...)
	doc = strconv.AppendFloat(doc, ma.opts.CorridorFactor, 'f', -1, 64)
	doc = append(doc, `,"samples":`...)
	doc = strconv.AppendInt(doc, int64(ma.opts.SamplesPerRing), 10)
	doc = append(doc, `,"stored":`...)
	doc = strconv.AppendBool(doc, ma.store)
	doc = append(doc, '}')
	err := server.hdb.Update(func(tx *buntdb.Tx) error {
		key := "merge:" + uint64ToString(uint64(ts.UnixNano()))
		opts := &buntdb.SetOptions{Expires: true, TTL: mergeHistoryTTL}
		_, _, err := tx.Set(key, string(doc), opts)
		return err
	})
	if err != nil {
		log.Errorf("write merge history: %v", err)
	}
}

func (server *Server) cmdMergeHistory(msg *Message) (res resp.Value, err error) {
	start := time.Now()
	vs := msg.Args[1:]
	limit := uint64(limitItems)
	var ok bool
	var wtok string
	for len(vs) > 0 {
		if vs, wtok, ok = tokenval(vs); !ok || wtok == "" {
			err = errInvalidNumberOfArguments
			return
		}
		if !lc(wtok, "limit") {
			err = errInvalidArgument(wtok)
			return
		}
		var slimit string
		if vs, slimit, ok = tokenval(vs); !ok || slimit == "" {
			err = errInvalidNumberOfArguments
			return
		}
		limit, err = strconv.ParseUint(slimit, 10, 64)
		if err != nil || limit == 0 {
			err = errInvalidArgument(slimit)
			return
		}
	}
	var entries []string
	err = server.hdb.View(func(tx *buntdb.Tx) error {
		var n uint64
		return tx.DescendKeys("merge:*", func(key, val string) bool {
			entries = append(entries, val)
			n++
			return n < limit
		})
	})
	if err != nil {
		return NOMessage, err
	}
	switch msg.OutputType {
	case JSON:
		var buf bytes.Buffer
		buf.WriteString(`{"ok":true,"history":[`)
		for i, entry := range entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(entry)
		}
		buf.WriteString(`],"count":` + strconv.Itoa(len(entries)))
		buf.WriteString(`,"elapsed":"` + time.Now().Sub(start).String() + "\"}")
		return resp.StringValue(buf.String()), nil
	case RESP:
		vals := make([]resp.Value, len(entries))
		for i, entry := range entries {
			vals[i] = resp.StringValue(entry)
		}
		return resp.ArrayValue(vals), nil
	}
	return NOMessage, nil
}
