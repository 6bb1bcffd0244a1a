package tests

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

func subTestMerge(g *testGroup) {
	g.regSubTest("MERGE", merge_MERGE_test)
	g.regSubTest("MERGE_DEBUG", merge_MERGE_DEBUG_test)
	g.regSubTest("MERGE_STORE", merge_MERGE_STORE_test)
	g.regSubTest("MERGE_FILTERS", merge_MERGE_FILTERS_test)
	g.regSubTest("MERGEHISTORY", merge_MERGEHISTORY_test)
}

// three islands: sq1 and sq2 are farthest apart, sq3 sits north
// between them. A spanning tree bridges sq3 to both, never sq1 to
// sq2 directly.
func loadMergeIslands(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "islands", "sq1", "OBJECT", square(0, 0, 1, 1)).OK(),
		Do("SET", "islands", "sq2", "OBJECT", square(0.2, 3, 1.2, 4.2)).OK(),
		Do("SET", "islands", "sq3", "OBJECT", square(2.5, 2, 3.2, 2.8)).OK(),
	)
}

func merge_MERGE_test(mc *mockServer) error {
	if err := loadMergeIslands(mc); err != nil {
		return err
	}
	single := square(0, 0, 1, 1)
	return mc.DoBatch(
		Do("MERGE", "islands").JSON().Func(func(s string) error {
			if gjson.Get(s, "ok").Type != gjson.True {
				return errors.New("not ok")
			}
			typ := gjson.Get(s, "object.type").String()
			if typ != "Polygon" {
				return fmt.Errorf("expected a single Polygon, got %s", typ)
			}
			return nil
		}),
		Do("MERGE", "islands").Func(func(s string) error {
			if gjson.Get(s, "type").String() != "Polygon" {
				return errors.New("expected a single Polygon")
			}
			return nil
		}),
		// a merge of one shape is the shape itself
		Do("SET", "lonely", "sq1", "OBJECT", single).OK(),
		Do("MERGE", "lonely").Str(single),
		Do("MERGE", "lonely").JSON().Str(`{"ok":true,"object":`+single+`}`),
		// a zero factor degenerates corridors but still connects
		Do("MERGE", "islands", "FACTOR", 0).JSON().Func(func(s string) error {
			if gjson.Get(s, "ok").Type != gjson.True {
				return errors.New("not ok")
			}
			if !gjson.Get(s, "object.coordinates").Exists() {
				return errors.New("missing geometry")
			}
			return nil
		}),
		// a huge factor swallows the gaps entirely
		Do("MERGE", "islands", "FACTOR", 10, "SAMPLES", 8).Func(func(s string) error {
			if gjson.Get(s, "type").String() != "Polygon" {
				return errors.New("expected a single Polygon")
			}
			return nil
		}),
		// misuse
		Do("MERGE").Err("wrong number of arguments for 'merge' command"),
		Do("MERGE", "nada").Err("key not found"),
		Do("MERGE", "islands", "FACTOR", -1).Err("invalid argument '-1'"),
		Do("MERGE", "islands", "FACTOR", "abc").Err("invalid argument 'abc'"),
		Do("MERGE", "islands", "FACTOR", 1, "FACTOR", 2).Err("duplicate argument 'FACTOR'"),
		Do("MERGE", "islands", "SAMPLES", 0).Err("invalid argument '0'"),
		Do("MERGE", "islands", "SAMPLES", -4).Err("invalid argument '-4'"),
		Do("MERGE", "islands", "NOPE").Err("invalid argument 'NOPE'"),
		Do("MERGE", "islands", "MATCH", "nada").Err("no shapes provided"),
	)
}

func merge_MERGE_DEBUG_test(mc *mockServer) error {
	if err := loadMergeIslands(mc); err != nil {
		return err
	}
	return mc.DoBatch(
		Do("MERGE", "islands", "DEBUG").JSON().Func(func(s string) error {
			if gjson.Get(s, "debug.pairs.#").Int() != 3 {
				return errors.New("expected 3 candidate pairs")
			}
			if gjson.Get(s, "debug.mstEdges.#").Int() != 2 {
				return errors.New("expected 2 spanning tree edges")
			}
			if gjson.Get(s, "debug.corridorPolygons.#").Int() != 2 {
				return errors.New("expected 2 corridors")
			}
			// candidates are ordered nearest first
			dists := gjson.Get(s, "debug.pairs.#.km").Array()
			for i := 1; i < len(dists); i++ {
				if dists[i].Float() < dists[i-1].Float() {
					return errors.New("pairs out of order")
				}
			}
			// the longest connection, sq1 to sq2, must not be bridged
			var direct bool
			for _, e := range gjson.Get(s, "debug.mstEdges").Array() {
				if e.Get("a").Int() == 0 && e.Get("b").Int() == 1 {
					direct = true
				}
			}
			if direct {
				return errors.New("spanning tree took the longest edge")
			}
			for _, p := range gjson.Get(s, "debug.corridorPolygons").Array() {
				if p.Get("type").String() != "Polygon" {
					return errors.New("corridor is not a polygon")
				}
			}
			return nil
		}),
		Do("MERGE", "islands", "DEBUG", "DEBUG").Err("duplicate argument 'DEBUG'"),
	)
}

func merge_MERGE_STORE_test(mc *mockServer) error {
	if err := loadMergeIslands(mc); err != nil {
		return err
	}
	return mc.DoBatch(
		Do("MERGE", "islands", "STORE", "merged", "land").Str("3"),
		Do("GET", "merged", "land").Func(func(s string) error {
			if gjson.Get(s, "type").String() != "Polygon" {
				return errors.New("stored object is not a polygon")
			}
			return nil
		}),
		Do("SCAN", "merged", "IDS").Str("[0 [land]]"),
		Do("MERGE", "islands", "STORE", "merged", "land").JSON().
			Str(`{"ok":true,"shapes":3,"corridors":2,"stored":true}`),
		// the stored result intersects all three sources
		Do("INTERSECTS", "islands", "COUNT", "GET", "merged", "land").Str("3"),
		Do("MERGE", "islands", "STORE", "merged").Err("wrong number of arguments for 'merge' command"),
		Do("MERGE", "islands", "STORE", "a", "b", "STORE", "c", "d").Err("duplicate argument 'STORE'"),
	)
}

func merge_MERGE_FILTERS_test(mc *mockServer) error {
	if err := loadMergeIslands(mc); err != nil {
		return err
	}
	return mc.DoBatch(
		// a far away shape that must not take part
		Do("SET", "islands", "far", "OBJECT", square(40, 40, 41, 41)).OK(),
		Do("MERGE", "islands", "MATCH", "sq*", "DEBUG").JSON().Func(func(s string) error {
			if gjson.Get(s, "debug.pairs.#").Int() != 3 {
				return errors.New("expected 3 candidate pairs")
			}
			return nil
		}),
		Do("MERGE", "islands", "BOUNDS", -1, -1, 2, 5, "DEBUG").JSON().Func(func(s string) error {
			// only sq1 and sq2 intersect the window
			if gjson.Get(s, "debug.pairs.#").Int() != 1 {
				return errors.New("expected 1 candidate pair")
			}
			if gjson.Get(s, "debug.mstEdges.#").Int() != 1 {
				return errors.New("expected 1 spanning tree edge")
			}
			return nil
		}),
		Do("MERGE", "islands", "MATCH", "sq*", "MATCH", "x*").Err("duplicate argument 'MATCH'"),
		Do("MERGE", "islands", "BOUNDS", "a", -1, 2, 5).Err("invalid argument 'a'"),
	)
}

func merge_MERGEHISTORY_test(mc *mockServer) error {
	if err := loadMergeIslands(mc); err != nil {
		return err
	}
	var total int64
	return mc.DoBatch(
		Do("MERGE", "islands").JSON().OK(),
		Do("MERGE", "islands", "FACTOR", 2).JSON().OK(),
		Do("MERGE", "islands", "STORE", "merged", "land").Str("3"),
		Do("MERGEHISTORY").JSON().Func(func(s string) error {
			total = gjson.Get(s, "count").Int()
			if total < 3 {
				return fmt.Errorf("expected at least 3 entries, got %d", total)
			}
			// newest first; the stored run is on top
			first := gjson.Get(s, "history.0")
			if first.Get("key").String() != "islands" {
				return errors.New("wrong key in newest entry")
			}
			if !first.Get("stored").Bool() {
				return errors.New("newest entry should be a stored run")
			}
			if first.Get("shapes").Int() != 3 {
				return errors.New("wrong shape count in newest entry")
			}
			if first.Get("id").String() == "" {
				return errors.New("missing entry id")
			}
			return nil
		}),
		Do("MERGEHISTORY", "LIMIT", 2).JSON().Func(func(s string) error {
			if gjson.Get(s, "count").Int() != 2 {
				return errors.New("expected 2 entries")
			}
			return nil
		}),
		Do("MERGEHISTORY", "LIMIT", 0).Err("invalid argument '0'"),
		Do("MERGEHISTORY", "LIMIT").Err("wrong number of arguments for 'mergehistory' command"),
		Do("MERGEHISTORY", "NOPE").Err("invalid argument 'NOPE'"),
	)
}
