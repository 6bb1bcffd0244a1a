package tests

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/tidwall/gjson"
)

func subTestSearch(g *testGroup) {
	g.regSubTest("INTERSECTS", search_INTERSECTS_test)
	g.regSubTest("INTERSECTS_BUFFER", search_INTERSECTS_BUFFER_test)
	g.regSubTest("NEARBY", search_NEARBY_test)
}

// three zones: a and b sit near the equator about a degree apart,
// c is far away, up north.
func loadSearchZones(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "zones", "a", "OBJECT", square(0, 0, 1, 1)).OK(),
		Do("SET", "zones", "b", "OBJECT", square(0, 2, 1, 3)).OK(),
		Do("SET", "zones", "c", "OBJECT", square(10, 10, 11, 11)).OK(),
	)
}

func search_INTERSECTS_test(mc *mockServer) error {
	if err := loadSearchZones(mc); err != nil {
		return err
	}
	return mc.DoBatch(
		// bounds area, with and without an explicit output
		Do("INTERSECTS", "zones", "IDS", "BOUNDS", -0.5, -0.5, 0.5, 0.5).Str("[0 [a]]"),
		Do("INTERSECTS", "zones", "COUNT", "BOUNDS", -1, -1, 5, 5).Str("2"),
		Do("INTERSECTS", "zones", "COUNT", "BOUNDS", -90, -180, 90, 180).Str("3"),
		Do("INTERSECTS", "zones", "COUNT", "BOUNDS", 20, 20, 30, 30).Str("0"),
		Do("INTERSECTS", "zones", "BOUNDS", -0.5, -0.5, 0.5, 0.5).Func(func(s string) error {
			if s != fmt.Sprintf("[0 [[a %s]]]", square(0, 0, 1, 1)) {
				return errors.New("unexpected objects output")
			}
			return nil
		}),
		// object area
		Do("INTERSECTS", "zones", "IDS", "OBJECT", square(0.2, 1.5, 0.8, 2.5)).Str("[0 [b]]"),
		Do("INTERSECTS", "zones", "IDS", "OBJECT",
			`{"type":"Point","coordinates":[2.5,0.5]}`).Str("[0 [b]]"),
		// hash area, cell "s" spans lat 0..45 lon 0..45
		Do("INTERSECTS", "zones", "COUNT", "HASH", "s").Str("3"),
		// get area
		Do("INTERSECTS", "zones", "IDS", "GET", "zones", "a").Str("[0 [a]]"),
		Do("INTERSECTS", "zones", "IDS", "GET", "nada", "a").Err("key not found"),
		Do("INTERSECTS", "zones", "IDS", "GET", "zones", "nada").Err("id not found"),
		// match and limit
		Do("INTERSECTS", "zones", "MATCH", "a", "COUNT",
			"BOUNDS", -90, -180, 90, 180).Str("1"),
		Do("INTERSECTS", "zones", "MATCH", "*", "COUNT",
			"BOUNDS", -90, -180, 90, 180).Str("3"),
		Do("INTERSECTS", "zones", "LIMIT", 2, "IDS",
			"BOUNDS", -90, -180, 90, 180).Func(func(s string) error {
			if len(s) < 4 || s[1] == '0' {
				return errors.New("expected a resumable cursor")
			}
			return nil
		}),
		// misuse
		Do("INTERSECTS", "zones").Err("wrong number of arguments for 'intersects' command"),
		Do("INTERSECTS", "zones", "QUAD", 1, 2, 3).Err("invalid argument 'QUAD'"),
		Do("INTERSECTS", "zones", "COUNT", "BOUNDS", "a", -1, 5, 5).Err("invalid argument 'a'"),
		Do("INTERSECTS", "zones", "DESC", "IDS",
			"BOUNDS", -1, -1, 5, 5).Err("DESC is not allowed for INTERSECTS"),
		Do("INTERSECTS", "nada", "IDS", "BOUNDS", -1, -1, 5, 5).Str("[0 []]"),
		// json
		Do("INTERSECTS", "zones", "BOUNDS", -1, -1, 5, 5).JSON().Func(func(s string) error {
			if gjson.Get(s, "count").Int() != 2 {
				return errors.New("wrong count")
			}
			ids := gjson.Get(s, "objects.#.id")
			if !ids.Exists() || len(ids.Array()) != 2 {
				return errors.New("wrong ids")
			}
			return nil
		}),
	)
}

func search_INTERSECTS_BUFFER_test(mc *mockServer) error {
	if err := loadSearchZones(mc); err != nil {
		return err
	}
	probe := square(0.2, 1.2, 0.8, 1.8) // between a and b, touching neither
	return mc.DoBatch(
		Do("INTERSECTS", "zones", "COUNT", "OBJECT", probe).Str("0"),
		// ~50km of buffer reaches both neighbors
		Do("INTERSECTS", "zones", "COUNT", "BUFFER", 50000, "OBJECT", probe).Str("2"),
		Do("INTERSECTS", "zones", "COUNT", "BUFFER", 1, "OBJECT", probe).Str("0"),
		// a buffered bounds area works too
		Do("INTERSECTS", "zones", "COUNT", "BUFFER", 50000,
			"BOUNDS", 0.2, 1.2, 0.8, 1.8).Str("2"),
		Do("INTERSECTS", "zones", "COUNT", "BUFFER", -1, "OBJECT", probe).Err("invalid argument '-1'"),
		Do("INTERSECTS", "zones", "COUNT", "BUFFER", "abc", "OBJECT", probe).Err("invalid argument 'abc'"),
		Do("INTERSECTS", "zones", "COUNT", "BUFFER").Err("wrong number of arguments for 'intersects' command"),
	)
}

func search_NEARBY_test(mc *mockServer) error {
	if err := loadSearchZones(mc); err != nil {
		return err
	}
	return mc.DoBatch(
		// point inside zone a
		Do("NEARBY", "zones", "IDS", "POINT", 0.5, 0.5, 100).Str("[0 [a]]"),
		// b is closer than a from just east of the gap, c is out of range
		Do("NEARBY", "zones", "IDS", "POINT", 0.5, 1.9, 200000).Str("[0 [b a]]"),
		Do("NEARBY", "zones", "LIMIT", 1, "IDS", "POINT", 0.5, 1.9, 200000).Match("[* [b]]"),
		// no radius means unbounded
		Do("NEARBY", "zones", "COUNT", "POINT", 0.5, 0.5).Str("3"),
		Do("NEARBY", "zones", "MATCH", "c", "IDS", "POINT", 0.5, 0.5).Str("[0 [c]]"),
		Do("NEARBY", "zones", "DISTANCE", "IDS", "POINT", 0.5, 0.5, 100).Str("[0 [[a 0]]]"),
		// misuse
		Do("NEARBY", "zones", "POINT", 0.5).Err("wrong number of arguments for 'nearby' command"),
		Do("NEARBY", "zones", "POINT", "abc", 0.5).Err("invalid argument 'abc'"),
		Do("NEARBY", "zones", "BOUNDS", -1, -1, 5, 5).Err("invalid argument 'BOUNDS'"),
		Do("NEARBY", "zones", "IDS", "POINT", 0.5, 0.5, -10).Err("invalid argument '-10'"),
		Do("NEARBY", "nada", "IDS", "POINT", 0.5, 0.5, 100).Str("[0 []]"),
		// json
		Do("NEARBY", "zones", "POINT", 0.5, 1.9, 200000).JSON().Func(func(s string) error {
			if gjson.Get(s, "count").Int() != 2 {
				return errors.New("wrong count")
			}
			if gjson.Get(s, "objects.0.id").String() != "b" {
				return errors.New("wrong nearest id")
			}
			return nil
		}),
	)
}

func subBenchSearch(b *testing.B, mc *mockServer) {
	runBenchStep(b, mc, "INTERSECTS", func(mc *mockServer) error {
		_, err := redis.Int(mc.conn.Do("INTERSECTS", "mykey", "COUNT",
			"BOUNDS", 10, 10, 20, 20))
		return err
	})
	runBenchStep(b, mc, "NEARBY", func(mc *mockServer) error {
		_, err := redis.Values(mc.conn.Do("NEARBY", "mykey", "LIMIT", 10,
			"IDS", "POINT", 33, -115, 1000000))
		return err
	})
}
