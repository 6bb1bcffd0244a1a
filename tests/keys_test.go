package tests

import (
	"errors"
	"fmt"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/tidwall/gjson"
)

// square returns a closed-ring GeoJSON Polygon for a lat/lon box.
func square(minLat, minLon, maxLat, maxLon float64) string {
	return fmt.Sprintf(
		`{"type":"Polygon","coordinates":[[[%v,%v],[%v,%v],[%v,%v],[%v,%v],[%v,%v]]]}`,
		minLon, minLat, maxLon, minLat, maxLon, maxLat, minLon, maxLat,
		minLon, minLat)
}

func subTestKeys(g *testGroup) {
	g.regSubTest("SET", keys_SET_test)
	g.regSubTest("GET", keys_GET_test)
	g.regSubTest("DEL", keys_DEL_test)
	g.regSubTest("PDEL", keys_PDEL_test)
	g.regSubTest("DROP", keys_DROP_test)
	g.regSubTest("KEYS", keys_KEYS_test)
	g.regSubTest("BOUNDS", keys_BOUNDS_test)
	g.regSubTest("EXPIRE", keys_EXPIRE_test)
	g.regSubTest("TTL", keys_TTL_test)
	g.regSubTest("PERSIST", keys_PERSIST_test)
	g.regSubTest("FIELDS", keys_FIELDS_test)
	g.regSubTest("SCAN", keys_SCAN_test)
	g.regSubTest("STATS", keys_STATS_test)
	g.regSubTest("SERVER", keys_SERVER_test)
	g.regSubTest("FLUSHDB", keys_FLUSHDB_test)
	g.regSubTest("HEALTHZ", keys_HEALTHZ_test)
}

func keys_SET_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "OBJECT", square(0, 0, 1, 1)).OK(),
		Do("SET", "mykey", "myid", "OBJECT", square(0, 0, 1, 1)).JSON().OK(),
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey").Err("wrong number of arguments for 'set' command"),
		Do("SET", "mykey", "myid").Err("wrong number of arguments for 'set' command"),
		Do("SET", "mykey", "myid", "OBJECT").Err("wrong number of arguments for 'set' command"),
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20).Err("wrong number of arguments for 'set' command"),
		Do("SET", "mykey", "myid", "BOUNDS", "a", 10, 20, 20).Err("invalid argument 'a'"),
		// only polygonal shapes are accepted
		Do("SET", "mykey", "myid", "OBJECT", `{"type":"Point","coordinates":[10,10]}`).Err("not a polygonal object"),
		Do("SET", "mykey", "myid", "OBJECT", `{"type":"LineString","coordinates":[[10,10],[20,20]]}`).Err("not a polygonal object"),
		Do("SET", "mykey", "myid", "OBJECT", "{invalid json}").Err("invalid data"),
		Do("SET", "mykey", "myid", "CIRCLE", 10, 10, 100).Err("invalid argument 'CIRCLE'"),
		// multipolygons and wrapped features work
		Do("SET", "mykey", "mp", "OBJECT",
			`{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,1],[0,0]]],[[[3,0],[4,0],[4,1],[3,1],[3,0]]]]}`).OK(),
		Do("SET", "mykey", "feat", "OBJECT",
			`{"type":"Feature","geometry":`+square(0, 0, 1, 1)+`,"properties":{}}`).OK(),
	)
}

func keys_GET_test(mc *mockServer) error {
	poly := square(0, 0, 1, 1)
	hash5 := geohash.EncodeWithPrecision(0.5, 0.5, 5)
	return mc.DoBatch(
		Do("GET", "mykey", "myid").Str("<nil>"),
		Do("GET", "mykey", "myid").JSON().Err("key not found"),
		Do("SET", "mykey", "myid", "OBJECT", poly).OK(),
		Do("GET", "mykey", "myid").Str(poly),
		Do("GET", "mykey", "myid", "OBJECT").Str(poly),
		Do("GET", "mykey", "myid").JSON().Str(`{"ok":true,"object":`+poly+`}`),
		Do("GET", "mykey", "myid", "POINT").Str("[0.5 0.5]"),
		Do("GET", "mykey", "myid", "BOUNDS").Str("[[0 0] [1 1]]"),
		Do("GET", "mykey", "myid", "HASH", 5).Str(hash5),
		Do("GET", "mykey", "myid", "HASH", 0).Err("invalid argument '0'"),
		Do("GET", "mykey", "myid", "HASH", 13).Err("invalid argument '13'"),
		Do("GET", "mykey", "myid", "HASH").Err("wrong number of arguments for 'get' command"),
		Do("GET", "mykey", "myid", "FULL").Err("invalid argument 'full'"),
		Do("GET", "mykey", "nada").Str("<nil>"),
		Do("GET", "mykey", "nada").JSON().Err("id not found"),
		Do("GET", "nada", "nada").Str("<nil>"),
		Do("GET", "mykey").Err("wrong number of arguments for 'get' command"),
	)
}

func keys_DEL_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("DEL", "mykey", "myid").Str("1"),
		Do("DEL", "mykey", "myid").Str("0"),
		Do("DEL", "mykey").Err("wrong number of arguments for 'del' command"),
		Do("DEL", "mykey", "myid", "arg4").Err("wrong number of arguments for 'del' command"),
		Do("GET", "mykey", "myid").Str("<nil>"),
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("DEL", "mykey", "myid").JSON().OK(),
		// deleting the last object drops the collection
		Do("KEYS", "*").Str("[]"),
	)
}

func keys_PDEL_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "obj1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "obj2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "obj3", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "other", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("PDEL", "mykey").Err("wrong number of arguments for 'pdel' command"),
		Do("PDEL", "nada", "obj*").Str("0"),
		Do("PDEL", "mykey", "obj*").Str("3"),
		Do("PDEL", "mykey", "obj*").Str("0"),
		Do("SCAN", "mykey", "COUNT").Str("1"),
		Do("PDEL", "mykey", "*").JSON().OK(),
		Do("KEYS", "*").Str("[]"),
	)
}

func keys_DROP_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "myid2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SCAN", "mykey", "COUNT").Str("2"),
		Do("DROP").Err("wrong number of arguments for 'drop' command"),
		Do("DROP", "mykey", "arg3").Err("wrong number of arguments for 'drop' command"),
		Do("DROP", "mykey").Str("1"),
		Do("SCAN", "mykey", "COUNT").Str("0"),
		Do("DROP", "mykey").Str("0"),
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("DROP", "mykey").JSON().OK(),
	)
}

func keys_KEYS_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey11", "myid4", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey22", "myid2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey22", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey11", "myid3", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey42", "myid2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey31", "myid4", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey310", "myid5", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("KEYS").Err("wrong number of arguments for 'keys' command"),
		Do("KEYS", "*").Str("[mykey11 mykey22 mykey31 mykey310 mykey42]"),
		Do("KEYS", "*key31*").Str("[mykey31 mykey310]"),
		Do("KEYS", "mykey31").Str("[mykey31]"),
		Do("KEYS", "mykey?2").Str("[mykey22 mykey42]"),
		Do("KEYS", "nada").Str("[]"),
		Do("KEYS", "*").JSON().Str(`{"ok":true,"keys":["mykey11","mykey22","mykey31","mykey310","mykey42"]}`),
	)
}

func keys_BOUNDS_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("BOUNDS", "mykey").Str("<nil>"),
		Do("BOUNDS", "mykey").JSON().Err("key not found"),
		Do("SET", "mykey", "myid1", "OBJECT", square(0, 0, 1, 1)).OK(),
		Do("BOUNDS", "mykey").Str("[[0 0] [1 1]]"),
		Do("SET", "mykey", "myid2", "OBJECT", square(2.5, 2, 3.2, 2.8)).OK(),
		Do("BOUNDS", "mykey").Str("[[0 0] [2.8 3.2]]"),
		Do("BOUNDS", "mykey", "arg2").Err("wrong number of arguments for 'bounds' command"),
		Do("BOUNDS", "mykey").JSON().Func(func(s string) error {
			if gjson.Get(s, "bounds.type").String() != "Polygon" {
				return errors.New("expected a polygon bounds")
			}
			return nil
		}),
	)
}

func keys_EXPIRE_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("EXPIRE", "mykey", "myid").Err("wrong number of arguments for 'expire' command"),
		Do("EXPIRE", "mykey", "myid", "abc").Err("invalid argument 'abc'"),
		Do("EXPIRE", "mykey", "nada", 1).Str("0"),
		Do("EXPIRE", "nada", "myid", 1).Str("0"),
		Do("EXPIRE", "mykey", "myid", 0.3).Str("1"),
		Do("GET", "mykey", "myid", "POINT").Str("[15 15]"),
		Sleep(time.Second/2),
		Do("GET", "mykey", "myid").Str("<nil>"),
		// SET ... EX
		Do("SET", "mykey", "myid", "EX", 0.3, "BOUNDS", 10, 10, 20, 20).OK(),
		Do("GET", "mykey", "myid", "POINT").Str("[15 15]"),
		Sleep(time.Second/2),
		Do("GET", "mykey", "myid").Str("<nil>"),
		// a replace clears the expiration
		Do("SET", "mykey", "myid", "EX", 0.3, "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Sleep(time.Second/2),
		Do("GET", "mykey", "myid", "POINT").Str("[15 15]"),
	)
}

func keys_TTL_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("TTL", "mykey", "myid").Str("-1"),
		Do("TTL", "mykey", "nada").Str("-2"),
		Do("TTL", "nada", "myid").Str("-2"),
		Do("TTL", "mykey", "nada").JSON().Err("id not found"),
		Do("TTL", "mykey").Err("wrong number of arguments for 'ttl' command"),
		Do("EXPIRE", "mykey", "myid", 90).Str("1"),
		Do("TTL", "mykey", "myid").Str("89"),
	)
}

func keys_PERSIST_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "EX", 90, "BOUNDS", 10, 10, 20, 20).OK(),
		Do("PERSIST", "mykey").Err("wrong number of arguments for 'persist' command"),
		Do("PERSIST", "mykey", "nada").Str("0"),
		Do("PERSIST", "nada", "myid").Str("0"),
		Do("PERSIST", "mykey", "myid").Str("1"),
		Do("TTL", "mykey", "myid").Str("-1"),
		Do("PERSIST", "mykey", "myid").Str("0"),
	)
}

func keys_FIELDS_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid", "FIELD", "zone", "industrial",
			"FIELD", "weight", 5.5, "BOUNDS", 10, 10, 20, 20).OK(),
		Do("GET", "mykey", "myid", "WITHFIELDS", "POINT").Str("[[15 15] [weight 5.5 zone industrial]]"),
		Do("GET", "mykey", "myid", "POINT").Str("[15 15]"),
		Do("GET", "mykey", "myid", "WITHFIELDS").JSON().Func(func(s string) error {
			if gjson.Get(s, "fields.zone").String() != "industrial" {
				return errors.New("missing zone field")
			}
			if gjson.Get(s, "fields.weight").Float() != 5.5 {
				return errors.New("missing weight field")
			}
			return nil
		}),
		// reserved names
		Do("SET", "mykey", "myid", "FIELD", "lat", 1, "BOUNDS", 10, 10, 20, 20).Err("invalid argument 'lat'"),
		Do("SET", "mykey", "myid", "FIELD", "z", 1, "BOUNDS", 10, 10, 20, 20).Err("invalid argument 'z'"),
		// a replace drops old fields
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("GET", "mykey", "myid", "WITHFIELDS", "POINT").Str("[[15 15]]"),
	)
}

func keys_SCAN_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "myid2", "FIELD", "zone", 7, "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "myid3", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SCAN", "mykey", "COUNT").Str("3"),
		Do("SCAN", "mykey", "IDS").Str("[0 [myid1 myid2 myid3]]"),
		Do("SCAN", "mykey", "DESC", "IDS").Str("[0 [myid3 myid2 myid1]]"),
		Do("SCAN", "mykey", "LIMIT", 2, "IDS").Str("[2 [myid1 myid2]]"),
		Do("SCAN", "mykey", "CURSOR", 2, "IDS").Str("[0 [myid3]]"),
		Do("SCAN", "mykey", "MATCH", "*2", "IDS").Str("[0 [myid2]]"),
		Do("SCAN", "mykey", "MATCH", "nada", "COUNT").Str("0"),
		Do("SCAN", "nada", "IDS").Str("[0 []]"),
		Do("SCAN", "mykey", "LIMIT", 0, "IDS").Err("invalid argument '0'"),
		Do("SCAN", "mykey", "DESC", "ASC", "IDS").Err("duplicate argument 'ASC'"),
		Do("SCAN", "mykey", "BADARG", "IDS").Err("invalid argument 'BADARG'"),
		Do("SCAN", "mykey").JSON().Func(func(s string) error {
			if gjson.Get(s, "count").Int() != 3 {
				return errors.New("wrong count")
			}
			if len(gjson.Get(s, "objects").Array()) != 3 {
				return errors.New("wrong number of objects")
			}
			return nil
		}),
		Do("SCAN", "mykey", "POINTS").JSON().Func(func(s string) error {
			if gjson.Get(s, "points.#").Int() != 3 {
				return errors.New("wrong number of points")
			}
			return nil
		}),
	)
}

func keys_STATS_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("STATS").Err("wrong number of arguments for 'stats' command"),
		Do("STATS", "nada").Str("[nil]"),
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey", "myid2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("STATS", "mykey").JSON().Func(func(s string) error {
			if gjson.Get(s, "stats.0.num_objects").Int() != 2 {
				return errors.New("wrong num_objects")
			}
			return nil
		}),
		Do("STATS", "mykey", "nada").JSON().Func(func(s string) error {
			if gjson.Get(s, "stats.#").Int() != 2 {
				return errors.New("wrong stats length")
			}
			return nil
		}),
	)
}

func keys_SERVER_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SERVER").JSON().Func(func(s string) error {
			if gjson.Get(s, "stats.num_collections").Int() != 1 {
				return errors.New("wrong num_collections")
			}
			if gjson.Get(s, "stats.num_objects").Int() != 1 {
				return errors.New("wrong num_objects")
			}
			return nil
		}),
		Do("SERVER", "ext").JSON().Func(func(s string) error {
			if !gjson.Get(s, "stats.landbridge_version").Exists() {
				return errors.New("missing version")
			}
			return nil
		}),
		Do("SERVER", "nada").JSON().Err("invalid argument 'nada'"),
	)
}

func keys_FLUSHDB_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("SET", "mykey", "myid1", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("SET", "mykey2", "myid2", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("FLUSHDB", "arg2").Err("wrong number of arguments for 'flushdb' command"),
		Do("FLUSHDB").OK(),
		Do("KEYS", "*").Str("[]"),
	)
}

func keys_HEALTHZ_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("HEALTHZ").OK(),
		Do("HEALTHZ").JSON().OK(),
		Do("HEALTHZ", "arg2").Err("wrong number of arguments for 'healthz' command"),
	)
}
