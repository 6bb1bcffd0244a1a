package tests

func subTestTimeout(g *testGroup) {
	g.regSubTest("spatial", timeout_spatial_test)
	g.regSubTest("reporting", timeout_reporting_test)
}

func timeout_spatial_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("MASSINSERT", 1, 10000).OK(),
		Do("SCAN", "mi:0", "COUNT").Str("10000"),
		Do("INTERSECTS", "mi:0", "COUNT", "BOUNDS", -90, -180, 90, 180).Str("10000"),

		// a vanishingly small read deadline trips immediately
		Do("TIMEOUT", 0.000001).OK(),
		Do("SCAN", "mi:0", "IDS").Err("timeout"),
		Do("INTERSECTS", "mi:0", "IDS", "BOUNDS", -90, -180, 90, 180).Err("timeout"),
		Do("NEARBY", "mi:0", "IDS", "POINT", 10, 10).Err("timeout"),

		// writes are not limited by the read deadline
		Do("SET", "mykey", "myid", "BOUNDS", 10, 10, 20, 20).OK(),
		Do("DEL", "mykey", "myid").Str("1"),

		// clearing the deadline restores the reads
		Do("TIMEOUT", 0).OK(),
		Do("SCAN", "mi:0", "COUNT").Str("10000"),
	)
}

func timeout_reporting_test(mc *mockServer) error {
	return mc.DoBatch(
		Do("TIMEOUT").Str("0"),
		Do("TIMEOUT", "1.5").OK(),
		Do("TIMEOUT").Str("1.5"),
		Do("TIMEOUT").JSON().Str(`{"ok":true,"seconds":1.5}`),
		Do("TIMEOUT", 0).OK(),
		Do("TIMEOUT").Str("0"),
		Do("TIMEOUT", -1).Err("invalid argument '-1'"),
		Do("TIMEOUT", "abc").Err("invalid argument 'abc'"),
	)
}
