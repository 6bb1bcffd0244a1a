package tests

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"
)

func subTestAOF(g *testGroup) {
	g.regSubTest("loading", aof_loading_test)
	g.regSubTest("AOFSHRINK", aof_AOFSHRINK_test)
}

func loadAOFAndClose(aof any) error {
	var aofb []byte
	switch aof := aof.(type) {
	case []byte:
		aofb = []byte(aof)
	case string:
		aofb = []byte(aof)
	default:
		return errors.New("aof is not string or bytes")
	}
	mc, err := mockOpenServer(MockServerOptions{
		Silent:  true,
		Metrics: false,
		AOFData: aofb,
	})
	if mc != nil {
		mc.Close()
	}
	return err
}

func aof_loading_test(mc *mockServer) error {

	var err error
	// invalid command
	err = loadAOFAndClose("asdfasdf\r\n")
	if err == nil || err.Error() != "unknown command 'asdfasdf'" {
		return fmt.Errorf("expected '%v', got '%v'",
			"unknown command 'asdfasdf'", err)
	}

	// incomplete command at the tail gets truncated away
	err = loadAOFAndClose("set fleet truck bounds 10 10 20 20\r\nasdfasdf")
	if err != nil {
		return err
	}

	// big aof file
	var aof string
	for i := 0; i < 10000; i++ {
		aof += fmt.Sprintf("SET fleet truck%d BOUNDS 10 10 20 20\r\n", i)
	}
	err = loadAOFAndClose(aof)
	if err != nil {
		return err
	}

	// extra zeros at various places
	aof = ""
	for i := 0; i < 1000; i++ {
		if i%10 == 0 {
			aof += string(bytes.Repeat([]byte{0}, 100))
		}
		aof += fmt.Sprintf("SET fleet truck%d BOUNDS 10 10 20 20\r\n", i)
	}
	aof += string(bytes.Repeat([]byte{0}, 5000))
	err = loadAOFAndClose(aof)
	if err != nil {
		return err
	}

	// a replayed MERGE against a missing key must not block startup
	err = loadAOFAndClose("" +
		"SET fleet truck1 BOUNDS 10 10 20 20\r\n" +
		"MERGE nada\r\n" +
		"SET fleet truck2 BOUNDS 10 10 20 20\r\n")
	if err != nil {
		return err
	}

	// bad protocol
	aof = "*2\r\n$1\r\nh\r\n+OK\r\n"
	err = loadAOFAndClose(aof)
	if fmt.Sprintf("%v", err) != "Protocol error: expected '$', got '+'" {
		return fmt.Errorf("expected '%v', got '%v'",
			"Protocol error: expected '$', got '+'", err)
	}

	return nil
}

func aof_AOFSHRINK_test(mc *mockServer) error {
	err := mc.DoBatch(
		Do("SET", "fleet", "kept", "OBJECT", square(0, 0, 1, 1)).OK(),
		Do("SET", "fleet", "gone", "OBJECT", square(3, 3, 4, 4)).OK(),
		Do("SET", "fleet", "gone", "OBJECT", square(5, 5, 6, 6)).OK(),
		Do("DEL", "fleet", "gone").Str("1"),
		Do("SET", "zones", "z1", "FIELD", "kind", "port",
			"BOUNDS", 10, 10, 20, 20).OK(),
		Do("AOFSHRINK").OK(),
		Sleep(time.Second/2),
		Do("SCAN", "fleet", "IDS").Str("[0 [kept]]"),
		Do("SCAN", "zones", "IDS").Str("[0 [z1]]"),
	)
	if err != nil {
		return err
	}
	data, err := mc.readAOF()
	if err != nil {
		return err
	}
	aof := string(data)
	if !strings.Contains(aof, "kept") {
		return errors.New("live object missing from the shrunken aof")
	}
	if strings.Contains(aof, "gone") {
		return errors.New("deleted object still in the shrunken aof")
	}
	if !strings.Contains(aof, "kind") || !strings.Contains(aof, "port") {
		return errors.New("field missing from the shrunken aof")
	}
	// writes after the shrink keep appending
	err = mc.DoBatch(
		Do("SET", "fleet", "later", "BOUNDS", 10, 10, 20, 20).OK(),
		Sleep(time.Second/2),
	)
	if err != nil {
		return err
	}
	data, err = mc.readAOF()
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), "later") {
		return errors.New("post-shrink write missing from the aof")
	}
	return nil
}
