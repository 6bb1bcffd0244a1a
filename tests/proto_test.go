package tests

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

func subTestProto(g *testGroup) {
	g.regSubTest("http", proto_http_test)
}

// plain HTTP GET requests on the main port, one command per request
func proto_http_test(mc *mockServer) error {
	get := func(path string) (string, error) {
		status, body, err := downloadURLWithStatusCode(
			fmt.Sprintf("http://127.0.0.1:%d%s", mc.port, path))
		if err != nil {
			return "", err
		}
		if status != 200 {
			return "", fmt.Errorf("expected status code 200, got: %d", status)
		}
		if !gjson.Valid(body) {
			return "", errors.New("response is not json")
		}
		return body, nil
	}

	body, err := get("/SERVER")
	if err != nil {
		return err
	}
	if gjson.Get(body, "ok").Type != gjson.True {
		return errors.New("not ok")
	}
	if !gjson.Get(body, "stats").Exists() {
		return errors.New("missing stats")
	}

	body, err = get("/SET+fleet+truck+BOUNDS+10+10+20+20")
	if err != nil {
		return err
	}
	if gjson.Get(body, "ok").Type != gjson.True {
		return errors.New("not ok")
	}

	body, err = get("/GET+fleet+truck")
	if err != nil {
		return err
	}
	if gjson.Get(body, "object.type").String() != "Polygon" {
		return errors.New("wrong object")
	}

	body, err = get("/MERGE+fleet")
	if err != nil {
		return err
	}
	if gjson.Get(body, "object.type").String() != "Polygon" {
		return errors.New("wrong merge result")
	}

	// errors still arrive as json documents
	body, err = get("/GET+fleet+nada")
	if err != nil {
		return err
	}
	if gjson.Get(body, "ok").Type != gjson.False {
		return errors.New("expected not ok")
	}
	if gjson.Get(body, "err").String() != "id not found" {
		return errors.New("wrong error")
	}

	body, err = get("/nada")
	if err != nil {
		return err
	}
	if gjson.Get(body, "err").String() != "unknown command 'nada'" {
		return errors.New("wrong error for unknown command")
	}
	return nil
}
