package tests

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gomodule/redigo/redis"
	"github.com/tidwall/gjson"
)

func subTestClient(g *testGroup) {
	g.regSubTest("OUTPUT", client_OUTPUT_test)
	g.regSubTest("CLIENT", client_CLIENT_test)
	g.regSubTest("CLIENT_KILL", client_CLIENT_KILL_test)
}

func client_OUTPUT_test(mc *mockServer) error {
	if err := mc.DoBatch(
		// tests removal of "elapsed" member.
		Do("OUTPUT", "json").Str(`{"ok":true}`),
		Do("OUTPUT", "resp").OK(),
		Do("OUTPUT").Func(func(s string) error {
			if s != "resp" {
				return fmt.Errorf("expected 'resp', got '%s'", s)
			}
			return nil
		}),
		Do("OUTPUT", "nada").Err("invalid argument 'nada'"),
	); err != nil {
		return err
	}

	// run direct commands
	if _, err := mc.Do("OUTPUT", "json"); err != nil {
		return err
	}
	res, err := mc.Do("CLIENT", "list")
	if err != nil {
		return err
	}
	bres, ok := res.([]byte)
	if !ok {
		return errors.New("Failed to type assert CLIENT response")
	}
	sres := string(bres)
	if !gjson.Valid(sres) {
		return errors.New("CLIENT response was invalid")
	}
	info := gjson.Get(sres, "list").String()
	if !gjson.Valid(info) {
		return errors.New("CLIENT.list response was invalid")
	}
	return nil
}

func client_CLIENT_test(mc *mockServer) error {
	numConns := 20
	var conns []redis.Conn
	defer func() {
		for i := range conns {
			conns[i].Close()
		}
	}()
	for i := 0; i <= numConns; i++ {
		conn, err := redis.Dial("tcp", fmt.Sprintf(":%d", mc.port))
		if err != nil {
			return err
		}
		conns = append(conns, conn)
	}
	return mc.DoBatch(
		Do("CLIENT", "list").JSON().Func(func(s string) error {
			if int(gjson.Get(s, "list.#").Int()) < numConns {
				return errors.New("Invalid number of connections")
			}
			return nil
		}),
		Do("CLIENT", "list").Func(func(s string) error {
			if len(strings.Split(strings.TrimSpace(s), "\n")) < numConns {
				return errors.New("Invalid number of connections")
			}
			return nil
		}),
		Do("CLIENT", "count").Func(func(s string) error {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
				return err
			}
			if n < numConns {
				return errors.New("Invalid number of connections")
			}
			return nil
		}),
		Do("CLIENT", "id").Func(func(s string) error {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
				return err
			}
			if n < 1 {
				return errors.New("Invalid client id")
			}
			return nil
		}),
		Do("CLIENT", "id").JSON().Func(func(s string) error {
			if gjson.Get(s, "id").Int() < 1 {
				return errors.New("Invalid client id")
			}
			return nil
		}),
		Do("CLIENT", "getname").Str(``),
		Do("CLIENT", "getname").JSON().Str(`{"ok":true,"name":""}`),
		Do("CLIENT", "setname", "cl1").OK(),
		Do("CLIENT", "getname").Str(`cl1`),
		Do("CLIENT", "setname", "spaces are bad").
			Err("Client names cannot contain spaces, newlines or special characters."),
		Do("CLIENT").Err(`wrong number of arguments for 'client' command`),
		Do("CLIENT", "hello").Err(`Syntax error, try CLIENT (LIST | COUNT | ID | KILL | GETNAME | SETNAME)`),
		Do("CLIENT", "list", "arg3").Err(`wrong number of arguments for 'client' command`),
		Do("CLIENT", "count", "arg3").Err(`wrong number of arguments for 'client' command`),
		Do("CLIENT", "getname", "arg3").Err(`wrong number of arguments for 'client' command`),
	)
}

func client_CLIENT_KILL_test(mc *mockServer) error {
	conn, err := redis.Dial("tcp", fmt.Sprintf(":%d", mc.port))
	if err != nil {
		return err
	}
	defer conn.Close()
	id, err := redis.Int(conn.Do("CLIENT", "id"))
	if err != nil {
		return err
	}
	if err := mc.DoBatch(
		Do("CLIENT", "kill").Err(`wrong number of arguments for 'client' command`),
		Do("CLIENT", "kill", "id", 9999999).Err(`No such client`),
		Do("CLIENT", "kill", "nada").Err(`No such client`),
		Do("CLIENT", "kill", "id").Err(`syntax error`),
		Do("CLIENT", "kill", "id", id).OK(),
	); err != nil {
		return err
	}
	// the killed connection is gone
	if _, err := redis.String(conn.Do("PING")); err == nil {
		return errors.New("expected the killed connection to error")
	}
	return nil
}
