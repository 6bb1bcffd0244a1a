package tests

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

func subTestMetrics(g *testGroup) {
	g.regSubTest("index", metrics_index_test)
	g.regSubTest("metrics", metrics_metrics_test)
}

func downloadURLWithStatusCode(u string) (int, string, error) {
	resp, err := http.Get(u)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

func metrics_index_test(mc *mockServer) error {
	status, index, err := downloadURLWithStatusCode(
		fmt.Sprintf("http://127.0.0.1:%d/", mc.metricsPort()))
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("expected status code 200, got: %d", status)
	}
	if !strings.Contains(index, "<a href") {
		return fmt.Errorf("missing link on index page")
	}
	return nil
}

func metrics_metrics_test(mc *mockServer) error {
	err := mc.DoBatch(
		Do("SET", "metrics_test_1", "1", "FIELD", "foo", 5.5,
			"BOUNDS", 5, 5, 6, 6).OK(),
		Do("SET", "metrics_test_2", "2", "FIELD", "foo", 19.19,
			"BOUNDS", 19, 19, 20, 20).OK(),
		Do("SET", "metrics_test_2", "3", "BOUNDS", 19, 19, 20, 20).OK(),
		Do("MERGE", "metrics_test_2").JSON().OK(),
	)
	if err != nil {
		return err
	}
	status, metrics, err := downloadURLWithStatusCode(
		fmt.Sprintf("http://127.0.0.1:%d/metrics", mc.metricsPort()))
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("expected status code 200, got: %d", status)
	}
	for _, want := range []string{
		`landbridge_connected_clients`,
		`landbridge_cmd_duration_seconds_count{cmd="set"}`,
		`landbridge_cmd_duration_seconds_count{cmd="merge"}`,
		`go_build_info`,
		`go_threads`,
		`landbridge_collections 2`,
		`landbridge_merge_history`,
		`landbridge_server_info`,
		`landbridge_collection_objects{col="metrics_test_1"} 1`,
		`landbridge_collection_objects{col="metrics_test_2"} 2`,
	} {
		if !strings.Contains(metrics, want) {
			return fmt.Errorf("wanted metric: %s", want)
		}
	}
	return nil
}
