package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func decodeMap(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestResultEncodesDurationInMilliseconds(t *testing.T) {
	got := decodeMap(t, Success([]string{"a"}, 200, 1500*time.Millisecond))
	if got["duration_ms"] != float64(1500) {
		t.Errorf("duration_ms = %v", got["duration_ms"])
	}
	if _, ok := got["duration"]; ok {
		t.Error("raw duration should not be encoded")
	}
	if got["status"] != float64(200) {
		t.Errorf("status = %v", got["status"])
	}

	failed := decodeMap(t, Failure[int](NewError(ErrServerError, "boom"), 20*time.Millisecond))
	failure, _ := failed["failure"].(map[string]any)
	if failure["error_type"] != string(ErrServerError) || failed["duration_ms"] != float64(20) {
		t.Errorf("failure = %v", failed)
	}
}

func TestConnectionTestEncodesResponseTime(t *testing.T) {
	r := Success(struct{}{}, 200, 250*time.Millisecond)
	got := decodeMap(t, ConnectionTestFromResult(MarketplaceMirakl, r, nil))
	if got["response_time_ms"] != float64(250) || got["success"] != true {
		t.Errorf("connection test = %v", got)
	}
	if _, ok := got["ResponseTime"]; ok {
		t.Error("raw response time should not be encoded")
	}
}

func TestDiscoveryResultEncodesExecutionTime(t *testing.T) {
	summary := BatchSummary{Results: []DiscoveryResult{{AccountID: "acc-1", Success: true, ExecutionTime: 3 * time.Second}}}
	got := decodeMap(t, summary)
	results, _ := got["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", got["results"])
	}
	first := results[0].(map[string]any)
	if first["execution_time_ms"] != float64(3000) || first["account_id"] != "acc-1" {
		t.Errorf("result = %v", first)
	}

	var back DiscoveryResult
	data, _ := json.Marshal(summary.Results[0])
	if err := json.Unmarshal(data, &back); err != nil || back.AccountID != "acc-1" || !back.Success {
		t.Errorf("decoded = %+v (%v)", back, err)
	}
}
