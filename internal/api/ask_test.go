package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ledgerask/ledgerask/internal/pipeline"
)

func TestAskReturnsRows(t *testing.T) {
	asker := &fakeAsker{response: pipeline.Response{
		RequestID: "req-1",
		SQL:       "select customer_name from sales",
		Columns:   []string{"customer_name"},
		Rows:      [][]any{{"alice"}, {"bob"}},
		Table:     "sales",
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Asker: asker})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, askRequestFor(`{"question":"list sales customers"}`))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["sql"] != "select customer_name from sales" || body["table"] != "sales" || body["request_id"] != "req-1" {
		t.Fatalf("body = %v", body)
	}
	rows, ok := body["rows"].([]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("rows = %v", body["rows"])
	}
	if len(asker.questions) != 1 || asker.questions[0] != "list sales customers" {
		t.Fatalf("questions = %q", asker.questions)
	}
}

func TestAskMapsFailureKinds(t *testing.T) {
	cases := []struct {
		kind       pipeline.FailureKind
		sql        string
		wantStatus int
		wantCode   string
	}{
		{kind: pipeline.FailureInvalidQuestion, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUESTION"},
		{kind: pipeline.FailureStoreUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "STORE_UNAVAILABLE"},
		{kind: pipeline.FailureUpstreamUnavailable, wantStatus: http.StatusGatewayTimeout, wantCode: "UPSTREAM_UNAVAILABLE"},
		{kind: pipeline.FailureGenerationFailed, wantStatus: http.StatusBadGateway, wantCode: "GENERATION_FAILED"},
		{kind: pipeline.FailureQueryRejected, sql: "drop table sales", wantStatus: http.StatusUnprocessableEntity, wantCode: "QUERY_REJECTED"},
		{kind: pipeline.FailureExecutionFailed, sql: "select nope from sales", wantStatus: http.StatusBadRequest, wantCode: "EXECUTION_FAILED"},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			asker := &fakeAsker{response: pipeline.Response{
				RequestID: "req-2",
				SQL:       tc.sql,
				Failure:   &pipeline.Failure{Kind: tc.kind, Message: "failed"},
			}}
			h := NewHandler(loadConfig(t, nil), Dependencies{Asker: asker})

			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, askRequestFor(`{"question":"q"}`))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			body := decodeBody(t, rr)
			if body["error_code"] != tc.wantCode || body["message"] != "failed" {
				t.Fatalf("body = %v", body)
			}
			extra, _ := body["context"].(map[string]any)
			sqlText, hasSQL := extra["sql"]
			if tc.sql == "" && hasSQL {
				t.Fatalf("unexpected sql in context: %v", sqlText)
			}
			if tc.sql != "" && sqlText != tc.sql {
				t.Fatalf("context sql = %v, want %q", sqlText, tc.sql)
			}
			if extra["request_id"] != "req-2" {
				t.Fatalf("context request_id = %v", extra["request_id"])
			}
		})
	}
}

func TestAskRejectsBadBodies(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown field": `{"question":"q","sql":"select 1"}`,
		"empty":         `{"question":"   "}`,
	}
	for name, payload := range cases {
		asker := &fakeAsker{}
		h := NewHandler(loadConfig(t, nil), Dependencies{Asker: asker})
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, askRequestFor(payload))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", name, rr.Code)
		}
		if len(asker.questions) != 0 {
			t.Fatalf("%s: asker called", name)
		}
	}
}

func TestAskWithoutPipeline(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, askRequestFor(`{"question":"q"}`))
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLegacyQueryShapes(t *testing.T) {
	success := &fakeAsker{response: pipeline.Response{
		SQL:     "select count(*) from orders",
		Columns: []string{"count_star()"},
		Rows:    [][]any{{8}},
	}}
	h := NewHandler(loadConfig(t, nil), Dependencies{Asker: success})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?query=how+many+orders", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	results, ok := body["results"].(map[string]any)
	if !ok || body["sql"] != "select count(*) from orders" {
		t.Fatalf("body = %v", body)
	}
	if _, ok := results["columns"]; !ok {
		t.Fatalf("results = %v", results)
	}
	if data, _ := results["data"].([]any); len(data) != 1 {
		t.Fatalf("data = %v", results["data"])
	}
	if success.questions[0] != "how many orders" {
		t.Fatalf("question = %q", success.questions[0])
	}

	withSQL := &fakeAsker{response: pipeline.Response{
		SQL:     "select nope from sales",
		Failure: &pipeline.Failure{Kind: pipeline.FailureExecutionFailed, Message: "column not found"},
	}}
	h = NewHandler(loadConfig(t, nil), Dependencies{Asker: withSQL})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?query=bad", nil))
	body = decodeBody(t, rr)
	if rr.Code != http.StatusOK || body["sql"] != "select nope from sales" || body["error"] != "column not found" {
		t.Fatalf("status = %d, body = %v", rr.Code, body)
	}

	noSQL := &fakeAsker{response: pipeline.Response{
		Failure: &pipeline.Failure{Kind: pipeline.FailureGenerationFailed, Message: "No choices found in the response."},
	}}
	h = NewHandler(loadConfig(t, nil), Dependencies{Asker: noSQL})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query?query=bad", nil))
	body = decodeBody(t, rr)
	if _, ok := body["sql"]; ok {
		t.Fatalf("unexpected sql: %v", body)
	}
	if body["error"] != "No choices found in the response." {
		t.Fatalf("body = %v", body)
	}
}

func TestLegacyQueryRequiresParameter(t *testing.T) {
	asker := &fakeAsker{}
	h := NewHandler(loadConfig(t, nil), Dependencies{Asker: asker})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/query", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(asker.questions) != 0 {
		t.Fatal("asker should not be called")
	}
}
