package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/vigil/internal/config"
	"github.com/lazypower/vigil/internal/engine"
	"github.com/lazypower/vigil/internal/llm"
	"github.com/lazypower/vigil/internal/store"
)

func testServer(t *testing.T, client llm.Client) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if client == nil {
		client = &llm.MockClient{Response: &llm.Response{Content: `{"label": "UNKNOWN", "confidence": 0.0}`}}
	}
	eng := engine.New(config.Default(), engine.Deps{DB: db, LLM: client})
	return New(db, eng, "test")
}

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["db"] != true {
		t.Errorf("db = %v, want true", resp["db"])
	}
}

func TestClassifyFastPath(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"user_id":"dev1","process_name":"Code.exe","window_title":"main.go"}`
	req := httptest.NewRequest("POST", "/api/classify", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["label"] != "STUDY" {
		t.Errorf("label = %v, want STUDY", resp["label"])
	}
	if resp["fast_path"] != true {
		t.Errorf("fast_path = %v, want true", resp["fast_path"])
	}
}

func TestClassifyMissingUser(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"process_name":"Code.exe"}`
	req := httptest.NewRequest("POST", "/api/classify", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHeartbeatBlacklistKill(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"user_id":"dev1","apps":["Steam Client"]}`
	req := httptest.NewRequest("POST", "/api/heartbeat", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["action"] != "KILL" {
		t.Errorf("action = %v, want KILL; body: %s", resp["action"], w.Body.String())
	}
}

func TestRecordEventAndTrust(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"user_id":"dev1","type":"SMARTPHONE_DETECTED","detail":"phone on desk"}`
	req := httptest.NewRequest("POST", "/api/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var rec map[string]any
	json.Unmarshal(w.Body.Bytes(), &rec)
	if rec["new_trust"] != float64(45) {
		t.Errorf("new_trust = %v, want 45", rec["new_trust"])
	}

	// Trust endpoint agrees.
	req = httptest.NewRequest("GET", "/api/trust/dev1", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var rep map[string]any
	json.Unmarshal(w.Body.Bytes(), &rep)
	if rep["score"] != float64(45) {
		t.Errorf("score = %v, want 45", rep["score"])
	}
	if rep["tier"] != "MID" {
		t.Errorf("tier = %v, want MID", rep["tier"])
	}
}

func TestRecordEventMissingType(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"user_id":"dev1"}`
	req := httptest.NewRequest("POST", "/api/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTurnAndContext(t *testing.T) {
	srv := testServer(t, nil)

	body := `{"user_id":"dev1","role":"user","text":"starting calculus homework"}`
	req := httptest.NewRequest("POST", "/api/turns", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	req = httptest.NewRequest("GET", "/api/context?user_id=dev1", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp["context"], "calculus homework") {
		t.Errorf("context missing turn: %s", resp["context"])
	}
}

func TestContextRequiresUser(t *testing.T) {
	srv := testServer(t, nil)

	req := httptest.NewRequest("GET", "/api/context", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestConsolidateEndpoint(t *testing.T) {
	client := &llm.MockClient{Response: &llm.Response{Content: "User was caught with a phone."}}
	srv := testServer(t, client)

	body := `{"user_id":"dev1","type":"SMARTPHONE_DETECTED"}`
	req := httptest.NewRequest("POST", "/api/events", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("seed event: status = %d; body: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest("POST", "/api/consolidate/dev1", nil)
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var res map[string]any
	json.Unmarshal(w.Body.Bytes(), &res)
	if res["event_count"] != float64(1) {
		t.Errorf("event_count = %v, want 1; body: %s", res["event_count"], w.Body.String())
	}
}
