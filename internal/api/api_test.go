package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/BTreeMap/IntakePipe/internal/flow"
	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/BTreeMap/IntakePipe/internal/store"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	if err := st.SaveFlowDefinition(flow.DefaultFlowDefinition()); err != nil {
		t.Fatalf("seed flow failed: %v", err)
	}
	orch := flow.NewOrchestrator(st)
	return NewServer(orch, st), st
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	var resp models.APIResponse
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := doJSON(t, srv, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resp.Status != string(models.APIStatusOK) {
		t.Errorf("expected ok status, got %s", resp.Status)
	}
}

func TestStartConversationHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := doJSON(t, srv, http.MethodPost, "/conversation/start", "{}")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %T", resp.Result)
	}
	if result["session_id"] == "" {
		t.Error("expected session id in result")
	}
	if result["step_id"] != float64(1) {
		t.Errorf("expected step_id 1, got %v", result["step_id"])
	}
}

func TestStartConversationHandler_NoFlow(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(flow.NewOrchestrator(st), st)
	w, _ := doJSON(t, srv, http.MethodPost, "/conversation/start", "{}")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestStartConversationHandler_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodGet, "/conversation/start", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestRespondHandler_FullExchange(t *testing.T) {
	srv, _ := newTestServer(t)

	_, startResp := doJSON(t, srv, http.MethodPost, "/conversation/start", "{}")
	sid := startResp.Result.(map[string]interface{})["session_id"].(string)

	w, resp := doJSON(t, srv, http.MethodPost, "/conversation/respond",
		`{"message":"Maria Silva","session_id":"`+sid+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := resp.Result.(map[string]interface{})
	if result["response_type"] != string(models.ResponseTypeStructuredStep) {
		t.Errorf("expected structured step, got %v", result["response_type"])
	}
	if result["current_step"] != float64(2) {
		t.Errorf("expected current step 2, got %v", result["current_step"])
	}
}

func TestRespondHandler_EmptyMessage(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodPost, "/conversation/respond", `{"message":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRespondHandler_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodPost, "/conversation/respond", "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSubmitPhoneHandler(t *testing.T) {
	srv, st := newTestServer(t)

	sess := models.NewSession("web_apitest", models.PlatformWeb)
	sess.FlowCompleted = true
	sess.Responses = map[string]string{"step_1": "Maria Silva"}
	if err := st.SaveSession(sess); err != nil {
		t.Fatalf("seed session failed: %v", err)
	}

	w, resp := doJSON(t, srv, http.MethodPost, "/conversation/submit-phone",
		`{"phone_number":"11987654321","session_id":"web_apitest"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	result := resp.Result.(map[string]interface{})
	if result["phone_collected"] != true {
		t.Errorf("expected phone collected, got %v", result["phone_collected"])
	}
	if !strings.Contains(result["message"].(string), "11987654321") {
		t.Errorf("expected digits in confirmation, got %v", result["message"])
	}
}

func TestSubmitPhoneHandler_UnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodPost, "/conversation/submit-phone",
		`{"phone_number":"11987654321","session_id":"missing"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSubmitPhoneHandler_MissingSessionID(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodPost, "/conversation/submit-phone",
		`{"phone_number":"11987654321"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSessionStatusHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	_, startResp := doJSON(t, srv, http.MethodPost, "/conversation/start", "{}")
	sid := startResp.Result.(map[string]interface{})["session_id"].(string)

	w, resp := doJSON(t, srv, http.MethodGet, "/conversation/status/"+sid, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := resp.Result.(map[string]interface{})
	if result["exists"] != true {
		t.Errorf("expected exists=true, got %v", result["exists"])
	}
	if result["total_steps"] != float64(4) {
		t.Errorf("expected 4 total steps, got %v", result["total_steps"])
	}
}

func TestSessionStatusHandler_Unknown(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := doJSON(t, srv, http.MethodGet, "/conversation/status/nope", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := resp.Result.(map[string]interface{})
	if result["exists"] != false {
		t.Errorf("expected exists=false, got %v", result["exists"])
	}
}

func TestFlowHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := doJSON(t, srv, http.MethodGet, "/conversation/flow", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := resp.Result.(map[string]interface{})
	if result["step_count"] != float64(4) {
		t.Errorf("expected 4 steps, got %v", result["step_count"])
	}
}

func TestFlowHandler_NotConfigured(t *testing.T) {
	st := store.NewInMemoryStore()
	srv := NewServer(flow.NewOrchestrator(st), st)
	w, _ := doJSON(t, srv, http.MethodGet, "/conversation/flow", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestLeadsHandler(t *testing.T) {
	srv, st := newTestServer(t)

	if _, err := st.SaveLead(models.Lead{
		SessionID: "web_lead1",
		Answers:   []models.LeadAnswer{{ID: 1, Answer: "Maria Silva"}},
		Phone:     "11987654321",
		Status:    models.LeadStatusNew,
		Source:    "web",
	}); err != nil {
		t.Fatalf("seed lead failed: %v", err)
	}

	w, resp := doJSON(t, srv, http.MethodGet, "/leads?limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := resp.Result.(map[string]interface{})
	if result["count"] != float64(1) {
		t.Errorf("expected 1 lead, got %v", result["count"])
	}
}

func TestLeadsHandler_InvalidLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	w, _ := doJSON(t, srv, http.MethodGet, "/leads?limit=abc", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStatusHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	w, resp := doJSON(t, srv, http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	result := resp.Result.(map[string]interface{})
	if result["overall_status"] != "degraded" {
		t.Errorf("expected degraded without AI, got %v", result["overall_status"])
	}
}
