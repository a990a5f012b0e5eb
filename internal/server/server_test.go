package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	adaptermock "github.com/carelink-ai/vigil/internal/adapters/mock"
	"github.com/carelink-ai/vigil/internal/geofence"
	"github.com/carelink-ai/vigil/internal/health"
	"github.com/carelink-ai/vigil/internal/orchestrator"
	"github.com/carelink-ai/vigil/internal/parser"
	llmmock "github.com/carelink-ai/vigil/pkg/provider/intentllm/mock"
)

func newTestHandler(t *testing.T, llmResponses ...string) http.Handler {
	t.Helper()
	zones, err := geofence.NewStore(nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	llm := &llmmock.Provider{Responses: llmResponses}
	orch := orchestrator.New(orchestrator.Config{
		Parser:    parser.New(nil, parser.NewBackend(llm, time.Second, 3, time.Minute)),
		Zones:     zones,
		SmartHome: &adaptermock.SmartHome{},
		SIP:       &adaptermock.SIPCaller{},
		Social:    &adaptermock.Social{Reply: "我们聊聊吧。"},
	})
	return New(orch, health.New("vigil"), nil).Handler()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestASRTextExecutes(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/asr_text", `{"text":"小伴，请帮我开客厅的灯"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp orchestrator.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != orchestrator.StatusOK {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Intent == nil || resp.Intent.Device != "living_room_light" {
		t.Errorf("intent = %+v", resp.Intent)
	}
}

func TestASRTextRejectsEmptyText(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/asr_text", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var e struct {
		Status string `json:"status"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if e.Status != orchestrator.StatusError {
		t.Errorf("status = %q, want error", e.Status)
	}
	if e.Error != "bad_input" {
		t.Errorf("error = %q, want bad_input", e.Error)
	}
}

func TestASRTextRejectsNonJSON(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/asr_text", "not json at all")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestASRTextRejectsUnknownEmotion(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/asr_text", `{"text":"你好","emotion":{"primary_emotion":"ecstatic"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGuardCheckASRStage(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/guard/check", `{"type":"asr","text":"救命啊"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var d struct {
		Decision string   `json:"decision"`
		Route    []string `json:"route"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if d.Decision != "dispatch_emergency" {
		t.Errorf("decision = %q, want dispatch_emergency", d.Decision)
	}
	if len(d.Route) != 3 || d.Route[0] != "sip" {
		t.Errorf("route = %v", d.Route)
	}
}

func TestGuardCheckIntentStage(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/guard/check", `{"type":"intent","intent":{"intent":"lock.unlock","target":"front_door_lock"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var d struct {
		Decision string `json:"decision"`
		Prompt   string `json:"prompt"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&d); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if d.Decision != "need_confirm" {
		t.Errorf("decision = %q, want need_confirm", d.Decision)
	}
	if d.Prompt == "" {
		t.Error("prompt is empty")
	}
}

func TestGuardCheckRejectsUnknownIntentTag(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/guard/check", `{"type":"intent","intent":{"intent":"make.tea"}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestParseIntent(t *testing.T) {
	h := newTestHandler(t, `{"intent":"social.chat","content_type":"chat"}`)

	rec := postJSON(t, h, "/parse_intent", `{"text":"陪我说说话好吗"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var it struct {
		Intent string `json:"intent"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&it); err != nil {
		t.Fatalf("decode intent: %v", err)
	}
	if it.Intent != "social.chat" {
		t.Errorf("intent = %q, want social.chat", it.Intent)
	}
}

func TestSmartHomeStubEchoes(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/smart-home/cmd", `{"device":"living_room_light","action":"on"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status string         `json:"status"`
		Echo   map[string]any `json:"echo"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Echo["device"] != "living_room_light" {
		t.Errorf("echo = %v", resp.Echo)
	}
}

func TestSIPStubDials(t *testing.T) {
	h := newTestHandler(t)

	rec := postJSON(t, h, "/sip/call", `{"callee":"120"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["status"] != "dialing" || resp["callee"] != "120" {
		t.Errorf("response = %v", resp)
	}
}

func TestHealthRoutes(t *testing.T) {
	h := newTestHandler(t)

	for _, path := range []string{"/health", "/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestIdenticalRequestsYieldIdenticalBodies(t *testing.T) {
	h := newTestHandler(t)

	first := postJSON(t, h, "/asr_text", `{"text":"打开卧室的灯"}`)
	second := postJSON(t, h, "/asr_text", `{"text":"打开卧室的灯"}`)
	if first.Body.String() != second.Body.String() {
		t.Errorf("bodies differ:\n%s\n%s", first.Body, second.Body)
	}
}
