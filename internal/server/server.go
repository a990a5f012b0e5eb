// Package server exposes the speech-triage pipeline over HTTP: text
// ingestion, guard checks, intent parsing, and the local adapter stubs used
// in single-box deployments.
package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carelink-ai/vigil/internal/guard"
	"github.com/carelink-ai/vigil/internal/health"
	"github.com/carelink-ai/vigil/internal/intent"
	"github.com/carelink-ai/vigil/internal/observe"
	"github.com/carelink-ai/vigil/internal/orchestrator"
)

// maxBodyBytes bounds request bodies; utterances are short.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests into the pipeline.
type Server struct {
	orch    *orchestrator.Orchestrator
	health  *health.Handler
	metrics *observe.Metrics
}

// New builds a Server over the orchestrator. A nil metrics falls back to
// the package default.
func New(orch *orchestrator.Orchestrator, h *health.Handler, metrics *observe.Metrics) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{orch: orch, health: h, metrics: metrics}
}

// Handler returns the fully wired HTTP handler: routes, observability
// middleware, and panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /asr_text", s.handleASRText)
	mux.HandleFunc("POST /guard/check", s.handleGuardCheck)
	mux.HandleFunc("POST /parse_intent", s.handleParseIntent)
	mux.HandleFunc("POST /smart-home/cmd", s.handleSmartHomeStub)
	mux.HandleFunc("POST /sip/call", s.handleSIPStub)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(recoverer(mux))
}

// recoverer converts handler panics into 500 responses instead of dropped
// connections.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				observe.Logger(r.Context()).Error("handler panic",
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// handleASRText runs one transcript through the full pipeline.
func (s *Server) handleASRText(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "bad_input", "text is required")
		return
	}
	resp := s.orch.Process(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// guardCheckRequest is the /guard/check body. Type selects which check
// runs: "asr" inspects raw text, "intent" applies policy to a parsed
// intent.
type guardCheckRequest struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Emotion *guard.Emotion   `json:"emotion,omitempty"`
	Intent  *json.RawMessage `json:"intent,omitempty"`
}

func (s *Server) handleGuardCheck(w http.ResponseWriter, r *http.Request) {
	var req guardCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch req.Type {
	case "asr", "":
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "bad_input", "text is required for the asr check")
			return
		}
		emo := guard.Neutral()
		if req.Emotion != nil {
			emo = *req.Emotion
		}
		writeJSON(w, http.StatusOK, s.orch.Guard().CheckText(req.Text, emo))

	case "intent":
		if req.Intent == nil {
			writeError(w, http.StatusBadRequest, "bad_input", "intent is required for the intent check")
			return
		}
		it, err := intent.Decode(*req.Intent)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_input", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, s.orch.Guard().CheckIntent(it))

	default:
		writeError(w, http.StatusBadRequest, "bad_input", "type must be asr or intent")
	}
}

// parseIntentRequest is the /parse_intent body. Context optionally
// overrides the server-side conversation history in the prompt.
type parseIntentRequest struct {
	Text    string   `json:"text"`
	Context []string `json:"context,omitempty"`
}

func (s *Server) handleParseIntent(w http.ResponseWriter, r *http.Request) {
	var req parseIntentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "bad_input", "text is required")
		return
	}
	lines := req.Context
	if lines == nil {
		lines = s.orch.ContextLines()
	}
	res := s.orch.Parser().Parse(r.Context(), req.Text, lines)
	writeJSON(w, http.StatusOK, res.Intent)
}

// handleSmartHomeStub is the loopback smart-home endpoint used when no real
// home-automation bridge is deployed: it acknowledges and echoes the
// command.
func (s *Server) handleSmartHomeStub(w http.ResponseWriter, r *http.Request) {
	var cmd map[string]any
	if !decodeBody(w, r, &cmd) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "echo": cmd})
}

// handleSIPStub is the loopback SIP endpoint; it pretends to dial.
func (s *Server) handleSIPStub(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Callee string `json:"callee"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Callee == "" {
		writeError(w, http.StatusBadRequest, "bad_input", "callee is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dialing", "callee": req.Callee})
}

// decodeBody parses the JSON request body into v, answering bad_input on
// malformed payloads. Returns false when a response has been written.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_input", "request body must be JSON")
		return false
	}
	// Drain so keep-alive connections can be reused.
	io.Copy(io.Discard, body)
	return true
}

// errorResponse mirrors the pipeline response shape: clients can switch on
// a top-level status for malformed requests too.
type errorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Status: orchestrator.StatusError, Error: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}
