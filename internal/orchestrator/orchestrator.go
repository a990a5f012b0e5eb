// Package orchestrator runs the utterance pipeline: preprocessing, rules
// triage, LLM parsing, the policy check, and finally adapter execution.
//
// Responses are deterministic: identical requests produce byte-identical
// response bodies. Timing, trace and identifiers live only in the audit
// trail.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/carelink-ai/vigil/internal/adapters"
	"github.com/carelink-ai/vigil/internal/audit"
	"github.com/carelink-ai/vigil/internal/geofence"
	"github.com/carelink-ai/vigil/internal/guard"
	"github.com/carelink-ai/vigil/internal/intent"
	"github.com/carelink-ai/vigil/internal/observe"
	"github.com/carelink-ai/vigil/internal/parser"
)

// confirmPrompt is spoken for low-confidence implicit commands.
const confirmPrompt = "需要我帮您调整吗？请说“确认”或“取消”。"

// Location is the resident's position in the home frame, metres.
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Request is one utterance to process. Confirm marks the resubmission of a
// previously unconfirmed request: the confirmation gate is skipped, policy
// denials are not.
type Request struct {
	Text     string         `json:"text"`
	Confirm  bool           `json:"confirm,omitempty"`
	Emotion  *guard.Emotion `json:"emotion,omitempty"`
	Location *Location      `json:"location,omitempty"`
	Behavior string         `json:"behavior,omitempty"`
}

// Wire status values.
const (
	StatusOK          = "ok"
	StatusDispatched  = "emergency_dispatched"
	StatusNeedConfirm = "need_confirm"
	StatusDenied      = "denied"
	StatusCanceled    = "canceled"
	StatusError       = "error"
)

// Response is the pipeline outcome. It carries no timestamps or trace data,
// so retried requests stay idempotent at the byte level.
type Response struct {
	Status string `json:"status"`

	Verdict guard.Verdict `json:"verdict,omitempty"`
	Reason  string        `json:"reason,omitempty"`
	Prompt  string        `json:"prompt,omitempty"`
	Route   []string      `json:"route,omitempty"`

	// Adapter names the downstream service at fault on StatusError.
	Adapter string `json:"adapter,omitempty"`

	Zone     string           `json:"zone,omitempty"`
	Geofence *geofence.Report `json:"geofence,omitempty"`

	Intent    *intent.Intent            `json:"intent,omitempty"`
	SmartHome *adapters.SmartHomeResult `json:"smart_home,omitempty"`
	Call      *adapters.CallResult      `json:"call,omitempty"`
	Social    *adapters.SocialResult    `json:"social,omitempty"`

	Error string `json:"error,omitempty"`
}

// Config wires an Orchestrator.
type Config struct {
	Parser    *parser.Parser
	Zones     *geofence.Store
	SmartHome adapters.SmartHome
	SIP       adapters.SIPCaller
	Social    adapters.Social
	Audit     *audit.Logger
	Metrics   *observe.Metrics

	// GuardOptions configure the rules engine; the context-boost hook is
	// installed on top of them.
	GuardOptions []guard.Option

	// HistorySize is the conversation window. Default 10.
	HistorySize int

	// DefaultCallee receives emergency dispatch calls. Default "120".
	DefaultCallee string

	// MaxTotalLatency bounds one Process call end to end, adapter calls
	// included. Zero disables the bound.
	MaxTotalLatency time.Duration

	// OnEmergency, when set, is invoked on every emergency dispatch. The
	// audio bridge uses it to route the surrounding speech segments through
	// the queue's priority lane.
	OnEmergency func()
}

type inflight struct {
	cancel    context.CancelFunc
	emergency bool
}

// Orchestrator owns the pipeline state: the rules engine, conversation
// history, and the set of in-flight requests (so an incoming emergency can
// cancel routine work).
type Orchestrator struct {
	guard         *guard.Engine
	parser        *parser.Parser
	zones         *geofence.Store
	smartHome     adapters.SmartHome
	sip           adapters.SIPCaller
	social        adapters.Social
	audit         *audit.Logger
	metrics       *observe.Metrics
	hist          *history
	defaultCallee string
	maxLatency    time.Duration
	onEmergency   func()

	mu      sync.Mutex
	running map[uint64]*inflight
	nextID  uint64
}

// New builds an Orchestrator.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		parser:        cfg.Parser,
		zones:         cfg.Zones,
		smartHome:     cfg.SmartHome,
		sip:           cfg.SIP,
		social:        cfg.Social,
		audit:         cfg.Audit,
		metrics:       cfg.Metrics,
		hist:          newHistory(cfg.HistorySize),
		defaultCallee: cfg.DefaultCallee,
		maxLatency:    cfg.MaxTotalLatency,
		onEmergency:   cfg.OnEmergency,
		running:       make(map[uint64]*inflight),
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.defaultCallee == "" {
		o.defaultCallee = "120"
	}
	opts := append([]guard.Option{}, cfg.GuardOptions...)
	opts = append(opts, guard.WithContextBoost(o.hist.Boost))
	o.guard = guard.New(opts...)
	return o
}

// Guard exposes the rules engine for the /guard/check endpoint.
func (o *Orchestrator) Guard() *guard.Engine { return o.guard }

// Parser exposes the intent parser for the /parse_intent endpoint.
func (o *Orchestrator) Parser() *parser.Parser { return o.parser }

// ContextLines returns the recent conversation texts for prompt building.
func (o *Orchestrator) ContextLines() []string { return o.hist.Lines() }

// ─── in-flight bookkeeping ───

func (o *Orchestrator) register(cancel context.CancelFunc) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	o.running[id] = &inflight{cancel: cancel}
	return id
}

func (o *Orchestrator) unregister(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, id)
}

// promote marks the request as an emergency and cancels every other
// non-emergency request currently in the pipeline.
func (o *Orchestrator) promote(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if e, ok := o.running[id]; ok {
		e.emergency = true
	}
	for other, e := range o.running {
		if other != id && !e.emergency {
			e.cancel()
		}
	}
}

// ─── trace ───

type traceBuilder struct {
	stages []audit.StageTiming
}

func (t *traceBuilder) record(stage string, start time.Time) {
	t.stages = append(t.stages, audit.StageTiming{
		Stage:      stage,
		DurationMs: time.Since(start).Milliseconds(),
	})
}

// ─── pipeline ───

// Process runs one utterance through the pipeline and returns its
// deterministic response.
func (o *Orchestrator) Process(ctx context.Context, req Request) Response {
	start := time.Now()
	o.metrics.InFlight.Add(ctx, 1)
	defer o.metrics.InFlight.Add(ctx, -1)

	var cancel context.CancelFunc
	if o.maxLatency > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.maxLatency)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	id := o.register(cancel)
	defer o.unregister(id)

	tr := &traceBuilder{}
	path := "rules"
	backend := ""
	var resp Response

	defer func() {
		tr.record("total", start)
		o.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds())
		o.metrics.RecordRequest(ctx, path, string(resp.Verdict))
		o.writeAudit(req, resp, path, backend, tr.stages)
	}()

	// Preprocess.
	stageStart := time.Now()
	emo := guard.Neutral()
	if req.Emotion != nil {
		emo = *req.Emotion
		if emo.Primary == "" {
			emo.Primary = guard.EmotionNeutral
		}
	}
	var geo *geofence.Report
	zone := ""
	if req.Location != nil {
		r := o.zones.Check(req.Location.X, req.Location.Y, req.Behavior)
		geo = &r
		zone = r.Zone
	}
	tr.record("preprocess", stageStart)

	// Rules triage.
	stageStart = time.Now()
	out := o.guard.Triage(req.Text, emo, zone)
	o.metrics.GuardDuration.Record(ctx, time.Since(stageStart).Seconds())
	tr.record("rules", stageStart)

	// Emergency bypass: high-urgency SOS or a geofence violation dispatches
	// immediately, skipping parsing and policy.
	if out.SOS != nil && out.SOS.Urgency >= 3 {
		path = "bypass"
		o.promote(id)
		resp = o.dispatch(ctx, o.defaultCallee, string(out.SOS.Category), "sos", tr)
		resp.Zone = zone
		resp.Geofence = geo
		o.remember(req.Text)
		return resp
	}
	if geo != nil && geo.Status == geofence.StatusEmergency {
		path = "bypass"
		o.promote(id)
		resp = o.dispatch(ctx, o.defaultCallee, "geofence_violation", "geofence", tr)
		resp.Zone = zone
		resp.Geofence = geo
		o.remember(req.Text)
		return resp
	}

	if err := ctx.Err(); err != nil {
		resp = canceledResponse("rules")
		return resp
	}

	// Resolve an intent: rules extraction first, then the LLM.
	it := out.Intent
	if it == nil {
		path = "llm"
		stageStart = time.Now()
		res := o.parser.Parse(ctx, req.Text, o.hist.Lines())
		backend = res.Backend
		tr.record("llm_parse", stageStart)
		parsed := res.Intent
		it = &parsed
	}

	if err := ctx.Err(); err != nil {
		resp = canceledResponse("llm_parse")
		return resp
	}

	resp = o.decide(ctx, req, *it, tr)
	resp.Zone = zone
	resp.Geofence = geo
	o.remember(req.Text)
	return resp
}

// remember records the utterance and its topics for context boosting.
func (o *Orchestrator) remember(text string) {
	o.hist.Add(text, o.guard.Topics(text))
}

func canceledResponse(stage string) Response {
	return Response{Status: StatusCanceled, Reason: stage}
}

// decide applies the policy check to the intent and executes or withholds
// it accordingly.
func (o *Orchestrator) decide(ctx context.Context, req Request, it intent.Intent, tr *traceBuilder) Response {
	// Clarifications surface as need_confirm: the device speaks the prompt
	// and waits for a more specific utterance.
	if it.Kind == intent.KindClarify {
		return Response{
			Status:  StatusNeedConfirm,
			Verdict: guard.VerdictNeedConfirm,
			Reason:  it.Need,
			Prompt:  it.ClarifyPrompt,
			Intent:  &it,
		}
	}

	stageStart := time.Now()
	d := o.guard.CheckIntent(it)
	tr.record("policy", stageStart)

	switch d.Verdict {
	case guard.VerdictDeny:
		return Response{Status: StatusDenied, Verdict: d.Verdict, Reason: d.Reason, Intent: &it}

	case guard.VerdictDispatchEmergency:
		callee := it.Callee
		if callee == "" {
			callee = o.defaultCallee
		}
		reason := it.Reason
		if reason == "" {
			reason = d.Reason
		}
		resp := o.dispatch(ctx, callee, reason, "intent", tr)
		resp.Intent = &it
		return resp

	case guard.VerdictNeedConfirm:
		if !req.Confirm {
			return Response{
				Status:  StatusNeedConfirm,
				Verdict: d.Verdict,
				Reason:  d.Reason,
				Prompt:  d.Prompt,
				Intent:  &it,
			}
		}
	}

	// Low-confidence implicit commands carry their own confirmation flag.
	if it.Confirm && !req.Confirm {
		return Response{
			Status:  StatusNeedConfirm,
			Verdict: guard.VerdictNeedConfirm,
			Reason:  "low_confidence",
			Prompt:  confirmPrompt,
			Intent:  &it,
		}
	}

	if err := ctx.Err(); err != nil {
		return canceledResponse("policy")
	}

	return o.execute(ctx, req, it, tr)
}

// execute performs the intent's side effect through the matching adapter.
func (o *Orchestrator) execute(ctx context.Context, req Request, it intent.Intent, tr *traceBuilder) Response {
	stageStart := time.Now()
	defer func() {
		o.metrics.AdapterDuration.Record(ctx, time.Since(stageStart).Seconds())
		tr.record("execute", stageStart)
	}()

	switch it.Kind {
	case intent.KindSmartHome:
		res, err := o.smartHome.Execute(ctx, adapters.SmartHomeCommand{
			Device: it.Device,
			Action: string(it.Action),
			Room:   it.Room,
		})
		if err != nil {
			return o.adapterError(ctx, "smart_home", it, err)
		}
		return Response{Status: StatusOK, Verdict: guard.VerdictAllow, Intent: &it, SmartHome: &res}

	case intent.KindLockUnlock:
		res, err := o.smartHome.Execute(ctx, adapters.SmartHomeCommand{
			Device: it.Target,
			Action: "unlock",
		})
		if err != nil {
			return o.adapterError(ctx, "smart_home", it, err)
		}
		return Response{Status: StatusOK, Verdict: guard.VerdictAllow, Intent: &it, SmartHome: &res}

	case intent.KindSocialChat:
		res, err := o.social.Chat(ctx, adapters.SocialRequest{
			ContentType: it.ContentType,
			Mood:        it.Mood,
			Text:        req.Text,
		})
		if err != nil {
			return o.adapterError(ctx, "social", it, err)
		}
		return Response{Status: StatusOK, Verdict: guard.VerdictAllow, Intent: &it, Social: &res}

	case intent.KindAssistMove:
		// Movement is consumed by the robot base directly; the pipeline's
		// job ends at the approved intent.
		return Response{Status: StatusOK, Verdict: guard.VerdictAllow, Intent: &it}

	default:
		return Response{Status: StatusError, Verdict: guard.VerdictAllow, Reason: "unsupported_intent", Intent: &it}
	}
}

// adapterError sanitizes a downstream failure: the adapter name and a coarse
// reason go on the wire, the raw error goes to the log.
func (o *Orchestrator) adapterError(ctx context.Context, adapter string, it intent.Intent, err error) Response {
	if ctx.Err() != nil {
		return canceledResponse("execute")
	}
	observe.Logger(ctx).Error("adapter call failed", "adapter", adapter, "error", err)
	return Response{
		Status:  StatusError,
		Verdict: guard.VerdictAllow,
		Reason:  "adapter_error",
		Adapter: adapter,
		Intent:  &it,
	}
}

// dispatch places the emergency call. It runs exactly once per decision;
// a SIP failure is recorded in the audit trail but the response still
// reports the dispatch so downstream alerting fires.
func (o *Orchestrator) dispatch(ctx context.Context, callee, reason, source string, tr *traceBuilder) Response {
	stageStart := time.Now()
	o.metrics.RecordEmergency(ctx, source)
	if o.onEmergency != nil {
		o.onEmergency()
	}

	resp := Response{
		Status:  StatusDispatched,
		Verdict: guard.VerdictDispatchEmergency,
		Reason:  reason,
		Route:   guard.EmergencyRoute(),
	}

	res, err := o.sip.Call(ctx, adapters.CallRequest{Callee: callee, Reason: reason})
	o.metrics.AdapterDuration.Record(ctx, time.Since(stageStart).Seconds())
	stage := "dispatch"
	if source != "intent" {
		stage = "emergency_bypass"
	}
	tr.record(stage, stageStart)
	if err != nil {
		observe.Logger(ctx).Error("emergency dispatch call failed",
			"callee", callee, "reason", reason, "error", err)
		resp.Error = "dispatch_error"
		return resp
	}
	resp.Call = &res
	return resp
}

// writeAudit persists the decision record. Audit failures are logged, never
// surfaced to the caller.
func (o *Orchestrator) writeAudit(req Request, resp Response, path, backend string, stages []audit.StageTiming) {
	rec := audit.Record{
		Text:    req.Text,
		Path:    path,
		Verdict: string(resp.Verdict),
		Backend: backend,
		Trace:   stages,
	}
	if resp.Status == StatusDispatched {
		rec.DispatchError = resp.Error
	}
	if resp.Intent != nil {
		if raw, err := resp.Intent.Encode(); err == nil {
			rec.Intent = raw
		}
	}
	if resp.SmartHome != nil {
		rec.AdapterEcho = resp.SmartHome
	} else if resp.Call != nil {
		rec.AdapterEcho = resp.Call
	}
	if err := o.audit.Log(rec); err != nil {
		slog.Error("audit write failed", "error", err)
	}
}
