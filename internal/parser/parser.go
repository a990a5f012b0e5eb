// Package parser turns free-form utterances into validated intents using
// the configured LLM backends.
//
// Backends are tried in order, each behind its own circuit breaker and
// deadline, so a dead cloud endpoint degrades to the edge model instead of
// stalling the pipeline. The parser never fails outward: malformed model
// output and unreachable backends both collapse into clarification intents
// that the orchestrator can speak to the user.
package parser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carelink-ai/vigil/internal/intent"
	"github.com/carelink-ai/vigil/internal/observe"
	"github.com/carelink-ai/vigil/internal/resilience"
	"github.com/carelink-ai/vigil/pkg/provider/intentllm"
)

// systemPrompt instructs the model to emit exactly one intent object.
const systemPrompt = `你是老人陪伴机器人的意图解析器。把用户的话解析成一个JSON对象，只输出JSON，不要任何解释。

可用的intent及字段:
- {"intent":"smart.home","device":"<设备id>","action":"on|off|set","room":"<房间>"}
- {"intent":"call.emergency","callee":"<号码或联系人>","reason":"<原因>"}
- {"intent":"social.chat","content_type":"chat|story|news","mood":"<语气>"}
- {"intent":"assist.move","target":"<目的地>","speed":"slow|normal|fast"}
- {"intent":"lock.unlock","target":"<门锁id>"}
- 无法判断时: {"intent":"ask.clarification","need":"ask_clarification","missing_fields":["..."],"clarify_prompt":"<向用户提的问题>"}

只能使用上面列出的intent和枚举值。`

// Fallback prompts spoken when parsing cannot produce an intent.
const (
	formatClarifyPrompt      = "请再说一遍，或更具体一点。"
	unreachableClarifyPrompt = "抱歉，我没听清，请再说一遍。"
)

// Backend is one LLM backend with its failure isolation.
type Backend struct {
	Provider intentllm.Provider
	Timeout  time.Duration
	Breaker  *resilience.CircuitBreaker
}

// NewBackend wraps a provider with a breaker tripping after maxFailures
// consecutive transport failures and cooling down for resetTimeout.
func NewBackend(p intentllm.Provider, timeout time.Duration, maxFailures int, resetTimeout time.Duration) Backend {
	return Backend{
		Provider: p,
		Timeout:  timeout,
		Breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "llm-" + p.Name(),
			MaxFailures:  maxFailures,
			ResetTimeout: resetTimeout,
		}),
	}
}

// Result carries the parsed intent plus which backend produced it;
// Backend is "fallback" when no backend could serve.
type Result struct {
	Intent  intent.Intent
	Backend string
}

// Parser drives the backend chain.
type Parser struct {
	backends []Backend
	metrics  *observe.Metrics
	prompt   string
}

// New builds a Parser over the given backends, tried in order.
func New(metrics *observe.Metrics, backends ...Backend) *Parser {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Parser{backends: backends, metrics: metrics, prompt: systemPrompt}
}

// SetSystemPrompt replaces the built-in parsing prompt, for deployments
// that tune it per household. Empty keeps the built-in prompt. Call before
// the first Parse.
func (p *Parser) SetSystemPrompt(s string) {
	if s != "" {
		p.prompt = s
	}
}

// Parse resolves text (with optional conversation context lines) into an
// intent. It always returns a usable intent: when every backend is
// unreachable or the model output cannot be decoded, the result is a
// clarification intent and Backend reports "fallback".
func (p *Parser) Parse(ctx context.Context, text string, contextLines []string) Result {
	req := intentllm.Request{
		SystemPrompt: p.prompt,
		UserPrompt:   buildUserPrompt(text, contextLines),
	}

	for _, b := range p.backends {
		raw, err := p.complete(ctx, b, req)
		if err != nil {
			p.metrics.RecordParseError(ctx, b.Provider.Name(), "transport")
			observe.Logger(ctx).Warn("llm backend unavailable",
				"backend", b.Provider.Name(), "error", err)
			continue
		}

		it, err := decodeOutput(raw)
		if err != nil {
			// The model answered but not with a usable intent. Retrying
			// another backend on the same prompt rarely helps; ask the
			// user instead.
			p.metrics.RecordParseError(ctx, b.Provider.Name(), "format")
			observe.Logger(ctx).Warn("llm output rejected",
				"backend", b.Provider.Name(), "error", err)
			return Result{
				Intent:  intent.Clarify(formatClarifyPrompt, "format"),
				Backend: "fallback",
			}
		}
		return Result{Intent: it, Backend: b.Provider.Name()}
	}

	return Result{
		Intent:  intent.Clarify(unreachableClarifyPrompt, "intent_type"),
		Backend: "fallback",
	}
}

// complete runs one backend call through its breaker and deadline.
func (p *Parser) complete(ctx context.Context, b Backend, req intentllm.Request) (string, error) {
	start := time.Now()
	var raw string
	call := func() error {
		cctx := ctx
		if b.Timeout > 0 {
			var cancel context.CancelFunc
			cctx, cancel = context.WithTimeout(ctx, b.Timeout)
			defer cancel()
		}
		var err error
		raw, err = b.Provider.Complete(cctx, req)
		return err
	}

	var err error
	if b.Breaker != nil {
		err = b.Breaker.Execute(call)
	} else {
		err = call()
	}
	p.metrics.ParseDuration.Record(ctx, time.Since(start).Seconds())
	return raw, err
}

// decodeOutput extracts and validates the intent object in raw model
// output.
func decodeOutput(raw string) (intent.Intent, error) {
	obj, err := intent.ExtractJSON(raw)
	if err != nil {
		return intent.Intent{}, fmt.Errorf("parser: %w", err)
	}
	it, err := intent.Decode([]byte(obj))
	if err != nil {
		return intent.Intent{}, fmt.Errorf("parser: %w", err)
	}
	return it, nil
}

// buildUserPrompt prepends recent conversation lines so the model can
// resolve references like "把它关掉".
func buildUserPrompt(text string, contextLines []string) string {
	if len(contextLines) == 0 {
		return text
	}
	var sb strings.Builder
	sb.WriteString("最近的对话:\n")
	for _, line := range contextLines {
		sb.WriteString("- ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString("当前的话: ")
	sb.WriteString(text)
	return sb.String()
}
