// Package app wires all vigil subsystems into a running service.
//
// The App struct owns the full lifecycle: New creates and connects the
// subsystems from config, Run executes the HTTP listener and the audio
// workers, and Close releases held resources.
//
// For testing, inject doubles via functional options (WithAdapters,
// WithBackends). When an option is not provided, New builds real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carelink-ai/vigil/internal/adapters"
	"github.com/carelink-ai/vigil/internal/audit"
	"github.com/carelink-ai/vigil/internal/config"
	"github.com/carelink-ai/vigil/internal/geofence"
	"github.com/carelink-ai/vigil/internal/guard"
	"github.com/carelink-ai/vigil/internal/health"
	"github.com/carelink-ai/vigil/internal/observe"
	"github.com/carelink-ai/vigil/internal/orchestrator"
	"github.com/carelink-ai/vigil/internal/parser"
	"github.com/carelink-ai/vigil/internal/server"
	"github.com/carelink-ai/vigil/internal/stream"
	"github.com/carelink-ai/vigil/pkg/provider/intentllm/cloud"
	"github.com/carelink-ai/vigil/pkg/provider/intentllm/edge"
	"github.com/carelink-ai/vigil/pkg/segment"
)

// App owns the subsystem lifetimes.
type App struct {
	cfg     *config.Config
	metrics *observe.Metrics

	zones *geofence.Store
	audit *audit.Logger
	orch  *orchestrator.Orchestrator

	bridge *stream.Bridge // nil when no subscribe topic is configured

	srv *http.Server

	// Injected test doubles.
	smartHome adapters.SmartHome
	sip       adapters.SIPCaller
	social    adapters.Social
	backends  []parser.Backend
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithAdapters injects the downstream action clients instead of building
// HTTP clients from config.
func WithAdapters(sh adapters.SmartHome, sip adapters.SIPCaller, social adapters.Social) Option {
	return func(a *App) {
		a.smartHome = sh
		a.sip = sip
		a.social = social
	}
}

// WithBackends injects parser backends instead of building them from the
// LLM config.
func WithBackends(backends ...parser.Backend) Option {
	return func(a *App) { a.backends = backends }
}

// WithMetrics injects a metrics set instead of the package default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires an App from config. It validates nothing beyond what the
// constructors require; call config.Validate first.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	zones, err := geofence.NewStore(cfg.Zones)
	if err != nil {
		return nil, fmt.Errorf("app: zones: %w", err)
	}
	a.zones = zones

	if cfg.Audit.Path != "" {
		a.audit, err = audit.Open(cfg.Audit.Path, cfg.Audit.HashText)
		if err != nil {
			return nil, fmt.Errorf("app: audit log: %w", err)
		}
	}

	if a.backends == nil {
		a.backends, err = buildBackends(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("app: llm backends: %w", err)
		}
	}

	if a.smartHome == nil {
		hc := adapters.NewHTTPClient(
			adapterURL(cfg.Adapters.SmartHomeURL, cfg.Server.ListenAddr, "/smart-home/cmd"),
			adapterURL(cfg.Adapters.SIPURL, cfg.Server.ListenAddr, "/sip/call"),
			cfg.Adapters.SocialURL,
			adapters.WithTimeout(time.Duration(cfg.Adapters.TimeoutMs)*time.Millisecond),
		)
		a.smartHome, a.sip, a.social = hc, hc, hc
	}

	p := parser.New(a.metrics, a.backends...)
	if cfg.LLM.SystemPromptPath != "" {
		prompt, err := os.ReadFile(cfg.LLM.SystemPromptPath)
		if err != nil {
			return nil, fmt.Errorf("app: system prompt: %w", err)
		}
		p.SetSystemPrompt(string(prompt))
	}

	if cfg.Stream.SubscribeURL != "" {
		seg, err := segment.New(segment.Config{
			SampleRate:      cfg.Audio.SampleRate,
			FrameMs:         cfg.Audio.FrameMs,
			HopMs:           cfg.Audio.HopMs,
			EnergyThreshold: cfg.Audio.EnergyThreshold,
			MinSpeechMs:     cfg.Audio.MinSpeechMs,
			MaxSilenceMs:    cfg.Audio.MaxSilenceMs,
			MaxSegmentMs:    cfg.Audio.MaxSegmentMs,
			Channels:        cfg.Audio.Channels,
			ResampleTo16k:   cfg.Audio.ResampleTo16k == nil || *cfg.Audio.ResampleTo16k,
		})
		if err != nil {
			return nil, fmt.Errorf("app: segmenter: %w", err)
		}
		a.bridge = stream.New(stream.Config{
			SubscribeURL: cfg.Stream.SubscribeURL,
			PublishURL:   cfg.Stream.PublishURL,
		}, seg, segment.NewQueue(cfg.Audio.QueueCapacity), a.metrics)
	}

	var onEmergency func()
	if a.bridge != nil {
		onEmergency = a.bridge.MarkEmergency
	}

	a.orch = orchestrator.New(orchestrator.Config{
		Parser:          p,
		Zones:           a.zones,
		SmartHome:       a.smartHome,
		SIP:             a.sip,
		Social:          a.social,
		Audit:           a.audit,
		Metrics:         a.metrics,
		GuardOptions:    guardOptions(cfg.Guard),
		HistorySize:     cfg.Orchestrator.HistorySize,
		DefaultCallee:   cfg.Orchestrator.DefaultCallee,
		MaxTotalLatency: time.Duration(cfg.Orchestrator.MaxTotalLatencyMs) * time.Millisecond,
		OnEmergency:     onEmergency,
	})

	a.srv = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(a.orch, health.New("vigil"), a.metrics).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

// Orchestrator exposes the pipeline, mainly for tests.
func (a *App) Orchestrator() *orchestrator.Orchestrator { return a.orch }

// ReloadZones swaps in a new zone table. Called on SIGHUP with a freshly
// loaded config.
func (a *App) ReloadZones(zones []geofence.Zone) error {
	return a.zones.Swap(zones)
}

// Run serves HTTP and pumps the audio workers until ctx is cancelled or a
// subsystem fails. The HTTP listener is shut down gracefully within the
// configured timeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- a.srv.ListenAndServe() }()

		select {
		case err := <-errCh:
			return fmt.Errorf("app: http listener: %w", err)
		case <-gctx.Done():
		}

		timeout := time.Duration(a.cfg.Server.ShutdownTimeoutMs) * time.Millisecond
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			a.srv.Close()
			return fmt.Errorf("app: http shutdown: %w", err)
		}
		return gctx.Err()
	})

	if a.bridge != nil {
		g.Go(func() error { return a.bridge.Capture(gctx) })
		g.Go(func() error { return a.bridge.Segment(gctx) })
		g.Go(func() error { return a.bridge.Publish(gctx) })
	}

	return g.Wait()
}

// Close releases held resources. Safe after a failed New.
func (a *App) Close() error {
	if a.audit != nil {
		return a.audit.Close()
	}
	return nil
}

// buildBackends constructs the parser backend chain from the LLM config,
// preferred backend first. Unconfigured backends are skipped; an empty
// chain is legal and makes the parser answer with clarifications.
func buildBackends(cfg config.LLMConfig) ([]parser.Backend, error) {
	failures := cfg.BreakerFailures
	cooldown := time.Duration(cfg.BreakerCooldownMs) * time.Millisecond

	var cloudBackend, edgeBackend *parser.Backend

	if cfg.Cloud.Model != "" {
		apiKey := cfg.Cloud.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		timeout := time.Duration(cfg.Cloud.TimeoutMs) * time.Millisecond
		p, err := cloud.New(apiKey, cfg.Cloud.Model,
			cloud.WithBaseURL(cfg.Cloud.BaseURL),
			cloud.WithTimeout(timeout),
		)
		if err != nil {
			return nil, err
		}
		b := parser.NewBackend(p, timeout, failures, cooldown)
		cloudBackend = &b
	}

	if cfg.Edge.URL != "" {
		timeout := time.Duration(cfg.Edge.TimeoutMs) * time.Millisecond
		p, err := edge.New(cfg.Edge.URL, edge.WithTimeout(timeout))
		if err != nil {
			return nil, err
		}
		b := parser.NewBackend(p, timeout, failures, cooldown)
		edgeBackend = &b
	}

	var ordered []*parser.Backend
	if cfg.Backend == config.BackendEdge {
		ordered = []*parser.Backend{edgeBackend, cloudBackend}
	} else {
		ordered = []*parser.Backend{cloudBackend, edgeBackend}
	}

	var backends []parser.Backend
	for _, b := range ordered {
		if b != nil {
			backends = append(backends, *b)
		}
	}
	return backends, nil
}

// guardOptions maps the guard config onto engine options.
func guardOptions(cfg config.GuardConfig) []guard.Option {
	var opts []guard.Option
	if len(cfg.HighRiskDevices) > 0 {
		opts = append(opts, guard.WithHighRiskDevices(cfg.HighRiskDevices))
	}
	for typ, words := range cfg.ExtraWakewords {
		opts = append(opts, guard.WithExtraWakewords(guard.WakewordType(typ), words...))
	}
	for cat, words := range cfg.ExtraSOSKeywords {
		opts = append(opts, guard.WithExtraSOSKeywords(guard.SOSCategory(cat), words...))
	}
	if cfg.FuzzyThreshold > 0 {
		opts = append(opts, guard.WithFuzzyThreshold(cfg.FuzzyThreshold))
	}
	return opts
}

// adapterURL resolves a downstream service URL, falling back to the
// service's own stub endpoint when none is configured.
func adapterURL(configured, listenAddr, stubPath string) string {
	if configured != "" {
		return configured
	}
	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return ""
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + stubPath
}
