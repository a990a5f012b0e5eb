package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogLevelInfo
	}
	if cfg.Server.ShutdownTimeoutMs == 0 {
		cfg.Server.ShutdownTimeoutMs = 10000
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FrameMs == 0 {
		cfg.Audio.FrameMs = 20
	}
	if cfg.Audio.HopMs == 0 {
		cfg.Audio.HopMs = 10
	}
	if cfg.Audio.ResampleTo16k == nil {
		t := true
		cfg.Audio.ResampleTo16k = &t
	}
	if cfg.Audio.EnergyThreshold == 0 {
		cfg.Audio.EnergyThreshold = 0.015
	}
	if cfg.Audio.MinSpeechMs == 0 {
		cfg.Audio.MinSpeechMs = 200
	}
	if cfg.Audio.MaxSilenceMs == 0 {
		cfg.Audio.MaxSilenceMs = 300
	}
	if cfg.Audio.MaxSegmentMs == 0 {
		cfg.Audio.MaxSegmentMs = 10000
	}
	if cfg.Audio.QueueCapacity == 0 {
		cfg.Audio.QueueCapacity = 16
	}
	if cfg.Guard.FuzzyThreshold == 0 {
		cfg.Guard.FuzzyThreshold = 0.88
	}
	if cfg.LLM.Backend == "" {
		cfg.LLM.Backend = BackendCloud
	}
	if cfg.LLM.Cloud.TimeoutMs == 0 {
		cfg.LLM.Cloud.TimeoutMs = 1500
	}
	if cfg.LLM.Edge.TimeoutMs == 0 {
		cfg.LLM.Edge.TimeoutMs = 3000
	}
	if cfg.LLM.BreakerFailures == 0 {
		cfg.LLM.BreakerFailures = 3
	}
	if cfg.LLM.BreakerCooldownMs == 0 {
		cfg.LLM.BreakerCooldownMs = 30000
	}
	if cfg.Orchestrator.HistorySize == 0 {
		cfg.Orchestrator.HistorySize = 10
	}
	if cfg.Orchestrator.DefaultCallee == "" {
		cfg.Orchestrator.DefaultCallee = "120"
	}
	if cfg.Orchestrator.MaxTotalLatencyMs == 0 {
		cfg.Orchestrator.MaxTotalLatencyMs = 10000
	}
	if cfg.Adapters.TimeoutMs == 0 {
		cfg.Adapters.TimeoutMs = 5000
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels %d must be positive", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms %d must be positive", cfg.Audio.FrameMs))
	}
	if cfg.Audio.HopMs <= 0 || cfg.Audio.HopMs > cfg.Audio.FrameMs {
		errs = append(errs, fmt.Errorf("audio.hop_ms %d must be in (0, frame_ms=%d]", cfg.Audio.HopMs, cfg.Audio.FrameMs))
	}
	if cfg.Audio.EnergyThreshold < 0 || cfg.Audio.EnergyThreshold > 1 {
		errs = append(errs, fmt.Errorf("audio.energy_threshold %v is out of range [0, 1]", cfg.Audio.EnergyThreshold))
	}
	if cfg.Audio.MaxSegmentMs < cfg.Audio.MinSpeechMs {
		errs = append(errs, fmt.Errorf("audio.max_segment_ms %d is below audio.min_speech_ms %d", cfg.Audio.MaxSegmentMs, cfg.Audio.MinSpeechMs))
	}
	if cfg.Guard.FuzzyThreshold < 0 || cfg.Guard.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("guard.fuzzy_threshold %v is out of range [0, 1]", cfg.Guard.FuzzyThreshold))
	}
	for i, z := range cfg.Zones {
		if err := z.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("zones[%d]: %w", i, err))
		}
	}
	if !cfg.LLM.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("llm.backend %q is invalid; valid values: cloud, edge", cfg.LLM.Backend))
	}
	if cfg.LLM.Cloud.BaseURL == "" && cfg.LLM.Edge.URL == "" {
		slog.Warn("no llm backend configured; free-form utterances will be answered with clarification prompts")
	}
	if cfg.LLM.Backend == BackendEdge && cfg.LLM.Edge.URL == "" && cfg.LLM.Cloud.BaseURL != "" {
		errs = append(errs, errors.New("llm.backend is edge but llm.edge.url is not set"))
	}

	return errors.Join(errs...)
}
