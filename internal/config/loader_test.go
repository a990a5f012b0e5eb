package config

import (
	"strings"
	"testing"
)

func TestLoadFromReaderDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader(empty) error = %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogLevelInfo {
		t.Errorf("log_level = %q, want info", cfg.Server.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.MinSpeechMs != 200 || cfg.Audio.MaxSilenceMs != 300 {
		t.Errorf("speech gate = %d/%d, want 200/300", cfg.Audio.MinSpeechMs, cfg.Audio.MaxSilenceMs)
	}
	if cfg.Audio.FrameMs != 20 || cfg.Audio.HopMs != 10 {
		t.Errorf("vad window = %d/%d, want 20/10", cfg.Audio.FrameMs, cfg.Audio.HopMs)
	}
	if cfg.Audio.ResampleTo16k == nil || !*cfg.Audio.ResampleTo16k {
		t.Error("resample_to_16k default = false, want true")
	}
	if cfg.LLM.Backend != BackendCloud {
		t.Errorf("backend = %q, want cloud", cfg.LLM.Backend)
	}
	if cfg.LLM.Cloud.TimeoutMs != 1500 || cfg.LLM.Edge.TimeoutMs != 3000 {
		t.Errorf("llm timeouts = %d/%d, want 1500/3000", cfg.LLM.Cloud.TimeoutMs, cfg.LLM.Edge.TimeoutMs)
	}
	if cfg.Orchestrator.HistorySize != 10 {
		t.Errorf("history_size = %d, want 10", cfg.Orchestrator.HistorySize)
	}
	if cfg.Orchestrator.DefaultCallee != "120" {
		t.Errorf("default_callee = %q, want 120", cfg.Orchestrator.DefaultCallee)
	}
	if cfg.Adapters.TimeoutMs != 5000 {
		t.Errorf("adapters timeout = %d, want 5000", cfg.Adapters.TimeoutMs)
	}
	if cfg.Orchestrator.MaxTotalLatencyMs != 10000 {
		t.Errorf("max_total_latency_ms = %d, want 10000", cfg.Orchestrator.MaxTotalLatencyMs)
	}
}

func TestLoadFromReaderFull(t *testing.T) {
	const doc = `
server:
  listen_addr: ":9090"
  log_level: debug
audio:
  energy_threshold: 0.02
  queue_capacity: 32
  resample_to_16k: false
guard:
  high_risk_devices: [gas_valve]
  extra_wakewords:
    primary: [阿福]
zones:
  - {name: study, x: 5.0, y: 5.0, radius: 1.5}
llm:
  backend: edge
  edge:
    url: http://127.0.0.1:8081
orchestrator:
  default_callee: "119"
audit:
  path: /var/log/vigil/audit.jsonl
  hash_text: true
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Audio.EnergyThreshold != 0.02 {
		t.Errorf("energy_threshold = %v, want 0.02", cfg.Audio.EnergyThreshold)
	}
	if cfg.Audio.ResampleTo16k == nil || *cfg.Audio.ResampleTo16k {
		t.Error("resample_to_16k = true, want explicit false preserved")
	}
	if len(cfg.Zones) != 1 || cfg.Zones[0].Name != "study" {
		t.Errorf("zones = %+v, want single study zone", cfg.Zones)
	}
	if cfg.LLM.Backend != BackendEdge || cfg.LLM.Edge.URL != "http://127.0.0.1:8081" {
		t.Errorf("llm = %+v, want edge backend", cfg.LLM)
	}
	if got := cfg.Guard.ExtraWakewords["primary"]; len(got) != 1 || got[0] != "阿福" {
		t.Errorf("extra_wakewords = %v", cfg.Guard.ExtraWakewords)
	}
	if !cfg.Audit.HashText {
		t.Error("audit.hash_text = false, want true")
	}
}

func TestLoadFromReaderRejectsUnknownKeys(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("serverr:\n  listen_addr: ':1'\n"))
	if err == nil {
		t.Fatal("unknown key accepted, want error")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad log level", "server:\n  log_level: loud\n"},
		{"bad energy threshold", "audio:\n  energy_threshold: 3.0\n"},
		{"bad zone radius", "zones:\n  - {name: study, radius: 0}\n"},
		{"bad backend", "llm:\n  backend: orbital\n"},
		{"edge backend without url", "llm:\n  backend: edge\n  cloud:\n    base_url: http://host/v1\n"},
		{"hop above frame", "audio:\n  frame_ms: 10\n  hop_ms: 20\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFromReader(strings.NewReader(tt.doc)); err == nil {
				t.Errorf("LoadFromReader(%q) error = nil, want error", tt.doc)
			}
		})
	}
}
