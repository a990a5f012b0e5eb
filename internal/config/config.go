// Package config defines the YAML configuration schema for the vigil
// service and its validation rules.
package config

import (
	"log/slog"

	"github.com/carelink-ai/vigil/internal/geofence"
)

// LogLevel is the configured logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// Slog maps the level onto its slog equivalent, defaulting to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Backend selects which LLM backend parses free-form utterances.
type Backend string

const (
	BackendCloud Backend = "cloud"
	BackendEdge  Backend = "edge"
)

// IsValid reports whether b is a recognised backend name.
func (b Backend) IsValid() bool {
	return b == BackendCloud || b == BackendEdge
}

// Config is the full service configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Audio        AudioConfig        `yaml:"audio"`
	Guard        GuardConfig        `yaml:"guard"`
	Zones        []geofence.Zone    `yaml:"zones"`
	LLM          LLMConfig          `yaml:"llm"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Adapters     AdaptersConfig     `yaml:"adapters"`
	Stream       StreamConfig       `yaml:"stream"`
	Audit        AuditConfig        `yaml:"audit"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddr is the host:port the HTTP server binds. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel sets logging verbosity. Default "info".
	LogLevel LogLevel `yaml:"log_level"`

	// ShutdownTimeoutMs bounds graceful shutdown. Default 10000.
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`
}

// AudioConfig configures PCM intake and speech segmentation.
type AudioConfig struct {
	// SampleRate of incoming PCM in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels of incoming PCM. Default 1.
	Channels int `yaml:"channels"`

	// FrameMs is the VAD analysis window duration. Default 20.
	FrameMs int `yaml:"frame_ms"`

	// HopMs is the VAD window advance per frame. Default 10.
	HopMs int `yaml:"hop_ms"`

	// EnergyThreshold is the RMS level above which a frame counts as
	// speech. Default 0.015.
	EnergyThreshold float64 `yaml:"energy_threshold"`

	// MinSpeechMs drops utterances shorter than this. Default 200.
	MinSpeechMs int `yaml:"min_speech_ms"`

	// MaxSilenceMs of trailing silence ends a segment. Default 300.
	MaxSilenceMs int `yaml:"max_silence_ms"`

	// MaxSegmentMs hard-caps one segment. Default 10000.
	MaxSegmentMs int `yaml:"max_segment_ms"`

	// QueueCapacity bounds the segment queue. Default 16, minimum 10.
	QueueCapacity int `yaml:"queue_capacity"`

	// ResampleTo16k converts input at other sample rates to 16 kHz before
	// segmentation. Default true.
	ResampleTo16k *bool `yaml:"resample_to_16k"`
}

// GuardConfig tunes the rules engine.
type GuardConfig struct {
	// HighRiskDevices always require spoken confirmation. Defaults cover
	// door locks, the gas valve and the stove.
	HighRiskDevices []string `yaml:"high_risk_devices"`

	// ExtraWakewords appends wakewords per type (primary, emergency,
	// attention).
	ExtraWakewords map[string][]string `yaml:"extra_wakewords"`

	// ExtraSOSKeywords appends distress keywords per category.
	ExtraSOSKeywords map[string][]string `yaml:"extra_sos_keywords"`

	// FuzzyThreshold is the Jaro-Winkler score Latin words must reach.
	// Default 0.88.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// LLMConfig selects and tunes the intent-parsing backends.
type LLMConfig struct {
	// Backend is the preferred backend, "cloud" or "edge". The other one
	// serves as fallback when both are configured. Default "cloud".
	Backend Backend `yaml:"backend"`

	Cloud CloudLLMConfig `yaml:"cloud"`
	Edge  EdgeLLMConfig  `yaml:"edge"`

	// BreakerFailures trips a backend's circuit breaker after this many
	// consecutive failures. Default 3.
	BreakerFailures int `yaml:"breaker_failures"`

	// BreakerCooldownMs before a tripped backend is probed again.
	// Default 30000.
	BreakerCooldownMs int `yaml:"breaker_cooldown_ms"`

	// SystemPromptPath points at a file replacing the built-in intent
	// parsing prompt. Empty keeps the built-in prompt.
	SystemPromptPath string `yaml:"system_prompt_path"`
}

// CloudLLMConfig points at an OpenAI-compatible endpoint (vLLM, OpenAI).
type CloudLLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// APIKey for the endpoint. Prefer the OPENAI_API_KEY environment
	// variable over putting secrets in the config file.
	APIKey string `yaml:"api_key"`

	// TimeoutMs per parse request. Default 1500.
	TimeoutMs int `yaml:"timeout_ms"`
}

// EdgeLLMConfig points at a local llama.cpp server.
type EdgeLLMConfig struct {
	// URL of the llama.cpp /completion endpoint, e.g.
	// "http://127.0.0.1:8081".
	URL string `yaml:"url"`

	// TimeoutMs per parse request. Default 3000.
	TimeoutMs int `yaml:"timeout_ms"`
}

// OrchestratorConfig tunes the pipeline.
type OrchestratorConfig struct {
	// HistorySize is the conversation-context window. Default 10.
	HistorySize int `yaml:"history_size"`

	// DefaultCallee for emergency dispatch. Default "120".
	DefaultCallee string `yaml:"default_callee"`

	// MaxTotalLatencyMs bounds one request end to end, adapter calls
	// included. Default 10000.
	MaxTotalLatencyMs int `yaml:"max_total_latency_ms"`
}

// AdaptersConfig points at the downstream action services.
type AdaptersConfig struct {
	SmartHomeURL string `yaml:"smart_home_url"`
	SIPURL       string `yaml:"sip_url"`
	SocialURL    string `yaml:"social_url"`

	// TimeoutMs per adapter call. Default 5000.
	TimeoutMs int `yaml:"timeout_ms"`
}

// StreamConfig configures the optional PCM websocket bridge.
type StreamConfig struct {
	// SubscribeURL is the websocket topic delivering raw PCM frames.
	// Empty disables the bridge.
	SubscribeURL string `yaml:"subscribe_url"`

	// PublishURL is the websocket topic receiving processed speech
	// segments. Empty disables publishing.
	PublishURL string `yaml:"publish_url"`
}

// AuditConfig configures the append-only decision log.
type AuditConfig struct {
	// Path of the JSON-lines audit file. Empty disables auditing.
	Path string `yaml:"path"`

	// HashText replaces utterance text with its SHA-256 in audit records.
	HashText bool `yaml:"hash_text"`
}
