// Package guard implements the rules-first triage layer: wakeword detection,
// SOS detection, implicit-command recognition, direct smart-home extraction,
// and the post-intent policy check applied before any action executes.
//
// Everything here is deterministic substring/fuzzy matching over pattern
// tables — no model inference — so the emergency path stays well inside its
// latency budget regardless of LLM availability.
package guard

import (
	"encoding/json"
	"fmt"
)

// PrimaryEmotion is the closed set of emotion labels produced by the
// external emotion analyzer.
type PrimaryEmotion string

const (
	EmotionNeutral       PrimaryEmotion = "neutral"
	EmotionHappy         PrimaryEmotion = "happy"
	EmotionSad           PrimaryEmotion = "sad"
	EmotionFear          PrimaryEmotion = "fear"
	EmotionPain          PrimaryEmotion = "pain"
	EmotionAnger         PrimaryEmotion = "anger"
	EmotionFrustrated    PrimaryEmotion = "frustrated"
	EmotionUncomfortable PrimaryEmotion = "uncomfortable"
	EmotionLonely        PrimaryEmotion = "lonely"
	EmotionConfused      PrimaryEmotion = "confused"
)

// IsValid reports whether p is a recognised emotion label.
func (p PrimaryEmotion) IsValid() bool {
	switch p {
	case EmotionNeutral, EmotionHappy, EmotionSad, EmotionFear, EmotionPain,
		EmotionAnger, EmotionFrustrated, EmotionUncomfortable, EmotionLonely, EmotionConfused:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown emotion labels, so malformed snapshots fail
// at the request boundary instead of being silently reinterpreted. An empty
// label stays allowed and reads as neutral.
func (p *PrimaryEmotion) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != "" && !PrimaryEmotion(s).IsValid() {
		return fmt.Errorf("guard: unknown primary_emotion %q", s)
	}
	*p = PrimaryEmotion(s)
	return nil
}

// Emotion is the per-utterance emotion snapshot delivered alongside the
// transcript. The zero value is a usable neutral snapshot with full voice
// quality.
type Emotion struct {
	Primary      PrimaryEmotion `json:"primary_emotion"`
	Stress       float64        `json:"stress"`        // [0,1]
	Arousal      float64        `json:"arousal"`       // [0,1]
	Valence      float64        `json:"valence"`       // [-1,1]
	VoiceQuality float64        `json:"voice_quality"` // [0,1]
}

// Neutral returns the default snapshot used when no emotion data accompanies
// a request.
func Neutral() Emotion {
	return Emotion{Primary: EmotionNeutral, Stress: 0.2, Arousal: 0.5, VoiceQuality: 0.8}
}

// WakewordType orders wakewords by priority: emergency > primary > attention.
type WakewordType string

const (
	WakePrimary   WakewordType = "primary"
	WakeEmergency WakewordType = "emergency"
	WakeAttention WakewordType = "attention"
)

// WakewordHit is a detected wakeword with its elderly-adapted confidence.
type WakewordHit struct {
	Type       WakewordType `json:"type"`
	Keyword    string       `json:"keyword"`
	Confidence float64      `json:"confidence"`
}

// SOSCategory orders SOS classes by priority:
// explicit > medical > fall > confusion > emotional.
type SOSCategory string

const (
	SOSExplicit  SOSCategory = "explicit"
	SOSMedical   SOSCategory = "medical"
	SOSFall      SOSCategory = "fall"
	SOSConfusion SOSCategory = "confusion"
	SOSEmotional SOSCategory = "emotional"
)

// SOSHit is a detected distress signal. Urgency 3 and above triggers the
// emergency bypass in the orchestrator.
type SOSHit struct {
	Category   SOSCategory `json:"category"`
	Keywords   []string    `json:"keywords"`
	Urgency    int         `json:"urgency"` // 1..4
	Confidence float64     `json:"confidence"`
}

// CommandType labels an implicit command inferred from a state utterance
// ("I'm cold" → temperature_control).
type CommandType string

const (
	CmdTemperature CommandType = "temperature_control"
	CmdLighting    CommandType = "lighting_control"
	CmdAssistance  CommandType = "assistance_request"
	CmdSocial      CommandType = "social_interaction"
)

// ImplicitCommand is a recognised implicit command. RequiresConfirmation is
// set when confidence lands in the emit band but below 0.8.
type ImplicitCommand struct {
	Type                 CommandType `json:"command_type"`
	Confidence           float64     `json:"confidence"`
	RequiresConfirmation bool        `json:"requires_confirmation"`
}

// Verdict is the closed set of guard decisions.
type Verdict string

const (
	VerdictAllow             Verdict = "allow"
	VerdictNeedConfirm       Verdict = "need_confirm"
	VerdictDeny              Verdict = "deny"
	VerdictDispatchEmergency Verdict = "dispatch_emergency"
	VerdictPassText          Verdict = "pass_text"
	VerdictWake              Verdict = "wake"
)

// IsValid reports whether v is a recognised verdict.
func (v Verdict) IsValid() bool {
	switch v {
	case VerdictAllow, VerdictNeedConfirm, VerdictDeny, VerdictDispatchEmergency, VerdictPassText, VerdictWake:
		return true
	}
	return false
}

// RiskLevel grades the decision for the audit trail.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Decision is the guard's answer for either an ASR text check or an intent
// policy check.
type Decision struct {
	Verdict Verdict   `json:"decision"`
	Reason  string    `json:"reason,omitempty"`
	Risk    RiskLevel `json:"risk_level,omitempty"`
	Prompt  string    `json:"prompt,omitempty"`
	Route   []string  `json:"route,omitempty"`
}
