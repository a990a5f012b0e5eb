// Package intent defines the structured intent model shared by the rules
// engine, the LLM parser, and the orchestrator, together with its strict
// wire codec.
//
// The wire protocol uses closed enums throughout: an unknown intent tag or
// action value is rejected at deserialization and surfaced to the caller as
// a parse failure, never silently accepted.
package intent

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of intent tags on the wire.
type Kind string

const (
	KindSmartHome     Kind = "smart.home"
	KindCallEmergency Kind = "call.emergency"
	KindSocialChat    Kind = "social.chat"
	KindAssistMove    Kind = "assist.move"
	KindLockUnlock    Kind = "lock.unlock"
	KindClarify       Kind = "ask.clarification"

	// KindUnknown never appears on the wire; it is the coercion target for
	// unrecognised tags coming back from an LLM backend.
	KindUnknown Kind = "unknown"
)

// IsValid reports whether k is a recognised wire tag.
func (k Kind) IsValid() bool {
	switch k {
	case KindSmartHome, KindCallEmergency, KindSocialChat, KindAssistMove, KindLockUnlock, KindClarify:
		return true
	}
	return false
}

// Action is the closed set of smart-home actions.
type Action string

const (
	ActionOn  Action = "on"
	ActionOff Action = "off"
	ActionSet Action = "set"
)

// IsValid reports whether a is a recognised smart-home action.
func (a Action) IsValid() bool {
	return a == ActionOn || a == ActionOff || a == ActionSet
}

// Speed is the closed set of assisted-movement speeds.
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// IsValid reports whether s is a recognised speed.
func (s Speed) IsValid() bool {
	return s == SpeedSlow || s == SpeedNormal || s == SpeedFast
}

// Intent is the tagged variant produced by rules extraction or LLM parsing.
// Only the fields belonging to the active Kind are populated; the rest stay
// at their zero values and are omitted on the wire.
type Intent struct {
	Kind Kind `json:"intent"`

	// smart.home
	Device  string `json:"device,omitempty"`
	Action  Action `json:"action,omitempty"`
	Room    string `json:"room,omitempty"`
	Confirm bool   `json:"confirm,omitempty"`

	// call.emergency
	Callee string `json:"callee,omitempty"`
	Reason string `json:"reason,omitempty"`

	// social.chat
	ContentType string `json:"content_type,omitempty"`
	Mood        string `json:"mood,omitempty"`

	// assist.move
	Target string `json:"target,omitempty"`
	Speed  Speed  `json:"speed,omitempty"`

	// ask.clarification
	Need          string   `json:"need,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
	ClarifyPrompt string   `json:"clarify_prompt,omitempty"`
}

// Clarify builds the terminal clarification intent with the given missing
// fields and user-facing prompt.
func Clarify(prompt string, missing ...string) Intent {
	return Intent{
		Kind:          KindClarify,
		Need:          "ask_clarification",
		MissingFields: missing,
		ClarifyPrompt: prompt,
	}
}

// Validate checks the closed-enum fields for the active kind. It returns a
// descriptive error for the first violation found.
func (it Intent) Validate() error {
	if !it.Kind.IsValid() {
		return fmt.Errorf("intent: unknown tag %q", it.Kind)
	}
	switch it.Kind {
	case KindSmartHome:
		if it.Device == "" {
			return fmt.Errorf("intent: smart.home requires a device")
		}
		if !it.Action.IsValid() {
			return fmt.Errorf("intent: smart.home action %q not in {on, off, set}", it.Action)
		}
	case KindCallEmergency:
		if it.Callee == "" {
			return fmt.Errorf("intent: call.emergency requires a callee")
		}
	case KindAssistMove:
		if it.Target == "" {
			return fmt.Errorf("intent: assist.move requires a target")
		}
		if it.Speed != "" && !it.Speed.IsValid() {
			return fmt.Errorf("intent: assist.move speed %q not in {slow, normal, fast}", it.Speed)
		}
	}
	return nil
}

// Decode parses a JSON object into a validated Intent. Unknown tags and
// enum values are rejected; partial clarification objects that carry only
// the "need" key (the shape some models emit) are normalised to
// [KindClarify].
func Decode(data []byte) (Intent, error) {
	var it Intent
	if err := json.Unmarshal(data, &it); err != nil {
		return Intent{}, fmt.Errorf("intent: decode: %w", err)
	}
	if it.Kind == "" && it.Need != "" {
		it.Kind = KindClarify
	}
	if err := it.Validate(); err != nil {
		return it, err
	}
	return it, nil
}

// Encode serialises the intent to its canonical wire form.
func (it Intent) Encode() ([]byte, error) {
	return json.Marshal(it)
}
