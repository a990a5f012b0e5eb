package guard

import (
	"github.com/carelink-ai/vigil/internal/intent"
)

// emergencyRoute lists the notification channels for a dispatched emergency
// in contact order.
var emergencyRoute = []string{"sip", "family", "doctor"}

// EmergencyRoute returns a copy of the notification chain attached to every
// dispatch decision.
func EmergencyRoute() []string {
	return append([]string(nil), emergencyRoute...)
}

// Outcome is the triage result for one utterance. At most one of SOS (at
// bypass urgency), Intent, or RequiresLLM drives the downstream path;
// Wakeword and Implicit are informational.
type Outcome struct {
	Wakeword    *WakewordHit
	SOS         *SOSHit
	Intent      *intent.Intent
	Implicit    *ImplicitCommand
	RequiresLLM bool
}

// Triage runs the full rules pass over an utterance. High-urgency SOS hits
// short-circuit before any extraction work so the emergency path stays
// cheap. Otherwise the engine tries direct smart-home extraction, then
// implicit-command recognition (mapped to an intent using the speaker's
// current zone), and only flags RequiresLLM when neither produced anything.
func (e *Engine) Triage(text string, emo Emotion, zone string) Outcome {
	out := Outcome{Wakeword: e.DetectWakeword(text, emo)}

	out.SOS = e.DetectSOS(text, emo)
	if out.SOS != nil && out.SOS.Urgency >= 3 {
		return out
	}

	if it := e.ExtractSmartHome(text); it != nil {
		out.Intent = it
		return out
	}

	if cmd := e.RecognizeImplicit(text, emo); cmd != nil {
		out.Implicit = cmd
		it := e.IntentForImplicit(cmd, emo, zone)
		out.Intent = &it
		return out
	}

	out.RequiresLLM = true
	return out
}

// IntentForImplicit turns a recognised implicit command into a concrete
// intent. Lighting commands target the speaker's current zone, falling back
// to the living room when the zone is unknown.
func (e *Engine) IntentForImplicit(cmd *ImplicitCommand, emo Emotion, zone string) intent.Intent {
	switch cmd.Type {
	case CmdTemperature:
		return intent.Intent{
			Kind:    intent.KindSmartHome,
			Device:  "hvac_system",
			Action:  intent.ActionSet,
			Confirm: cmd.RequiresConfirmation,
		}
	case CmdLighting:
		if zone == "" {
			zone = "living_room"
		}
		return intent.Intent{
			Kind:    intent.KindSmartHome,
			Device:  zone + "_light",
			Action:  intent.ActionSet,
			Room:    zone,
			Confirm: cmd.RequiresConfirmation,
		}
	case CmdSocial:
		mood := "neutral"
		if emo.Valence < -0.3 {
			mood = "comfort"
		}
		return intent.Intent{Kind: intent.KindSocialChat, ContentType: "chat", Mood: mood}
	default: // CmdAssistance
		return intent.Clarify("请问需要什么帮助？", "assist_detail")
	}
}

// CheckText is the ASR-stage guard check: SOS keywords dispatch immediately,
// wakewords wake the device, everything else passes through to parsing.
func (e *Engine) CheckText(text string, emo Emotion) Decision {
	if sos := e.DetectSOS(text, emo); sos != nil {
		return Decision{
			Verdict: VerdictDispatchEmergency,
			Reason:  "sos_keyword",
			Risk:    RiskHigh,
			Route:   append([]string(nil), emergencyRoute...),
		}
	}
	if hit := e.DetectWakeword(text, emo); hit != nil {
		return Decision{Verdict: VerdictWake, Reason: "wakeword", Risk: RiskLow}
	}
	return Decision{Verdict: VerdictPassText, Risk: RiskLow}
}
