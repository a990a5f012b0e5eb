package guard

import "strings"

const (
	implicitEmitThreshold    = 0.6
	implicitConfirmThreshold = 0.8
)

// Topics reports which implicit-command topics the text touches, in
// priority order. The orchestrator uses this to tag conversation history
// for context boosting.
func (e *Engine) Topics(text string) []CommandType {
	lower := strings.ToLower(text)
	var topics []CommandType
	for _, typ := range implicitPriority {
		for _, p := range e.implicit[typ] {
			if e.matches(lower, p) {
				topics = append(topics, typ)
				break
			}
		}
	}
	return topics
}

// RecognizeImplicit maps state utterances ("好冷", "太暗了") onto implicit
// commands. Confidence is 0.4 plus 0.3 per matched pattern, plus the
// conversation-context boost, plus 0.2 for social requests voiced with
// negative valence. Commands only emit above 0.6 and require confirmation
// below 0.8.
func (e *Engine) RecognizeImplicit(text string, emo Emotion) *ImplicitCommand {
	lower := strings.ToLower(text)
	for _, typ := range implicitPriority {
		matches := 0
		for _, p := range e.implicit[typ] {
			if e.matches(lower, p) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		conf := 0.4 + 0.3*float64(matches)
		if e.boost != nil {
			conf += e.boost(typ)
		}
		if typ == CmdSocial && emo.Valence < -0.3 {
			conf += 0.2
		}
		if conf > 1.0 {
			conf = 1.0
		}
		if conf <= implicitEmitThreshold {
			continue
		}
		cmd := &ImplicitCommand{
			Type:                 typ,
			Confidence:           conf,
			RequiresConfirmation: conf < implicitConfirmThreshold,
		}
		e.log.Debug("implicit command recognized",
			"type", cmd.Type,
			"confidence", cmd.Confidence,
			"requires_confirmation", cmd.RequiresConfirmation,
		)
		return cmd
	}
	return nil
}
