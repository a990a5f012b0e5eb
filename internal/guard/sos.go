package guard

import "strings"

// DetectSOS scans text for distress keywords. The highest-priority category
// with a match decides the classification; keyword hits from lower
// categories still accumulate into the report.
//
// Confidence starts at 0.7, +0.2 under high stress, +0.15 when the primary
// emotion is fear or pain. Urgency is the category base, +1 (capped at 4)
// when stress exceeds 0.8.
func (e *Engine) DetectSOS(text string, emo Emotion) *SOSHit {
	lower := strings.ToLower(text)
	var hit *SOSHit
	for _, cat := range sosPriority {
		for _, kw := range e.sos[cat] {
			if !e.matches(lower, kw) {
				continue
			}
			if hit == nil {
				urgency := sosUrgency[cat]
				if emo.Stress > 0.8 {
					urgency++
				}
				if urgency > 4 {
					urgency = 4
				}
				conf := 0.7
				if emo.Stress > 0.7 {
					conf += 0.2
				}
				if emo.Primary == EmotionFear || emo.Primary == EmotionPain {
					conf += 0.15
				}
				if conf > 1.0 {
					conf = 1.0
				}
				hit = &SOSHit{Category: cat, Urgency: urgency, Confidence: conf}
			}
			hit.Keywords = append(hit.Keywords, kw)
		}
	}
	if hit != nil {
		e.log.Warn("sos keywords detected",
			"category", hit.Category,
			"keywords", hit.Keywords,
			"urgency", hit.Urgency,
		)
	}
	return hit
}
