package guard

import (
	"strings"

	"github.com/carelink-ai/vigil/internal/intent"
)

// ExtractSmartHome recognises explicit device commands (a control verb plus
// a device noun in one utterance) and returns a ready-to-execute intent
// without involving the LLM. Lock requests are returned as lock.unlock so
// the policy check can demand confirmation; they are never emitted as plain
// smart.home commands.
func (e *Engine) ExtractSmartHome(text string) *intent.Intent {
	lower := strings.ToLower(text)

	for _, noun := range lockNouns {
		if e.matches(lower, noun) {
			it := intent.Intent{Kind: intent.KindLockUnlock, Target: "front_door_lock"}
			return &it
		}
	}

	var action string
	for _, v := range deviceVerbs {
		if e.matches(lower, v.pattern) {
			action = v.action
			break
		}
	}
	if action == "" {
		return nil
	}

	var kind string
	for _, d := range deviceNouns {
		if e.matches(lower, d.pattern) {
			kind = d.kind
			break
		}
	}
	if kind == "" {
		return nil
	}

	room := ""
	for _, r := range roomAliases {
		if e.matches(lower, r.pattern) {
			room = r.room
			break
		}
	}

	device := kind
	if kind == "light" {
		if room == "" {
			room = "living_room"
		}
		device = room + "_light"
	}

	it := intent.Intent{
		Kind:   intent.KindSmartHome,
		Device: device,
		Action: intent.Action(action),
		Room:   room,
	}
	e.log.Debug("direct smart-home extraction", "device", it.Device, "action", it.Action)
	return &it
}
