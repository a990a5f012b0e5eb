package guard

import (
	"fmt"

	"github.com/carelink-ai/vigil/internal/intent"
)

// unlockPrompt is the spoken confirmation request for door-lock operations.
const unlockPrompt = "需要打开门锁吗？请说“确认开锁”或“取消”。"

// CheckIntent is the policy check applied to every parsed or extracted
// intent before it reaches an adapter. Clarification intents are not policy
// decisions and always pass; the orchestrator answers them directly.
func (e *Engine) CheckIntent(it intent.Intent) Decision {
	switch it.Kind {
	case intent.KindLockUnlock:
		return Decision{
			Verdict: VerdictNeedConfirm,
			Reason:  "high_risk_device",
			Risk:    RiskHigh,
			Prompt:  unlockPrompt,
		}
	case intent.KindAssistMove:
		if it.Speed == intent.SpeedFast {
			return Decision{Verdict: VerdictDeny, Reason: "speed_policy", Risk: RiskMedium}
		}
	case intent.KindCallEmergency:
		return Decision{
			Verdict: VerdictDispatchEmergency,
			Reason:  "emergency_intent",
			Risk:    RiskHigh,
			Route:   append([]string(nil), emergencyRoute...),
		}
	case intent.KindSmartHome:
		if _, risky := e.highRisk[it.Device]; risky {
			return Decision{
				Verdict: VerdictNeedConfirm,
				Reason:  "high_risk_device",
				Risk:    RiskHigh,
				Prompt:  fmt.Sprintf("确认要操作%s吗？请说“确认”或“取消”。", it.Device),
			}
		}
	}
	return Decision{Verdict: VerdictAllow, Risk: RiskLow}
}
