// Package adapters defines the downstream action interfaces (smart home,
// SIP calling, social interaction) and their HTTP client implementations.
//
// Adapters are the only components with side effects in the pipeline; the
// orchestrator reaches them exclusively after the policy check has allowed
// the intent.
package adapters

import "context"

// SmartHomeCommand is one device operation.
type SmartHomeCommand struct {
	Device string `json:"device"`
	Action string `json:"action"`
	Room   string `json:"room,omitempty"`
}

// SmartHomeResult is the downstream service's acknowledgement. Echo carries
// the command as the service understood it.
type SmartHomeResult struct {
	Status string           `json:"status"`
	Echo   SmartHomeCommand `json:"echo"`
}

// CallRequest asks the SIP service to dial a callee.
type CallRequest struct {
	Callee string `json:"callee"`
	Reason string `json:"reason,omitempty"`
}

// CallResult is the SIP service's acknowledgement.
type CallResult struct {
	Status string `json:"status"`
	Callee string `json:"callee"`
}

// SocialRequest asks the companion service for a conversational turn.
type SocialRequest struct {
	ContentType string `json:"content_type"`
	Mood        string `json:"mood,omitempty"`
	Text        string `json:"text,omitempty"`
}

// SocialResult is the companion service's response.
type SocialResult struct {
	Status string `json:"status"`
	Reply  string `json:"reply,omitempty"`
}

// SmartHome executes device commands.
type SmartHome interface {
	Execute(ctx context.Context, cmd SmartHomeCommand) (SmartHomeResult, error)
}

// SIPCaller places calls, including emergency dispatch.
type SIPCaller interface {
	Call(ctx context.Context, req CallRequest) (CallResult, error)
}

// Social produces companion conversation turns.
type Social interface {
	Chat(ctx context.Context, req SocialRequest) (SocialResult, error)
}
