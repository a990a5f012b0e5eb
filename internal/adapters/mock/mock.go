// Package mock provides recording adapter fakes for tests.
package mock

import (
	"context"
	"sync"

	"github.com/carelink-ai/vigil/internal/adapters"
)

// SmartHome records device commands and acknowledges them.
type SmartHome struct {
	// Err, when set, is returned by every Execute call.
	Err error

	mu   sync.Mutex
	cmds []adapters.SmartHomeCommand
}

var _ adapters.SmartHome = (*SmartHome)(nil)

// Execute implements adapters.SmartHome.
func (m *SmartHome) Execute(_ context.Context, cmd adapters.SmartHomeCommand) (adapters.SmartHomeResult, error) {
	m.mu.Lock()
	m.cmds = append(m.cmds, cmd)
	m.mu.Unlock()
	if m.Err != nil {
		return adapters.SmartHomeResult{}, m.Err
	}
	return adapters.SmartHomeResult{Status: "ok", Echo: cmd}, nil
}

// Commands returns a copy of the recorded commands.
func (m *SmartHome) Commands() []adapters.SmartHomeCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapters.SmartHomeCommand(nil), m.cmds...)
}

// SIPCaller records placed calls.
type SIPCaller struct {
	// Err, when set, is returned by every Call.
	Err error

	mu    sync.Mutex
	calls []adapters.CallRequest
}

var _ adapters.SIPCaller = (*SIPCaller)(nil)

// Call implements adapters.SIPCaller.
func (m *SIPCaller) Call(_ context.Context, req adapters.CallRequest) (adapters.CallResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.Err != nil {
		return adapters.CallResult{}, m.Err
	}
	return adapters.CallResult{Status: "dialing", Callee: req.Callee}, nil
}

// Calls returns a copy of the recorded call requests.
func (m *SIPCaller) Calls() []adapters.CallRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapters.CallRequest(nil), m.calls...)
}

// Social records conversation requests.
type Social struct {
	// Reply is returned on every Chat call.
	Reply string

	// Err, when set, is returned by every Chat call.
	Err error

	mu   sync.Mutex
	reqs []adapters.SocialRequest
}

var _ adapters.Social = (*Social)(nil)

// Chat implements adapters.Social.
func (m *Social) Chat(_ context.Context, req adapters.SocialRequest) (adapters.SocialResult, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	if m.Err != nil {
		return adapters.SocialResult{}, m.Err
	}
	return adapters.SocialResult{Status: "ok", Reply: m.Reply}, nil
}

// Requests returns a copy of the recorded chat requests.
func (m *Social) Requests() []adapters.SocialRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]adapters.SocialRequest(nil), m.reqs...)
}
