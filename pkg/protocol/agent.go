// Package protocol defines the JSON wire frames spoken on the two coordinator
// streams: the agent stream ({"message": kind, "data": payload}) and the UI
// stream ({"event": kind, "content": payload}). Payloads stay opaque here;
// callers decode them into domain types.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Agent-stream message kinds.
const (
	KindEvent      = "event"
	KindBreakpoint = "breakpoint"
	KindCommit     = "commit"
)

// ErrMalformedMessage is returned for frames that fail JSON parsing, carry an
// unknown kind, or miss their payload field.
var ErrMalformedMessage = errors.New("malformed message")

// AgentEnvelope frames every message on the agent stream.
type AgentEnvelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var jsonNull = []byte("null")

// DecodeAgentMessage parses one agent-stream frame and returns its kind and
// raw payload.
func DecodeAgentMessage(raw []byte) (string, json.RawMessage, error) {
	var env AgentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch env.Message {
	case KindEvent, KindBreakpoint, KindCommit:
	default:
		return "", nil, fmt.Errorf("%w: unknown agent message kind %q", ErrMalformedMessage, env.Message)
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, jsonNull) {
		return "", nil, fmt.Errorf("%w: agent message %q has no data", ErrMalformedMessage, env.Message)
	}
	return env.Message, env.Data, nil
}

// EncodeAgentMessage frames a payload for the agent stream. The coordinator
// only ever sends breakpoint releases, but the encoder is kind-agnostic so the
// same codec serves both directions.
func EncodeAgentMessage(kind string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode agent %s: %w", kind, err)
	}
	return json.Marshal(AgentEnvelope{Message: kind, Data: data})
}
