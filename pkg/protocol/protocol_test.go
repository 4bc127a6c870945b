package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeAgentMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    string
		wantErr bool
	}{
		{"event", `{"message":"event","data":{"uuid":"x"}}`, KindEvent, false},
		{"breakpoint", `{"message":"breakpoint","data":{"uuid":"x"}}`, KindBreakpoint, false},
		{"commit", `{"message":"commit","data":{"id":"abc"}}`, KindCommit, false},
		{"unknown kind", `{"message":"ping","data":{}}`, "", true},
		{"missing data", `{"message":"event"}`, "", true},
		{"null data", `{"message":"event","data":null}`, "", true},
		{"not json", `{"message":`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, data, err := DecodeAgentMessage([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("err = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if kind != tt.kind {
				t.Errorf("kind = %q, want %q", kind, tt.kind)
			}
			if len(data) == 0 {
				t.Error("data is empty")
			}
		})
	}
}

func TestEncodeAgentMessageRoundTrip(t *testing.T) {
	payload := map[string]any{"uuid": "11111111-2222-3333-4444-555555555555", "summary": nil}
	raw, err := EncodeAgentMessage(KindBreakpoint, payload)
	if err != nil {
		t.Fatal(err)
	}
	kind, data, err := DecodeAgentMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindBreakpoint {
		t.Fatalf("kind = %q", kind)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["uuid"] != payload["uuid"] {
		t.Errorf("uuid = %v, want %v", got["uuid"], payload["uuid"])
	}
}

func TestDecodeUICommand(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    string
		wantErr bool
	}{
		{"step without content", `{"event":"step"}`, UIStep, false},
		{"continue", `{"event":"continue"}`, UIContinue, false},
		{"halt", `{"event":"halt"}`, UIHalt, false},
		{"rename", `{"event":"rename_run","content":{"run":"x","name":"y"}}`, UIRenameRun, false},
		{"import", `{"event":"import_run","content":{"data":"aGk="}}`, UIImportRun, false},
		{"unknown", `{"event":"reboot"}`, "", true},
		{"not json", `steps please`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, _, err := DecodeUICommand([]byte(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("err = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if kind != tt.kind {
				t.Errorf("kind = %q, want %q", kind, tt.kind)
			}
		})
	}
}

func TestEncodeUIEvent(t *testing.T) {
	raw, err := EncodeUIEvent(UIError, ErrorPayload{Message: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	var env UIEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	if env.Event != UIError {
		t.Errorf("event = %q", env.Event)
	}
	var p ErrorPayload
	if err := json.Unmarshal(env.Content, &p); err != nil {
		t.Fatal(err)
	}
	if p.Message != "boom" {
		t.Errorf("message = %q", p.Message)
	}
}
