package protocol

import (
	"encoding/json"
	"fmt"
)

// UI-stream event kinds pushed from the coordinator to the UI.
const (
	UIInitAppState   = "init_app_state"
	UINewMessage     = "new_message"
	UINewRun         = "new_run"
	UIUpdateRunState = "update_run_state"
	UINewCommit      = "new_commit"
	UIRunExport      = "run_export"
	UIError          = "error"
)

// UI-stream command kinds accepted from the UI.
const (
	UIStep               = "step"
	UIContinue           = "continue"
	UIHalt               = "halt"
	UIUpdateMsgContent   = "update_msg_content"
	UIRenameRun          = "rename_run"
	UIDeleteRun          = "delete_run"
	UIDownloadRunRequest = "download_run_request"
	UIImportRun          = "import_run"
)

// UIEnvelope frames every message on the UI stream, both directions.
type UIEnvelope struct {
	Event   string          `json:"event"`
	Content json.RawMessage `json:"content,omitempty"`
}

// UpdateMsgContentPayload carries an edit to the pending breakpoint's payload.
type UpdateMsgContentPayload struct {
	Message string          `json:"message"`
	Content json.RawMessage `json:"content"`
}

// RenameRunPayload renames a run.
type RenameRunPayload struct {
	Run  string `json:"run"`
	Name string `json:"name"`
}

// RunRefPayload references a run by id (delete, download).
type RunRefPayload struct {
	Run string `json:"run"`
}

// ImportRunPayload carries a base64(zlib(json)) run blob.
type ImportRunPayload struct {
	Data string `json:"data"`
}

// RunExportPayload is the content of a run_export reply.
type RunExportPayload struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

// ErrorPayload is the content of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodeUICommand parses one inbound UI frame. step/continue/halt legitimately
// carry no content; commands that need a payload validate it themselves.
func DecodeUICommand(raw []byte) (string, json.RawMessage, error) {
	var env UIEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	switch env.Event {
	case UIStep, UIContinue, UIHalt, UIUpdateMsgContent, UIRenameRun,
		UIDeleteRun, UIDownloadRunRequest, UIImportRun:
	default:
		return "", nil, fmt.Errorf("%w: unknown UI event %q", ErrMalformedMessage, env.Event)
	}
	return env.Event, env.Content, nil
}

// EncodeUIEvent frames an outbound UI event.
func EncodeUIEvent(kind string, content any) ([]byte, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode ui %s: %w", kind, err)
	}
	return json.Marshal(UIEnvelope{Event: kind, Content: data})
}
