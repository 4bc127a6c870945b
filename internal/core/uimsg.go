package core

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zlib"

	"github.com/agentstepper/agentstepper/internal/domain"
	"github.com/agentstepper/agentstepper/pkg/protocol"
)

// Builders for the outbound UI frames. Each returns the encoded frame ready
// to write to the socket.

type initAppStateContent struct {
	Runs      []serializedRun `json:"runs"`
	ActiveRun *string         `json:"activeRun"`
	HaltedAt  *string         `json:"haltedAt"`
}

func initAppStateMsg(runs []*domain.Run, active *domain.Run, state ExecutionState, agentState AgentState, haltedAt *uuid.UUID) ([]byte, error) {
	serialized := make([]serializedRun, 0, len(runs))
	for _, run := range runs {
		if active != nil && run.ID == active.ID {
			serialized = append(serialized, serializeRun(run, state, agentState))
		} else {
			serialized = append(serialized, serializeRun(run, StateIdle, AgentFinished))
		}
	}
	content := initAppStateContent{Runs: serialized}
	if active != nil {
		id := active.ID.String()
		content.ActiveRun = &id
	}
	if haltedAt != nil {
		id := haltedAt.String()
		content.HaltedAt = &id
	}
	return protocol.EncodeUIEvent(protocol.UIInitAppState, content)
}

type newMessageContent struct {
	Run     string            `json:"run"`
	Message serializedMessage `json:"message"`
}

func newMessageMsg(runID uuid.UUID, m domain.Message) ([]byte, error) {
	return protocol.EncodeUIEvent(protocol.UINewMessage, newMessageContent{
		Run:     runID.String(),
		Message: serializeMessage(m),
	})
}

type newRunContent struct {
	Run serializedRun `json:"run"`
}

func newRunMsg(run *domain.Run, state ExecutionState, agentState AgentState) ([]byte, error) {
	return protocol.EncodeUIEvent(protocol.UINewRun, newRunContent{
		Run: serializeRun(run, state, agentState),
	})
}

type updateRunStateContent struct {
	Run        string         `json:"run"`
	State      ExecutionState `json:"state"`
	AgentState AgentState     `json:"agentState"`
	HaltedAt   *string        `json:"haltedAt"`
}

func updateRunStateMsg(runID uuid.UUID, state ExecutionState, agentState AgentState, haltedAt *uuid.UUID) ([]byte, error) {
	content := updateRunStateContent{
		Run:        runID.String(),
		State:      state,
		AgentState: agentState,
	}
	if haltedAt != nil {
		id := haltedAt.String()
		content.HaltedAt = &id
	}
	return protocol.EncodeUIEvent(protocol.UIUpdateRunState, content)
}

type newCommitContent struct {
	Run    string           `json:"run"`
	Commit serializedCommit `json:"commit"`
}

func newCommitMsg(runID uuid.UUID, c *domain.Commit) ([]byte, error) {
	return protocol.EncodeUIEvent(protocol.UINewCommit, newCommitContent{
		Run:    runID.String(),
		Commit: serializeCommit(c),
	})
}

// runExportMsg wraps the run blob in base64(zlib(json)) for download.
func runExportMsg(name string, blob []byte) ([]byte, error) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(blob); err != nil {
		return nil, fmt.Errorf("compress run blob: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress run blob: %w", err)
	}
	return protocol.EncodeUIEvent(protocol.UIRunExport, protocol.RunExportPayload{
		Name: name,
		Data: base64.StdEncoding.EncodeToString(compressed.Bytes()),
	})
}

func errorMsg(message string) ([]byte, error) {
	return protocol.EncodeUIEvent(protocol.UIError, protocol.ErrorPayload{Message: message})
}

// decodeRunBlob reverses runExportMsg's framing for import.
func decodeRunBlob(data string) ([]byte, error) {
	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode run blob: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress run blob: %w", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return nil, fmt.Errorf("decompress run blob: %w", err)
	}
	return out.Bytes(), nil
}
