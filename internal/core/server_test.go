package core

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentstepper/agentstepper/internal/domain"
	"github.com/agentstepper/agentstepper/pkg/protocol"
)

// startTestServer runs a server on ephemeral ports and returns ws URLs for
// both listeners.
func startTestServer(t *testing.T, coord *Coordinator) (agentURL, uiURL string) {
	t.Helper()
	srv := NewServer(coord, nil, "127.0.0.1", 0, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("server: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for srv.AgentAddr() == nil || srv.UIAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Sprintf("ws://%s/", srv.AgentAddr()), fmt.Sprintf("ws://%s/", srv.UIAddr())
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUIEvent(t *testing.T, conn *websocket.Conn, kind string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", kind, err)
		}
		var env protocol.UIEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatal(err)
		}
		if env.Event == kind {
			return env.Content
		}
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame []byte) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
}

func TestEndToEndStepSession(t *testing.T) {
	coord := New(nil, nil, t.TempDir())
	agentURL, uiURL := startTestServer(t, coord)

	ui := dial(t, uiURL)
	readUIEvent(t, ui, protocol.UIInitAppState)

	agent := dial(t, agentURL)

	// Program start: event, then its breakpoint, which halts the agent.
	start := domain.NewEvent(domain.EventProgramStarted)
	start.Data = json.RawMessage(`"demo"`)
	writeFrame(t, agent, agentFrame(t, protocol.KindEvent, start))
	bp := domain.NewBreakpoint("demo", nil, start.ID)
	writeFrame(t, agent, agentFrame(t, protocol.KindBreakpoint, bp))

	readUIEvent(t, ui, protocol.UINewRun)
	content := readUIEvent(t, ui, protocol.UINewMessage)
	var msg newMessageContent
	if err := json.Unmarshal(content, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Message.UUID != bp.ID.String() {
		t.Errorf("message uuid = %s, want breakpoint id", msg.Message.UUID)
	}

	// Step releases the breakpoint back to the agent.
	writeFrame(t, ui, uiFrame(t, protocol.UIStep, nil))

	agent.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := agent.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	kind, data, err := protocol.DecodeAgentMessage(raw)
	if err != nil {
		t.Fatal(err)
	}
	if kind != protocol.KindBreakpoint {
		t.Fatalf("agent received %q", kind)
	}
	var released domain.Breakpoint
	if err := json.Unmarshal(data, &released); err != nil {
		t.Fatal(err)
	}
	if released.ID != bp.ID {
		t.Error("released breakpoint id mismatch")
	}

	// Agent disconnect finishes the run.
	agent.Close()
	stateContent := readUIEvent(t, ui, protocol.UIUpdateRunState)
	var update updateRunStateContent
	for {
		if err := json.Unmarshal(stateContent, &update); err != nil {
			t.Fatal(err)
		}
		if update.State == StateIdle {
			break
		}
		stateContent = readUIEvent(t, ui, protocol.UIUpdateRunState)
	}
	if update.AgentState != AgentFinished {
		t.Errorf("agent state = %s", update.AgentState)
	}
	if coord.Runs().Active() != nil {
		t.Error("run still active")
	}
}

func TestSecondAgentConnectionClosed(t *testing.T) {
	coord := New(nil, nil, "")
	agentURL, _ := startTestServer(t, coord)

	first := dial(t, agentURL)
	defer first.Close()
	// Give the server time to register the first connection.
	deadline := time.Now().Add(5 * time.Second)
	for !coord.agentAttached() {
		if time.Now().After(deadline) {
			t.Fatal("first agent never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	second := dial(t, agentURL)
	second.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("second agent connection should be closed by the server")
	}
}

func TestMalformedUIFrameGetsError(t *testing.T) {
	coord := New(nil, nil, "")
	_, uiURL := startTestServer(t, coord)

	ui := dial(t, uiURL)
	readUIEvent(t, ui, protocol.UIInitAppState)

	writeFrame(t, ui, []byte(`{"event":"no_such_command"}`))
	content := readUIEvent(t, ui, protocol.UIError)
	var payload protocol.ErrorPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Message == "" {
		t.Error("error event without a message")
	}

	// The connection survives and keeps serving.
	writeFrame(t, ui, uiFrame(t, protocol.UIContinue, nil))
}
