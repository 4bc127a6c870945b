// Package core implements the debugger coordinator: a single-writer state
// machine mediating one agent connection and at most one UI connection.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentstepper/agentstepper/internal/domain"
	"github.com/agentstepper/agentstepper/internal/logwriter"
	"github.com/agentstepper/agentstepper/internal/registry"
	"github.com/agentstepper/agentstepper/internal/summary"
	"github.com/agentstepper/agentstepper/internal/version"
	"github.com/agentstepper/agentstepper/pkg/protocol"
)

// summarizeTimeout bounds a single summarization call. A slow model delays
// the agent, never blocks it forever.
const summarizeTimeout = 30 * time.Second

// Peer is one side of a coordinator stream. Implementations must tolerate
// Send after Close.
type Peer interface {
	Send(data []byte) error
	Close() error
}

// Coordinator owns the full debugger state. All mutation happens under one
// mutex; handlers run to completion before the next message is processed,
// which gives the wire its ordering guarantees.
type Coordinator struct {
	mu  sync.Mutex
	log *slog.Logger

	runs       *registry.Registry
	summarizer summary.Summarizer // nil when no API key is configured
	logDir     string

	agent Peer
	ui    Peer

	execState  ExecutionState
	agentState AgentState
	pending    *domain.Breakpoint
}

// New creates an idle coordinator. The summarizer may be nil; breakpoints
// then keep whatever summary the agent supplied.
func New(logger *slog.Logger, summarizer summary.Summarizer, logDir string) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		log:        logger,
		runs:       registry.New(),
		summarizer: summarizer,
		logDir:     logDir,
		execState:  StateIdle,
		agentState: AgentFinished,
	}
}

// Runs exposes the run registry for startup preloading.
func (c *Coordinator) Runs() *registry.Registry {
	return c.runs
}

// PreloadRun appends an imported run blob to the history before serving.
// The blob's recorded server version must be compatible with this build.
func (c *Coordinator) PreloadRun(blob []byte) (*domain.Run, error) {
	run, err := domain.RunFromBytes(blob)
	if err != nil {
		return nil, err
	}
	ok, err := version.Compatible(run.ServerVersion, version.ServerVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIncompatibleVersion, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: run requires %s, server is %s",
			domain.ErrIncompatibleVersion, run.ServerVersion, version.ServerVersion)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs.Append(run)
	return run, nil
}

// State returns the current execution and agent states.
func (c *Coordinator) State() (ExecutionState, AgentState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.execState, c.agentState
}

// PendingBreakpoint returns the breakpoint the agent is halted at, or nil.
func (c *Coordinator) PendingBreakpoint() *domain.Breakpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Coordinator) agentAttached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent != nil
}

// AttachAgent registers the agent peer. Only one agent may be connected; a
// second connection is rejected.
func (c *Coordinator) AttachAgent(peer Peer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agent != nil {
		return fmt.Errorf("%w: agent", domain.ErrConcurrencyConflict)
	}
	c.log.Info("agent connected")
	c.agent = peer
	return nil
}

// DetachAgent clears the agent peer and finishes the active run, if any.
// Detaching a peer that was never attached is a no-op.
func (c *Coordinator) DetachAgent(peer Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.agent != peer {
		return
	}
	c.log.Info("agent disconnected")
	c.agent = nil
	if c.runs.Active() != nil {
		c.endActiveRun()
	}
}

// AttachUI registers the UI peer and sends it the full state snapshot.
// Only one UI may be connected at a time.
func (c *Coordinator) AttachUI(peer Peer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ui != nil {
		return fmt.Errorf("%w: UI", domain.ErrConcurrencyConflict)
	}
	c.log.Info("UI connected")
	c.ui = peer

	var haltedAt *uuid.UUID
	if c.pending != nil {
		haltedAt = &c.pending.ID
	}
	frame, err := initAppStateMsg(c.runs.All(), c.runs.Active(), c.execState, c.agentState, haltedAt)
	if err != nil {
		return err
	}
	return peer.Send(frame)
}

// DetachUI clears the UI peer. The debugger keeps running without a UI.
func (c *Coordinator) DetachUI(peer Peer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ui != peer {
		return
	}
	c.log.Info("UI disconnected")
	c.ui = nil
}

// HandleAgentMessage processes one frame from the agent stream. A returned
// error means the agent violated the protocol and its connection should be
// closed.
func (c *Coordinator) HandleAgentMessage(raw []byte) error {
	kind, data, err := protocol.DecodeAgentMessage(raw)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case protocol.KindEvent:
		return c.handleEvent(data)
	case protocol.KindBreakpoint:
		return c.handleBreakpoint(data)
	case protocol.KindCommit:
		return c.handleCommit(data)
	}
	return fmt.Errorf("%w: %q", protocol.ErrMalformedMessage, kind)
}

func (c *Coordinator) handleEvent(data json.RawMessage) error {
	var event domain.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrMalformedMessage, err)
	}
	c.log.Debug("event received", "type", event.Type, "id", event.ID)

	if event.Type == domain.EventProgramStarted {
		if c.runs.Active() != nil {
			return fmt.Errorf("%w: program started while a run is active", domain.ErrProtocolViolation)
		}
		c.startNewRun(&event)
	}

	active := c.runs.Active()
	if active == nil {
		return fmt.Errorf("%w: %s event before program start", domain.ErrProtocolViolation, event.Type)
	}

	if event.Type == domain.EventDebugMessage {
		c.sendUI(newMessageMsg(active.ID, domain.MessageFromDebugEvent(&event)))
	}

	active.AddEvent(&event)
	return nil
}

func (c *Coordinator) startNewRun(start *domain.Event) {
	program := start.DataString()
	run := domain.NewRun(c.runs.NextRunName(program), program, start.Time, version.ServerVersion)
	c.runs.SetActive(run)
	c.execState = StateStep
	c.agentState = AgentRunning
	c.log.Info("run started", "run", run.ID, "name", run.Name)

	c.sendUI(newRunMsg(run, c.execState, c.agentState))
	c.sendUI(updateRunStateMsg(run.ID, c.execState, c.agentState, nil))
}

func (c *Coordinator) handleBreakpoint(data json.RawMessage) error {
	var bp domain.Breakpoint
	if err := json.Unmarshal(data, &bp); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrMalformedMessage, err)
	}

	active := c.runs.Active()
	if active == nil {
		return fmt.Errorf("%w: breakpoint with no active run", domain.ErrProtocolViolation)
	}
	event, ok := active.Event(bp.EventID)
	if !ok {
		return fmt.Errorf("%w: breakpoint for unknown event %s", domain.ErrProtocolViolation, bp.EventID)
	}

	if c.execState == StateStep {
		c.execState = StateHalted
		c.agentState = AgentHalted
		c.pending = &bp
	}

	if err := event.AddBreakpoint(&bp); err != nil {
		return err
	}
	if bp.Summary == "" {
		c.summarize(active, &bp)
	}

	c.sendUI(newMessageMsg(active.ID, domain.MessageFromBreakpoint(&bp, event)))
	if c.execState == StateHalted {
		c.sendUI(updateRunStateMsg(active.ID, StateHalted, AgentHalted, &bp.ID))
	}

	if c.execState == StateContinue {
		c.agentState = agentStateAfterRelease(event, &bp)
		if err := c.release(&bp); err != nil {
			return err
		}
		c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, nil))
	}
	return nil
}

func (c *Coordinator) handleCommit(data json.RawMessage) error {
	var commit domain.Commit
	if err := json.Unmarshal(data, &commit); err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrMalformedMessage, err)
	}
	active := c.runs.Active()
	if active == nil {
		return fmt.Errorf("%w: commit with no active run", domain.ErrProtocolViolation)
	}
	c.log.Info("commit received", "id", commit.ID, "title", commit.Title)
	active.AddCommit(&commit)
	c.sendUI(newCommitMsg(active.ID, &commit))
	return nil
}

// agentStateAfterRelease tells what the agent does next after a breakpoint is
// released: a begin breakpoint puts it inside the operation, an end
// breakpoint back into its own code.
func agentStateAfterRelease(e *domain.Event, bp *domain.Breakpoint) AgentState {
	inOperation := !e.HasEndBreakpoint() || e.EndBreakpoint().ID != bp.ID
	if inOperation {
		switch e.Type {
		case domain.EventLLMQuery:
			return AgentLLMThinking
		case domain.EventToolInvocation:
			return AgentToolExecuting
		}
	}
	return AgentRunning
}

// release sends the breakpoint back to the agent, unblocking it.
func (c *Coordinator) release(bp *domain.Breakpoint) error {
	if c.agent == nil {
		return fmt.Errorf("%w: no agent to release breakpoint to", domain.ErrProtocolViolation)
	}
	frame, err := protocol.EncodeAgentMessage(protocol.KindBreakpoint, bp)
	if err != nil {
		return err
	}
	return c.agent.Send(frame)
}

func (c *Coordinator) summarize(run *domain.Run, bp *domain.Breakpoint) {
	if c.summarizer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), summarizeTimeout)
	defer cancel()
	text, err := c.summarizer.Summarize(ctx, run, bp)
	if err != nil {
		c.log.Warn("breakpoint summarization failed", "breakpoint", bp.ID, "error", err)
		return
	}
	bp.Summary = text
}

// endActiveRun closes out the active run: appends the synthetic finish event,
// writes the run log, and moves the run to the history. Caller holds the lock.
func (c *Coordinator) endActiveRun() {
	active := c.runs.Active()
	c.execState = StateIdle
	c.agentState = AgentFinished
	c.pending = nil

	finish := domain.NewEvent(domain.EventProgramFinished)
	bp := domain.NewBreakpoint("", nil, finish.ID)
	bp.Summary = "Agent execution finished."
	if err := finish.AddBreakpoint(bp); err != nil {
		c.log.Error("attach finish breakpoint", "error", err)
	}
	active.AddEvent(finish)

	if c.logDir != "" {
		if path, err := logwriter.WriteRun(c.logDir, active); err != nil {
			c.log.Error("write run log", "error", err)
		} else {
			c.log.Info("run log written", "path", path)
		}
	}

	c.runs.Append(active)
	c.runs.SetActive(nil)
	c.log.Info("run finished", "run", active.ID)

	c.sendUI(newMessageMsg(active.ID, domain.MessageFromBreakpoint(bp, finish)))
	c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, nil))
}

// Continue switches the debugger to continue mode, releasing the pending
// breakpoint unmodified if the agent is halted.
func (c *Coordinator) Continue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.continueExecution()
}

// Halt arms the debugger to halt at the next breakpoint.
func (c *Coordinator) Halt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltExecution()
}

// StepOver releases the pending breakpoint and halts at the next one. A
// non-nil data overrides the payload; nil keeps any modification already
// applied through update_msg_content.
func (c *Coordinator) StepOver(data json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepOver(data)
}

// HandleUICommand processes one frame from the UI stream. Recoverable
// problems are reported back to the UI as error events; a returned error
// means the frame itself was malformed.
func (c *Coordinator) HandleUICommand(raw []byte) error {
	kind, content, err := protocol.DecodeUICommand(raw)
	if err != nil {
		return err
	}
	c.log.Debug("UI command", "event", kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case protocol.UIStep:
		c.uiStep()
	case protocol.UIContinue:
		c.continueExecution()
	case protocol.UIHalt:
		c.haltExecution()
	case protocol.UIUpdateMsgContent:
		c.uiUpdateMsgContent(content)
	case protocol.UIRenameRun:
		c.uiRenameRun(content)
	case protocol.UIDeleteRun:
		c.uiDeleteRun(content)
	case protocol.UIDownloadRunRequest:
		c.uiDownloadRun(content)
	case protocol.UIImportRun:
		c.uiImportRun(content)
	}
	return nil
}

func (c *Coordinator) uiStep() {
	switch c.execState {
	case StateHalted:
		if err := c.stepOver(nil); err != nil {
			c.sendError(err.Error())
		}
	case StateContinue:
		c.execState = StateStep
	}
}

// stepOver releases the pending breakpoint and arms the debugger to halt at
// the next breakpoint. A non-nil data overrides the payload; nil keeps the
// pending modification, if any.
func (c *Coordinator) stepOver(data json.RawMessage) error {
	if c.execState != StateHalted {
		return fmt.Errorf("%w: step with no halted breakpoint", domain.ErrProtocolViolation)
	}
	bp := c.pending
	if data != nil {
		bp.ModifiedData = data
	}
	active := c.runs.Active()
	event, ok := active.Event(bp.EventID)
	if !ok {
		return fmt.Errorf("%w: pending breakpoint for unknown event %s", domain.ErrProtocolViolation, bp.EventID)
	}
	c.pending = nil
	c.execState = StateStep
	c.agentState = agentStateAfterRelease(event, bp)
	if err := c.release(bp); err != nil {
		return err
	}
	c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, nil))
	return nil
}

// continueExecution switches to continue mode, first releasing the pending
// breakpoint unmodified if the agent is halted.
func (c *Coordinator) continueExecution() {
	active := c.runs.Active()
	if active == nil || c.execState == StateIdle || c.execState == StateContinue {
		return
	}
	if c.pending != nil {
		bp := c.pending
		if event, ok := active.Event(bp.EventID); ok {
			c.agentState = agentStateAfterRelease(event, bp)
		}
		if err := c.release(bp); err != nil {
			c.log.Error("release breakpoint", "error", err)
			return
		}
		c.pending = nil
	}
	c.execState = StateContinue
	c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, nil))
}

// haltExecution arms the debugger to halt at the next breakpoint. If one is
// already pending the run is halted immediately.
func (c *Coordinator) haltExecution() {
	active := c.runs.Active()
	if c.execState != StateContinue || active == nil {
		return
	}
	c.execState = StateStep
	if c.pending != nil {
		c.agentState = AgentHalted
		c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, &c.pending.ID))
	} else {
		c.agentState = AgentHalting
		c.sendUI(updateRunStateMsg(active.ID, c.execState, c.agentState, nil))
	}
}

func (c *Coordinator) uiUpdateMsgContent(content json.RawMessage) {
	var payload protocol.UpdateMsgContentPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		c.sendError("malformed update_msg_content payload")
		return
	}
	if c.pending == nil {
		c.sendError("no pending breakpoint to update")
		return
	}
	if c.pending.ID.String() != payload.Message {
		c.sendError(fmt.Sprintf("breakpoint mismatch: pending is %s, received %s", c.pending.ID, payload.Message))
		return
	}
	c.pending.ModifiedData = payload.Content
	c.log.Debug("breakpoint payload updated", "breakpoint", c.pending.ID)
}

func (c *Coordinator) uiRenameRun(content json.RawMessage) {
	var payload protocol.RenameRunPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		c.sendError("malformed rename_run payload")
		return
	}
	run := c.runs.Lookup(payload.Run)
	if run == nil {
		c.sendError(fmt.Sprintf("no run with id %s", payload.Run))
		return
	}
	c.log.Info("run renamed", "run", run.ID, "from", run.Name, "to", payload.Name)
	run.Name = payload.Name
}

func (c *Coordinator) uiDeleteRun(content json.RawMessage) {
	var payload protocol.RunRefPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		c.sendError("malformed delete_run payload")
		return
	}
	if err := c.runs.Delete(payload.Run); err != nil {
		c.sendError(err.Error())
		return
	}
	c.log.Info("run deleted", "run", payload.Run)
}

func (c *Coordinator) uiDownloadRun(content json.RawMessage) {
	var payload protocol.RunRefPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		c.sendError("malformed download_run_request payload")
		return
	}
	run := c.runs.Lookup(payload.Run)
	if run == nil {
		c.sendError(fmt.Sprintf("no run with id %s", payload.Run))
		return
	}
	blob, err := run.ToBytes()
	if err != nil {
		c.sendError(fmt.Sprintf("export run %s: %v", run.ID, err))
		return
	}
	c.sendUI(runExportMsg(run.Name, blob))
}

func (c *Coordinator) uiImportRun(content json.RawMessage) {
	var payload protocol.ImportRunPayload
	if err := json.Unmarshal(content, &payload); err != nil {
		c.sendError("malformed import_run payload")
		return
	}
	blob, err := decodeRunBlob(payload.Data)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	run, err := domain.RunFromBytes(blob)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	ok, err := version.Compatible(run.ServerVersion, version.ServerVersion)
	if err != nil {
		c.sendError(fmt.Sprintf("run blob has an invalid server version %q: %v", run.ServerVersion, err))
		return
	}
	if !ok {
		c.sendError(fmt.Sprintf("run requires server version %s, this server is %s", run.ServerVersion, version.ServerVersion))
		return
	}
	c.runs.Append(run)
	c.log.Info("run imported", "run", run.ID, "name", run.Name)
	c.sendUI(newRunMsg(run, StateIdle, AgentFinished))
}

// sendUI forwards a prebuilt frame to the UI if one is connected. Build and
// send failures are logged, never propagated; the UI is an observer.
func (c *Coordinator) sendUI(frame []byte, err error) {
	if err != nil {
		c.log.Error("build UI frame", "error", err)
		return
	}
	if c.ui == nil {
		return
	}
	if err := c.ui.Send(frame); err != nil {
		c.log.Warn("send to UI", "error", err)
	}
}

func (c *Coordinator) sendError(message string) {
	c.log.Warn("UI command rejected", "reason", message)
	c.sendUI(errorMsg(message))
}
