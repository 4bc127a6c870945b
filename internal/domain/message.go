package domain

import (
	"encoding/json"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Participant identifies a side of a UI conversation message.
type Participant string

const (
	ParticipantLLM    Participant = "LLM"
	ParticipantCore   Participant = "Core"
	ParticipantTools  Participant = "Tools"
	ParticipantSystem Participant = "System"
)

// ContentType tells the UI how to render a message payload.
type ContentType string

const (
	ContentJSON ContentType = "json"
	ContentText ContentType = "text"
)

// Message is the UI projection of a breakpoint or debug event.
type Message struct {
	ID          uuid.UUID
	From        Participant
	To          Participant
	Summary     string
	ContentType ContentType
	Content     json.RawMessage
	SentAt      time.Time
}

// PayloadContentType classifies an opaque payload: JSON objects and arrays
// render structured, everything else as text.
func PayloadContentType(raw json.RawMessage) ContentType {
	for _, b := range raw {
		if unicode.IsSpace(rune(b)) {
			continue
		}
		if b == '{' || b == '[' {
			return ContentJSON
		}
		break
	}
	return ContentText
}

// MessageFromBreakpoint projects a breakpoint into a UI message, routing the
// participants by event type and by begin/end position.
func MessageFromBreakpoint(bp *Breakpoint, e *Event) Message {
	return Message{
		ID:          bp.ID,
		From:        fromParticipant(bp, e),
		To:          toParticipant(bp, e),
		Summary:     bp.Summary,
		ContentType: PayloadContentType(bp.OriginalData),
		Content:     bp.OriginalData,
		SentAt:      bp.Time,
	}
}

// MessageFromDebugEvent projects a debug event: the text travels in the
// summary, there is no payload.
func MessageFromDebugEvent(e *Event) Message {
	return Message{
		ID:          e.ID,
		From:        ParticipantSystem,
		To:          ParticipantSystem,
		Summary:     e.DataString(),
		ContentType: ContentText,
		SentAt:      e.Time,
	}
}

// MessagesFromEvent returns the UI messages an event contributes, in
// breakpoint order.
func MessagesFromEvent(e *Event) []Message {
	if len(e.Breakpoints) > 0 {
		msgs := make([]Message, 0, len(e.Breakpoints))
		for _, bp := range e.Breakpoints {
			msgs = append(msgs, MessageFromBreakpoint(bp, e))
		}
		return msgs
	}
	if e.Type == EventDebugMessage {
		return []Message{MessageFromDebugEvent(e)}
	}
	return nil
}

func fromParticipant(bp *Breakpoint, e *Event) Participant {
	isEnd := e.HasEndBreakpoint() && e.EndBreakpoint().ID == bp.ID
	switch {
	case isEnd && e.Type == EventLLMQuery:
		return ParticipantLLM
	case isEnd && e.Type == EventToolInvocation:
		return ParticipantTools
	case e.Type == EventProgramStarted || e.Type == EventProgramFinished:
		return ParticipantSystem
	}
	return ParticipantCore
}

func toParticipant(bp *Breakpoint, e *Event) Participant {
	isBegin := e.HasBeginBreakpoint() && e.BeginBreakpoint().ID == bp.ID
	if isBegin {
		switch e.Type {
		case EventLLMQuery:
			return ParticipantLLM
		case EventToolInvocation:
			return ParticipantTools
		}
	}
	if e.Type == EventProgramStarted || e.Type == EventProgramFinished {
		return ParticipantSystem
	}
	return ParticipantCore
}
