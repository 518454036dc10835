package session

import (
	"fmt"

	"github.com/MegaGrindStone/stream-chat/internal/models"
)

// State is the lifecycle state of a stream session.
type State int

const (
	// StateIdle is both the initial and the terminal state: no stream is open.
	StateIdle State = iota
	// StatePending means a stream is open and its events are applied to the trailing message.
	StatePending
)

// Input is something that happened on the stream: either a frame arrived or the transport failed.
type Input struct {
	Frame models.Frame
	Err   error
}

// Action is a side effect the controller must apply after a step.
type Action struct {
	Kind ActionKind
	Text string
}

// ActionKind enumerates the side effects produced by Step.
type ActionKind int

const (
	// ActionReplaceText replaces the trailing assistant text with Text.
	ActionReplaceText ActionKind = iota + 1
	// ActionAppendNote appends Text as a note on a new line of the trailing assistant text.
	ActionAppendNote
	// ActionClose releases the connection and clears the pending flag.
	ActionClose
)

// Transition is the result of a single Step.
type Transition struct {
	Next    State
	Actions []Action

	// ParseErr is set when the frame data was not a structured event and was used verbatim.
	ParseErr error
}

// FrameInput wraps a received frame as an Input.
func FrameInput(f models.Frame) Input {
	return Input{Frame: f}
}

// TransportErrorInput wraps a connection-level failure as an Input.
func TransportErrorInput(err error) Input {
	return Input{Err: err}
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Step interprets one input in the given state. It has no side effects of its own; the returned actions
// describe what must happen to the conversation and to the connection.
//
// Non-terminal events carry the full response accumulated so far, so content updates replace the
// trailing text instead of appending to it.
//
// The SSE event type of a frame is consulted only when its data is not a JSON object: a named type
// other than "message" then acts as the event discriminator, and an unnamed frame is used verbatim.
func Step(state State, in Input) Transition {
	if state != StatePending {
		return Transition{Next: state}
	}

	if in.Err != nil {
		return Transition{
			Next:    StateIdle,
			Actions: []Action{{Kind: ActionClose}},
		}
	}

	ev, parseErr := models.ParseStreamEvent(in.Frame.Data)
	if parseErr != nil {
		if !in.Frame.Named() {
			return Transition{
				Next:     StatePending,
				Actions:  []Action{{Kind: ActionReplaceText, Text: in.Frame.Data}},
				ParseErr: parseErr,
			}
		}
		// The backend may also put the discriminator in the SSE event type and send the payload raw.
		ev = models.StreamEvent{Event: in.Frame.Type, Data: in.Frame.Data}
	}

	switch ev.Event {
	case models.EventError:
		return Transition{
			Next:    StatePending,
			Actions: []Action{{Kind: ActionAppendNote, Text: ErrorNote(ev.Data)}},
		}
	case models.EventEnd:
		return Transition{
			Next:    StateIdle,
			Actions: []Action{{Kind: ActionClose}},
		}
	default:
		return Transition{
			Next:    StatePending,
			Actions: []Action{{Kind: ActionReplaceText, Text: ev.Data}},
		}
	}
}

// ErrorNote formats an in-band error reported by the backend for display in the transcript.
func ErrorNote(msg string) string {
	return fmt.Sprintf("[error: %s]", msg)
}

// RequestErrorNote formats a failure to build the request for display in the transcript.
func RequestErrorNote(err error) string {
	return fmt.Sprintf("[request error: %s]", err)
}
