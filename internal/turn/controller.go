package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// State of the per-session turn machine.
type State int

const (
	StateIdle State = iota
	StateListeningToUser
	StateAwaitingAgentResponse
	StateAgentSpeaking
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListeningToUser:
		return "listening_to_user"
	case StateAwaitingAgentResponse:
		return "awaiting_agent_response"
	case StateAgentSpeaking:
		return "agent_speaking"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	ErrClosed            = errors.New("turn controller closed")
	ErrInvalidTransition = errors.New("invalid turn transition")
)

// EventType enumerates inbound events from the ordered session channel.
type EventType int

const (
	// EventAgentTranscriptDelta carries an incremental agent-speech fragment.
	EventAgentTranscriptDelta EventType = iota
	// EventAgentTranscriptDone carries the completed agent transcript.
	EventAgentTranscriptDone
	// EventUserTranscriptDone carries the completed user-speech transcription.
	EventUserTranscriptDone
	// EventError is a transport-level failure; it tears the machine down.
	EventError
)

type Event struct {
	Type EventType
	Text string
	Err  error
}

// Cue is a keyword-derived UI hint extracted from completed agent
// transcripts. Heuristic only, never a state transition input.
type Cue int

const (
	CueNone Cue = iota
	CueBandScore
	CueSampleAnswer
)

// Entry is one conversation-log line.
type Entry struct {
	Role string `json:"role"` // "examiner" or "candidate"
	Text string `json:"text"`
	Cue  Cue    `json:"cue,omitempty"`
}

// Transport is the adapter around the peer media connection and event
// channel. Wiring it is outside the core.
type Transport interface {
	// CancelTurn asks the agent to abandon its in-flight turn (barge-in).
	CancelTurn() error
	// RequestTurn asks the agent to produce its next turn.
	RequestTurn() error
	// MuteRemote silences or restores local playback of the remote stream.
	MuteRemote(muted bool)
	// SetMicEnabled toggles the local microphone track.
	SetMicEnabled(enabled bool)
	// Close releases the media connection and event channel.
	Close()
}

// Controller is the single-threaded, event-driven turn state machine for one
// session. All handlers run under one mutex, so no two handlers for the same
// session execute concurrently; events from the ordered channel must be fed
// in arrival order.
type Controller struct {
	mu        sync.Mutex
	state     State
	transport Transport
	buf       strings.Builder
	sink      func(Entry)
}

// New returns a controller in Idle. sink receives conversation-log entries
// and may be nil.
func New(transport Transport, sink func(Entry)) *Controller {
	return &Controller{
		state:     StateIdle,
		transport: transport,
		sink:      sink,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start requests the opening agent turn immediately after the event channel
// opens. Idle -> AwaitingAgentResponse.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.state)
	}
	if err := c.transport.RequestTurn(); err != nil {
		return err
	}
	c.state = StateAwaitingAgentResponse
	return nil
}

// StartTalking handles the user's push-to-talk press. Permitted from Idle or
// AgentSpeaking; from AgentSpeaking it first cancels the in-flight agent turn
// and mutes remote playback (barge-in).
func (c *Controller) StartTalking() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosed:
		return ErrClosed
	case StateIdle:
		// nothing to interrupt
	case StateAgentSpeaking:
		if err := c.transport.CancelTurn(); err != nil {
			return err
		}
		c.transport.MuteRemote(true)
		// The cancelled turn's partial transcript is discarded.
		c.buf.Reset()
	default:
		return fmt.Errorf("%w: start talking from %s", ErrInvalidTransition, c.state)
	}

	c.transport.SetMicEnabled(true)
	c.state = StateListeningToUser
	return nil
}

// StopTalking handles the push-to-talk release: restore remote playback and
// request the agent's next turn. ListeningToUser -> AwaitingAgentResponse.
func (c *Controller) StopTalking() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}
	if c.state != StateListeningToUser {
		return fmt.Errorf("%w: stop talking from %s", ErrInvalidTransition, c.state)
	}

	c.transport.SetMicEnabled(false)
	c.transport.MuteRemote(false)
	if err := c.transport.RequestTurn(); err != nil {
		return err
	}
	c.state = StateAwaitingAgentResponse
	return nil
}

// HandleEvent consumes one inbound event. Events that no longer match the
// current state (e.g. a completion for a turn cancelled by barge-in) are
// stale and dropped rather than asserted on.
func (c *Controller) HandleEvent(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}

	switch ev.Type {
	case EventAgentTranscriptDelta:
		if c.state != StateAwaitingAgentResponse && c.state != StateAgentSpeaking {
			slog.Debug("dropping stale transcript delta", "state", c.state.String())
			return nil
		}
		c.buf.WriteString(ev.Text)
		c.state = StateAgentSpeaking

	case EventAgentTranscriptDone:
		if c.state != StateAwaitingAgentResponse && c.state != StateAgentSpeaking {
			slog.Debug("dropping stale transcript completion", "state", c.state.String())
			return nil
		}
		transcript := ev.Text
		if transcript == "" {
			transcript = c.buf.String()
		}
		c.buf.Reset()
		c.emit(Entry{Role: "examiner", Text: transcript, Cue: ScanCues(transcript)})
		c.state = StateIdle

	case EventUserTranscriptDone:
		// Informational in any state; transcription completes asynchronously.
		c.emit(Entry{Role: "candidate", Text: ev.Text})

	case EventError:
		slog.Error("turn transport failed, closing session", "error", ev.Err)
		c.closeLocked()

	default:
		return fmt.Errorf("unknown event type %d", ev.Type)
	}

	return nil
}

// Run consumes the inbound event stream until it closes, the context is
// cancelled or the machine reaches Closed.
func (c *Controller) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case ev, ok := <-events:
			if !ok {
				c.Close()
				return
			}
			if err := c.HandleEvent(ev); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				slog.Warn("turn event rejected", "error", err)
			}
			if c.State() == StateClosed {
				return
			}
		}
	}
}

// Close tears the machine down from any state. Idempotent; no events are
// processed afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Controller) closeLocked() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.buf.Reset()
	c.transport.Close()
}

func (c *Controller) emit(entry Entry) {
	if c.sink != nil && entry.Text != "" {
		c.sink(entry)
	}
}
