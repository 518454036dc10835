package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/MegaGrindStone/stream-chat/internal/conversation"
)

// Controller drives a conversation store from server-push streams. It owns at most one session at a
// time; the pending flag of the store gates new sessions.
type Controller struct {
	store     *conversation.Store
	transport Transport
	logger    *slog.Logger

	mu      sync.Mutex
	current *Session
}

// Session is one outstanding request and the stream answering it. It is the only writer of the
// trailing assistant message while it is open.
type Session struct {
	requestText string
	assistantID string

	ctrl   *Controller
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	stream Stream
	state  State
	closed bool
}

const errLoggerKey = "err"

// NewController creates a controller that writes into store and opens streams with transport.
func NewController(store *conversation.Store, transport Transport, logger *slog.Logger) *Controller {
	return &Controller{
		store:     store,
		transport: transport,
		logger:    logger.With(slog.String("module", "session")),
	}
}

// Start sends requestText and streams the answer into the store. Blank input, or a call made while a
// response is pending, is ignored and reported by the false return value.
//
// ctx bounds the whole session, not only the connection setup; it must outlive the caller if the
// caller returns before the stream ends (an HTTP handler, for example).
func (c *Controller) Start(ctx context.Context, requestText string) (*Session, bool) {
	c.mu.Lock()
	if strings.TrimSpace(requestText) == "" {
		c.mu.Unlock()
		c.logger.Debug("Ignoring empty request")
		return nil, false
	}
	if c.store.Pending() {
		c.mu.Unlock()
		c.logger.Debug("Ignoring request while a response is pending")
		return nil, false
	}

	_, assistantID, err := c.store.AppendExchange(requestText)
	if err != nil {
		c.mu.Unlock()
		c.logger.Debug("Ignoring request", slog.String(errLoggerKey, err.Error()))
		return nil, false
	}
	c.store.SetPending(true)

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		requestText: requestText,
		assistantID: assistantID,
		ctrl:        c,
		cancel:      cancel,
		done:        make(chan struct{}),
		logger:      c.logger.With(slog.String("assistantID", assistantID)),
		state:       StatePending,
	}
	c.current = s
	c.mu.Unlock()

	// The lock is released while connecting so that Cancel can abort a slow connection.
	stream, err := c.transport.Open(sctx, requestText)
	if err != nil {
		var reqErr *RequestError
		switch {
		case errors.As(err, &reqErr):
			s.logger.Error("Failed to build request", slog.String(errLoggerKey, err.Error()))
			s.annotate(RequestErrorNote(reqErr.Err))
		case errors.Is(err, context.Canceled):
			s.logger.Debug("Session cancelled while connecting")
		default:
			s.logger.Warn("Failed to open stream", slog.String(errLoggerKey, err.Error()))
		}
		s.finish()
		return s, true
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = stream.Close()
		return s, true
	}
	s.stream = stream
	s.mu.Unlock()

	s.logger.Debug("Stream opened")
	go s.run()

	return s, true
}

// Current returns the open session, or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Cancel closes the open session, if any. Views call it before clearing the store, so that no event of
// the old session lands in the new transcript.
func (c *Controller) Cancel() {
	if s := c.Current(); s != nil {
		s.Cancel()
	}
}

func (c *Controller) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s {
		return
	}
	c.current = nil
	c.store.SetPending(false)
}

// Cancel closes the connection and clears the pending flag without annotating the transcript. It is
// safe to call more than once and after the session ended.
func (s *Session) Cancel() {
	s.logger.Debug("Cancelling session")
	s.finish()
}

// Done returns a channel closed once the session ended and its connection was released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session ended or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AssistantID is the ID of the assistant message the session was created for.
func (s *Session) AssistantID() string {
	return s.assistantID
}

// RequestText is the text the session was started with.
func (s *Session) RequestText() string {
	return s.requestText
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) run() {
	defer s.finish()

	for frame, err := range s.stream.Frames() {
		in := FrameInput(frame)
		if err != nil {
			in = TransportErrorInput(err)
		}
		if !s.handle(in) {
			return
		}
	}
}

// handle applies one input and reports whether the session should keep reading. The session lock is
// held while the store is updated so that Cancel never returns with an update still in flight.
func (s *Session) handle(in Input) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	tr := Step(s.state, in)
	if tr.ParseErr != nil {
		s.logger.Debug("Payload is not a structured event, using it verbatim",
			slog.String("payload", in.Frame.Data),
			slog.String(errLoggerKey, tr.ParseErr.Error()))
	}
	if in.Err != nil && !errors.Is(in.Err, context.Canceled) {
		s.logger.Warn("Stream transport failed", slog.String(errLoggerKey, in.Err.Error()))
	}

	for _, a := range tr.Actions {
		switch a.Kind {
		case ActionReplaceText:
			s.checkTrailing()
			s.ctrl.store.UpdateTrailingAssistantText(a.Text)
		case ActionAppendNote:
			s.checkTrailing()
			s.ctrl.store.AppendTrailingAssistantNote(a.Text)
		case ActionClose:
			// finish runs once run returns.
			s.logger.Debug("Stream closed", slog.String("next", tr.Next.String()))
		}
	}
	s.state = tr.Next

	return tr.Next == StatePending
}

// checkTrailing warns when the last message is no longer the one this session was created for, which
// happens when the history is cleared while the stream is open. Updates still target the last message.
func (s *Session) checkTrailing() {
	m, ok := s.ctrl.store.Trailing()
	if !ok || m.ID != s.assistantID {
		s.logger.Warn("Trailing message is not the session's assistant message")
	}
}

func (s *Session) annotate(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ctrl.store.AppendTrailingAssistantNote(note)
}

func (s *Session) finish() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateIdle
	stream := s.stream
	s.mu.Unlock()

	s.cancel()
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Debug("Failed to close stream", slog.String(errLoggerKey, err.Error()))
		}
	}
	s.ctrl.release(s)
	close(s.done)
}
