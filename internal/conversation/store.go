package conversation

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/MegaGrindStone/stream-chat/internal/models"
)

// Store holds the transcript of a single conversation and the flag telling whether a response is
// still being awaited. Every mutation is reported to the subscribed observers, so a view can re-render
// without polling. A Store is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message
	pending  bool

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int

	notifyMu sync.Mutex
}

// Observer receives a snapshot of the store after each mutation.
type Observer func(Change)

// Change describes a single mutation of the store. Messages is a copy and can be kept by the observer.
type Change struct {
	Kind     ChangeKind
	Messages []models.Message
	Pending  bool
}

// ChangeKind is the kind of mutation reported to observers.
type ChangeKind int

const (
	// ChangeAppend is reported when a user/assistant exchange is appended.
	ChangeAppend ChangeKind = iota + 1
	// ChangeText is reported when the text of the trailing message changes.
	ChangeText
	// ChangePending is reported when the pending flag flips.
	ChangePending
	// ChangeClear is reported when the transcript is emptied.
	ChangeClear
)

var (
	// ErrEmptyInput is returned by AppendExchange when the user text is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrPending is returned by AppendExchange while a response is still awaited.
	ErrPending = errors.New("a response is pending")
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		observers: make(map[int]Observer),
	}
}

func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeText:
		return "text"
	case ChangePending:
		return "pending"
	case ChangeClear:
		return "clear"
	default:
		return "unknown"
	}
}

// AppendExchange appends a user message with userText followed by an empty assistant message, and
// returns both IDs. Nothing is appended if userText is blank or a response is pending.
func (s *Store) AppendExchange(userText string) (string, string, error) {
	if strings.TrimSpace(userText) == "" {
		return "", "", ErrEmptyInput
	}

	var userID, assistantID string
	err := s.mutate(ChangeAppend, func() (bool, error) {
		if s.pending {
			return false, ErrPending
		}
		um := models.NewUserMessage(userText)
		am := models.NewAssistantMessage()
		s.messages = append(s.messages, um, am)
		userID, assistantID = um.ID, am.ID
		return true, nil
	})
	if err != nil {
		return "", "", err
	}
	return userID, assistantID, nil
}

// UpdateTrailingAssistantText replaces the text of the last message. The caller is expected to know
// that the last message is the assistant placeholder; an empty transcript is left untouched.
func (s *Store) UpdateTrailingAssistantText(text string) {
	s.mutateTrailing(func(m *models.Message) {
		m.Text = text
	})
}

// AppendTrailingAssistantNote appends note on a new line to the text of the last message, keeping what
// was streamed so far.
func (s *Store) AppendTrailingAssistantNote(note string) {
	s.mutateTrailing(func(m *models.Message) {
		m.Text += "\n" + note
	})
}

func (s *Store) mutateTrailing(fn func(*models.Message)) {
	_ = s.mutate(ChangeText, func() (bool, error) {
		if len(s.messages) == 0 {
			return false, nil
		}
		fn(&s.messages[len(s.messages)-1])
		return true, nil
	})
}

// Clear empties the transcript. It does not touch the pending flag nor any open stream: callers that
// want to stop a running session must cancel it themselves.
func (s *Store) Clear() {
	_ = s.mutate(ChangeClear, func() (bool, error) {
		s.messages = nil
		return true, nil
	})
}

// Pending reports whether a response is being awaited.
func (s *Store) Pending() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// SetPending sets the pending flag. Observers are notified only when the value changes.
func (s *Store) SetPending(pending bool) {
	_ = s.mutate(ChangePending, func() (bool, error) {
		if s.pending == pending {
			return false, nil
		}
		s.pending = pending
		return true, nil
	})
}

// Messages returns a copy of the transcript in insertion order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

// Trailing returns the last message of the transcript, if any.
func (s *Store) Trailing() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.messages) == 0 {
		return models.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Subscribe registers obs to be called after every mutation and returns a function that removes it.
// Observers are called synchronously on the mutating goroutine; they may read the store but must not
// mutate it.
func (s *Store) Subscribe(obs Observer) func() {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// mutate runs fn under the write lock and, if fn reports a change, notifies the observers. Holding
// notifyMu for the whole call keeps notifications in mutation order.
func (s *Store) mutate(kind ChangeKind, fn func() (bool, error)) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	changed, err := fn()
	ch := Change{
		Kind:     kind,
		Messages: slices.Clone(s.messages),
		Pending:  s.pending,
	}
	s.mu.Unlock()

	if err != nil || !changed {
		return err
	}

	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	obs := make([]Observer, len(ids))
	for i, id := range ids {
		obs[i] = s.observers[id]
	}
	s.obsMu.Unlock()

	for _, o := range obs {
		o(ch)
	}
	return nil
}
