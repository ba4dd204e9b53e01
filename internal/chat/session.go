// Package chat holds the conversation state of one chat window and drives
// a single streamed exchange at a time against a Transport.
package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"

	"github.com/comigor/ollamachat/internal/logger"
	"github.com/comigor/ollamachat/internal/stream"
)

// ErrorText is what the user sees when an exchange fails.
const ErrorText = "Error communicating with Ollama. Please check if it's running."

var (
	// ErrBusy is returned by operations that need the session to be idle.
	ErrBusy = errors.New("chat: an exchange is in flight")
	// ErrEmptyModel is returned by SetModel for a blank name.
	ErrEmptyModel = errors.New("chat: model name is empty")
)

// Option configures a Session.
type Option func(*Session)

// WithModel sets the initially selected model.
func WithModel(name string) Option {
	return func(s *Session) { s.model = name }
}

// WithSystemPrompt prepends a system turn to every request.
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) { s.systemPrompt = strings.TrimSpace(prompt) }
}

// WithObserver registers fn to receive every Update, in order.
func WithObserver(fn func(Update)) Option {
	return func(s *Session) { s.observer = fn }
}

// Session owns the ordered message list of one conversation.
// All methods are safe for concurrent use; observers run without the lock held.
type Session struct {
	id           string
	transport    Transport
	model        string
	systemPrompt string
	observer     func(Update)

	mu        sync.Mutex
	fsm       *stateless.StateMachine
	messages  []Message
	reply     strings.Builder
	lastError string
}

// New creates an idle, empty Session dispatching through t.
func New(t Transport, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		transport: t,
		model:     "llama2",
		fsm:       newStateMachine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit sends text as a new user turn and streams the reply into an
// assistant placeholder. It returns false without touching the session when
// text is blank or another exchange is in flight; otherwise it blocks until
// the exchange completes or fails and returns true.
func (s *Session) Submit(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.stateLocked() != StateIdle {
		s.mu.Unlock()
		logger.L.Debug("submit ignored, exchange in flight", "session", s.id)
		return false
	}

	user := newMessage(RoleUser, text)
	s.messages = append(s.messages, user)
	s.lastError = ""
	req := s.requestLocked()

	placeholder := newMessage(RoleAssistant, "")
	s.messages = append(s.messages, placeholder)
	s.reply.Reset()
	s.fireLocked(triggerSubmit)
	s.mu.Unlock()

	s.notify(
		Update{Kind: UpdateMessageAdded, Message: user},
		Update{Kind: UpdateMessageAdded, Message: placeholder},
	)

	logger.L.Debug("dispatching chat request", "session", s.id, "model", req.Model, "turns", len(req.Messages))
	if err := s.transport.Chat(ctx, req, s.OnEvent); err != nil {
		s.OnStreamError(err)
	} else {
		s.OnStreamComplete()
	}
	return true
}

// requestLocked snapshots the conversation as wire turns.
func (s *Session) requestLocked() Request {
	turns := make([]Turn, 0, len(s.messages)+1)
	if s.systemPrompt != "" {
		turns = append(turns, Turn{Role: string(RoleSystem), Content: s.systemPrompt})
	}
	for _, m := range s.messages {
		turns = append(turns, Turn{Role: string(m.Role), Content: m.Content})
	}
	return Request{Model: s.model, Messages: turns}
}

// OnEvent appends the event's text fragment to the open assistant message.
// Events arriving while no exchange is open are dropped.
func (s *Session) OnEvent(ev stream.Event) {
	s.mu.Lock()
	state := s.stateLocked()
	if state == StateIdle {
		s.mu.Unlock()
		logger.L.Debug("stream event without open exchange", "session", s.id)
		return
	}
	if state == StateSubmitting {
		s.fireLocked(triggerReceive)
	}

	frag := ev.Fragment()
	if frag == "" {
		s.mu.Unlock()
		return
	}
	last := len(s.messages) - 1
	s.reply.WriteString(frag)
	s.messages[last].Content = s.reply.String()
	msg := s.messages[last]
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateFragment, Message: msg, Fragment: frag})
}

// OnStreamError ends the exchange and removes the unfinished assistant
// message, so a failed reply never stays on screen half written or empty.
func (s *Session) OnStreamError(err error) {
	s.mu.Lock()
	if s.stateLocked() == StateIdle {
		s.mu.Unlock()
		return
	}
	s.fireLocked(triggerFail)
	s.lastError = ErrorText

	var removed Message
	if last := len(s.messages) - 1; last >= 0 && s.messages[last].Role == RoleAssistant {
		removed = s.messages[last]
		s.messages = s.messages[:last]
	}
	s.reply.Reset()
	s.mu.Unlock()

	logger.L.Error("chat exchange failed", "session", s.id, "error", err)
	updates := []Update{}
	if removed.ID != "" {
		updates = append(updates, Update{Kind: UpdateMessageRemoved, Message: removed})
	}
	updates = append(updates, Update{Kind: UpdateExchangeFailed, Err: err})
	s.notify(updates...)
}

// OnStreamComplete ends the exchange; the accumulated reply stands as final.
func (s *Session) OnStreamComplete() {
	s.mu.Lock()
	if s.stateLocked() == StateIdle {
		s.mu.Unlock()
		return
	}
	s.fireLocked(triggerComplete)
	var final Message
	if n := len(s.messages); n > 0 {
		final = s.messages[n-1]
	}
	s.reply.Reset()
	s.mu.Unlock()

	logger.L.Debug("chat exchange completed", "session", s.id, "chars", len(final.Content))
	s.notify(Update{Kind: UpdateExchangeCompleted, Message: final})
}

// Clear empties the conversation and the last error. It fails with ErrBusy
// while an exchange is in flight and leaves the session untouched.
func (s *Session) Clear() error {
	s.mu.Lock()
	if s.stateLocked() != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.fireLocked(triggerClear)
	s.messages = nil
	s.lastError = ""
	s.mu.Unlock()

	s.notify(Update{Kind: UpdateCleared})
	return nil
}

// SetModel selects the model used by the next Submit.
func (s *Session) SetModel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyModel
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stateLocked() != StateIdle {
		return ErrBusy
	}
	s.model = name
	return nil
}

// ID identifies the session in logs and the transcript store.
func (s *Session) ID() string { return s.id }

// Model returns the selected model.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Messages returns a copy of the conversation in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Loading reports whether an exchange is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked() != StateIdle
}

// LastError returns the user-facing error of the last failed exchange, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// State returns the current exchange state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return s.fsm.MustState().(State)
}

func (s *Session) fireLocked(t trigger) {
	if err := s.fsm.Fire(t); err != nil {
		logger.L.Error("session state machine rejected trigger", "session", s.id, "trigger", t, "error", err)
	}
}

func (s *Session) notify(updates ...Update) {
	if s.observer == nil {
		return
	}
	for _, u := range updates {
		s.observer(u)
	}
}
