package chat

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"site-server/internal/responder"
)

var (
	ErrEmptyMessage = errors.New("message is required")
	ErrReplyPending = errors.New("a reply is still pending")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation. It is never modified after it is
// appended.
type Message struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	Role         Role      `json:"role"`
	Timestamp    time.Time `json:"timestamp"`
	QuickReplies []string  `json:"quickReplies,omitempty"`
}

// Turn describes a delivered assistant reply.
type Turn struct {
	SessionID string
	Input     string
	Previous  responder.Topic
	Reply     responder.Reply
	Message   Message
}

// Options tune a Session. Zero values pick the defaults.
type Options struct {
	// Delay returns how long to wait before posting each reply.
	Delay func() time.Duration
	Now   func() time.Time
	// OnTurn is called after every delivered reply, outside the session lock.
	OnTurn func(Turn)
}

// RandomDelay returns a delay function uniform over [lo, hi].
func RandomDelay(lo, hi time.Duration) func() time.Duration {
	if hi <= lo {
		return func() time.Duration { return lo }
	}
	return func() time.Duration {
		return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
	}
}

// State is a point-in-time copy of a session.
type State struct {
	ID            string          `json:"sessionId"`
	Open          bool            `json:"open"`
	Topic         responder.Topic `json:"topic"`
	AwaitingReply bool            `json:"awaitingReply"`
	Messages      []Message       `json:"messages"`
}

// Session holds the conversation of one chat widget.
type Session struct {
	id     string
	engine *responder.Engine
	opts   Options

	mu       sync.Mutex
	messages []Message
	topic    responder.Topic
	awaiting bool
	open     bool
	seq      uint64
}

func NewSession(id string, engine *responder.Engine, opts Options) *Session {
	if engine == nil {
		engine = responder.NewEngine(nil)
	}
	if opts.Delay == nil {
		opts.Delay = RandomDelay(time.Second, 2*time.Second)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{id: id, engine: engine, opts: opts}
}

func (s *Session) ID() string { return s.id }

// Submit appends the user's message and schedules the assistant reply. The
// returned channel yields the reply once it has been appended. A scheduled
// reply is never cancelled.
func (s *Session) Submit(text string) (Message, <-chan Message, error) {
	normalized := responder.Normalize(text)
	if strings.TrimSpace(normalized) == "" {
		return Message{}, nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.awaiting {
		s.mu.Unlock()
		return Message{}, nil, ErrReplyPending
	}
	msg := s.newMessageLocked(RoleUser, text, nil)
	s.messages = append(s.messages, msg)
	s.awaiting = true
	s.mu.Unlock()

	done := make(chan Message, 1)
	time.AfterFunc(s.opts.Delay(), func() {
		s.deliver(text, normalized, done)
	})
	return msg, done, nil
}

// QuickReply behaves exactly like typing label and submitting it.
func (s *Session) QuickReply(label string) (Message, <-chan Message, error) {
	return s.Submit(label)
}

func (s *Session) deliver(input, normalized string, done chan<- Message) {
	s.mu.Lock()
	previous := s.topic
	reply := s.engine.Respond(normalized, previous)
	msg := s.newMessageLocked(RoleAssistant, reply.Text, reply.QuickReplies)
	s.messages = append(s.messages, msg)
	s.topic = reply.Topic
	s.awaiting = false
	s.mu.Unlock()

	done <- msg
	close(done)

	if s.opts.OnTurn != nil {
		s.opts.OnTurn(Turn{SessionID: s.id, Input: input, Previous: previous, Reply: reply, Message: msg})
	}
}

func (s *Session) newMessageLocked(role Role, content string, quickReplies []string) Message {
	s.seq++
	now := s.opts.Now()
	return Message{
		ID:           fmt.Sprintf("%d-%d", now.UnixMilli(), s.seq),
		Content:      content,
		Role:         role,
		Timestamp:    now,
		QuickReplies: quickReplies,
	}
}

// SetOpen records the widget's visibility. Closing does not affect pending
// replies.
func (s *Session) SetOpen(open bool) {
	s.mu.Lock()
	s.open = open
	s.mu.Unlock()
}

// Toggle flips the widget's visibility and returns the new state.
func (s *Session) Toggle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = !s.open
	return s.open
}

func (s *Session) Topic() responder.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topic
}

func (s *Session) AwaitingReply() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// Messages returns the conversation in display order.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	return State{
		ID:            s.id,
		Open:          s.open,
		Topic:         s.topic,
		AwaitingReply: s.awaiting,
		Messages:      msgs,
	}
}
