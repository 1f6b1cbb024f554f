package core

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found")

// Phase is the conversation state. Verification is conversationally
// two-step (phone, then ZIP) even though the store is queried once with the
// full pair.
type Phase string

const (
	PhaseStart         Phase = "start"
	PhaseAwaitType     Phase = "await_type"
	PhaseAwaitPhone    Phase = "await_phone"
	PhaseAwaitZip      Phase = "await_zip"
	PhaseAuthenticated Phase = "authenticated"
	PhaseLeadName      Phase = "lead_name"
	PhaseLeadPhone     Phase = "lead_phone"
	PhaseLeadEmail     Phase = "lead_email"
	PhaseLeadComplete  Phase = "lead_complete"
	PhaseConfirmExit   Phase = "confirm_exit"
)

const (
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// Turn is one entry in a session's visible chat log.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// LeadDraft holds new-customer fields as they are collected, one per turn.
type LeadDraft struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Session is the per-conversation state. All mutation happens under mu, one
// turn at a time; nothing in here is shared across sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	phase        Phase
	customerID   *int64
	customerName string
	pendingPhone string
	resumePhase  Phase // phase to return to if an exit is not confirmed
	lead         LeadDraft
	documentText string
	documentName string
	turns        []Turn
}

func (s *Session) appendTurn(speaker, content string) {
	s.turns = append(s.turns, Turn{Speaker: speaker, Content: content, Timestamp: time.Now().UTC()})
}

// Phase returns the current conversation phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Transcript returns a copy of the ordered turn log.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// reset returns the session to its opening state. Caller holds s.mu.
func (s *Session) reset() {
	s.phase = PhaseStart
	s.customerID = nil
	s.customerName = ""
	s.pendingPhone = ""
	s.resumePhase = ""
	s.lead = LeadDraft{}
	s.documentText = ""
	s.documentName = ""
}

// Sessions is the in-memory session registry. Sessions live for the length
// of a conversation and are never persisted.
type Sessions struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func NewSessions() *Sessions {
	return &Sessions{m: make(map[string]*Session)}
}

func (r *Sessions) Create() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		phase:     PhaseStart,
	}
	r.mu.Lock()
	r.m[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.m[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (r *Sessions) Delete(id string) {
	r.mu.Lock()
	delete(r.m, id)
	r.mu.Unlock()
}
