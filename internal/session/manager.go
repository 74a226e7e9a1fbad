package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mbertolli/convopulse/internal/dialogue"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("session not found")
var ErrEnded = errors.New("session has ended")

// Session is the externally visible state of one tracked conversation.
type Session struct {
	ID             string           `json:"session_id"`
	UserID         string           `json:"user_id"`
	Status         Status           `json:"status"`
	Context        dialogue.Context `json:"context"`
	TurnCount      int              `json:"turn_count"`
	StartedAt      time.Time        `json:"started_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

// tracked pairs a session with its tracker. The per-session mutex serializes
// turn ingestion: the tracker core is unsynchronized by design.
type tracked struct {
	mu      sync.Mutex
	session Session
	tracker *dialogue.Tracker
}

// Manager owns all live sessions. Each session gets an independent tracker
// from the injected constructor, so no tracker state is shared between
// conversations.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*tracked
	newTracker        func() *dialogue.Tracker
	inactivityTimeout time.Duration
	onExpire          func(Session)
}

func NewManager(newTracker func() *dialogue.Tracker, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*tracked),
		newTracker:        newTracker,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(userID string) Session {
	now := time.Now().UTC()
	t := &tracked{
		session: Session{
			ID:             uuid.NewString(),
			UserID:         userID,
			Status:         StatusActive,
			Context:        dialogue.ContextGeneral,
			StartedAt:      now,
			LastActivityAt: now,
		},
		tracker: m.newTracker(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[t.session.ID] = t
	return t.session
}

func (m *Manager) Get(sessionID string) (Session, error) {
	t, err := m.lookup(sessionID)
	if err != nil {
		return Session{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session, nil
}

// AddTurn ingests one turn into the session's tracker and returns the fresh
// health snapshot.
func (m *Manager) AddTurn(ctx context.Context, sessionID string, speaker dialogue.Speaker, text string, at time.Time) (dialogue.Snapshot, error) {
	t, err := m.lookup(sessionID)
	if err != nil {
		return dialogue.Snapshot{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session.Status != StatusActive {
		return dialogue.Snapshot{}, ErrEnded
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	snap, err := t.tracker.AddTurnAt(ctx, speaker, text, at)
	if err != nil {
		return dialogue.Snapshot{}, err
	}
	t.session.TurnCount++
	t.session.Context = t.tracker.CurrentContext()
	t.session.LastActivityAt = time.Now().UTC()
	return snap, nil
}

// Latest returns the most recent snapshot for the session, if any turn has
// been ingested.
func (m *Manager) Latest(sessionID string) (dialogue.Snapshot, bool, error) {
	t, err := m.lookup(sessionID)
	if err != nil {
		return dialogue.Snapshot{}, false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.tracker.Latest()
	return snap, ok, nil
}

// Guidance renders coaching text for the session's latest snapshot. Empty
// when there are no alerts (or no turns yet).
func (m *Manager) Guidance(sessionID string) (string, error) {
	t, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, ok := t.tracker.Latest()
	if !ok {
		return "", nil
	}
	return t.tracker.Guidance(snap), nil
}

func (m *Manager) End(sessionID string) (Session, error) {
	t, err := m.lookup(sessionID)
	if err != nil {
		return Session{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.Status = StatusEnded
	t.session.LastActivityAt = time.Now().UTC()
	return t.session, nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, t := range m.sessions {
		t.mu.Lock()
		if t.session.Status == StatusActive {
			count++
		}
		t.mu.Unlock()
	}
	return count
}

// StartJanitor expires sessions with no activity past the inactivity
// timeout. Expired and ended sessions are dropped from the registry; their
// window and latest snapshot go with them.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []Session

	m.mu.Lock()
	for id, t := range m.sessions {
		t.mu.Lock()
		if t.session.Status == StatusEnded {
			delete(m.sessions, id)
			t.mu.Unlock()
			continue
		}
		if now.Sub(t.session.LastActivityAt) >= m.inactivityTimeout {
			t.session.Status = StatusEnded
			t.session.LastActivityAt = now
			expired = append(expired, t.session)
			delete(m.sessions, id)
		}
		t.mu.Unlock()
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, s := range expired {
			hook(s)
		}
	}
}

func (m *Manager) lookup(sessionID string) (*tracked, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}
