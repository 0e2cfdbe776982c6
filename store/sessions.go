package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/model"
)

// sessionNamePrefix is the label stem for auto-named sessions.
const sessionNamePrefix = "Basket"

// SessionStore wraps the key/value store with session versioning, naming,
// and quota-exceeded degradation. All read-modify-write sequences are
// serialized through its mutex so the main flow and the detached enricher
// cannot lose each other's updates.
type SessionStore struct {
	kv         KeyValueStore
	sessionCap int

	mutex sync.Mutex
	state model.StoreState
}

// NewSessionStore wires a session store over a backend. sessionCap is the
// number of sessions kept after a quota eviction.
func NewSessionStore(kv KeyValueStore, sessionCap int) *SessionStore {
	if sessionCap <= 0 {
		sessionCap = 10
	}
	return &SessionStore{kv: kv, sessionCap: sessionCap}
}

// Load pulls the persisted state into memory. A missing store is an empty
// state, not an error.
func (s *SessionStore) Load(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loadLocked(ctx)
}

func (s *SessionStore) loadLocked(ctx context.Context) error {
	values, err := s.kv.Get(ctx, []string{KeySessions, KeyCurrentSessionID, KeyLastCleanTime})
	if err != nil {
		return fmt.Errorf("load session state: %w", err)
	}

	state := model.StoreState{}
	if data, ok := values[KeySessions]; ok {
		if err := json.Unmarshal(data, &state.Sessions); err != nil {
			return fmt.Errorf("parse sessions: %w", err)
		}
	}
	if data, ok := values[KeyCurrentSessionID]; ok {
		if err := json.Unmarshal(data, &state.CurrentSessionID); err != nil {
			return fmt.Errorf("parse current session id: %w", err)
		}
	}
	if data, ok := values[KeyLastCleanTime]; ok {
		if err := json.Unmarshal(data, &state.LastCleanTime); err != nil {
			return fmt.Errorf("parse last clean time: %w", err)
		}
	}

	s.state = state
	return nil
}

// CreateSession inserts a new session at the head of the list and makes it
// current. An empty name is auto-generated as the smallest unused label in
// the Basket sequence.
func (s *SessionStore) CreateSession(name string, items []model.CollectionResult) model.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if name == "" {
		name = s.nextNameLocked()
	}

	session := model.Session{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		Items:     items,
		TabCount:  len(items),
	}

	// Newest first.
	s.state.Sessions = append([]model.Session{session}, s.state.Sessions...)
	s.state.CurrentSessionID = session.ID

	log.Info().Str("session_id", session.ID).Str("name", name).Int("items", len(items)).Msg("Created session")
	return session
}

// nextNameLocked picks the smallest unused numeric suffix so labels freed by
// deletion are reused.
func (s *SessionStore) nextNameLocked() string {
	taken := make(map[string]bool, len(s.state.Sessions))
	for _, session := range s.state.Sessions {
		taken[session.Name] = true
	}
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s%d", sessionNamePrefix, n)
		if !taken[name] {
			return name
		}
	}
}

// Save writes the in-memory state atomically. On a quota failure the oldest
// sessions are evicted down to the configured cap and the write is retried
// exactly once; a second failure is propagated.
func (s *SessionStore) Save(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.saveLocked(ctx)
}

func (s *SessionStore) saveLocked(ctx context.Context) error {
	err := s.writeLocked(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	evicted := s.evictLocked()
	log.Warn().Int("evicted", evicted).Int("kept", len(s.state.Sessions)).Msg("Quota exceeded, evicted oldest sessions and retrying")

	if err := s.writeLocked(ctx); err != nil {
		return fmt.Errorf("save after eviction: %w", err)
	}
	return nil
}

func (s *SessionStore) writeLocked(ctx context.Context) error {
	sessions, err := json.Marshal(s.state.Sessions)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	current, err := json.Marshal(s.state.CurrentSessionID)
	if err != nil {
		return fmt.Errorf("marshal current session id: %w", err)
	}
	cleaned, err := json.Marshal(time.Now())
	if err != nil {
		return fmt.Errorf("marshal clean time: %w", err)
	}

	return s.kv.Set(ctx, map[string][]byte{
		KeySessions:         sessions,
		KeyCurrentSessionID: current,
		KeyLastCleanTime:    cleaned,
	})
}

// evictLocked drops the oldest sessions, preserving newest-first order, and
// returns how many were removed.
func (s *SessionStore) evictLocked() int {
	if len(s.state.Sessions) <= s.sessionCap {
		return 0
	}
	evicted := len(s.state.Sessions) - s.sessionCap
	s.state.Sessions = s.state.Sessions[:s.sessionCap]
	return evicted
}

// UpdateSessionItems runs a serialized read-modify-write against the current
// persisted copy of one session. The mutator must touch item embedding
// fields only; it is safe to call repeatedly and out of order because each
// enrichment batch writes disjoint or idempotent values.
func (s *SessionStore) UpdateSessionItems(ctx context.Context, sessionID string, mutate func(*model.Session)) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Re-read so concurrent modification by another writer is merged rather
	// than clobbered.
	if err := s.loadLocked(ctx); err != nil {
		return err
	}

	for i := range s.state.Sessions {
		if s.state.Sessions[i].ID != sessionID {
			continue
		}
		mutate(&s.state.Sessions[i])
		s.state.Sessions[i].TabCount = len(s.state.Sessions[i].Items)
		return s.saveLocked(ctx)
	}
	return fmt.Errorf("session %s not found", sessionID)
}

// Sessions returns a copy of the session list, newest first.
func (s *SessionStore) Sessions() []model.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	out := make([]model.Session, len(s.state.Sessions))
	copy(out, s.state.Sessions)
	return out
}

// CurrentSessionID returns the ID of the session the UI should show.
func (s *SessionStore) CurrentSessionID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.CurrentSessionID
}

// Session returns one session by ID.
func (s *SessionStore) Session(id string) (model.Session, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, session := range s.state.Sessions {
		if session.ID == id {
			return session, true
		}
	}
	return model.Session{}, false
}
