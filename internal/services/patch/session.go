package patch

import (
	"fmt"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/patchlink/patchlink-go/internal/fixture"
	"github.com/patchlink/patchlink-go/internal/services/match"
)

// Session is one in-flight patch analysis: the fixtures imported from
// a single source file plus the registry and selections they are
// analyzed against. Sessions are independent of each other; the shared
// profile library is only ever read.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"` // mvr, csv, ma3
	CreatedAt time.Time `json:"createdAt"`

	Fixtures *fixture.Collection `json:"-"`
	Registry *match.Registry     `json:"-"`

	// Selections maps a declared fixture type to the attributes chosen
	// for addressing and sequencing.
	Selections    map[string][]string `json:"selections"`
	SequenceStart int                 `json:"sequenceStart"`

	mu sync.Mutex
}

// Lock serializes operations mutating the session's fixtures.
func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Store holds live sessions keyed by id.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session over the imported fixtures. registry
// should already include any profiles embedded in the source file.
func (st *Store) Create(name, source string, raws []fixture.RawFixture, registry *match.Registry, sequenceStart int) *Session {
	coll := fixture.NewCollection()
	for _, r := range raws {
		coll.Add(fixture.FromRaw(r))
	}
	s := &Session{
		ID:            cuid.New(),
		Name:          name,
		Source:        source,
		CreatedAt:     time.Now(),
		Fixtures:      coll,
		Registry:      registry,
		Selections:    make(map[string][]string),
		SequenceStart: sequenceStart,
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return s
}

// Get returns the session or an error naming the missing id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return s, nil
}

// Delete removes a session. Deleting an unknown id is a no-op.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// List returns all live sessions.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	return out
}
