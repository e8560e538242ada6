// Package store provides storage backends for IntakePipe.
//
// It persists intake sessions, the conversation flow definition, and finalized
// lead records. Backends: in-memory (tests), SQLite, and PostgreSQL.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/IntakePipe/internal/models"
	"github.com/google/uuid"
)

// Store defines the persistence operations required by the orchestrator.
type Store interface {
	// GetSession retrieves a session by id. Returns (nil, nil) when absent.
	GetSession(sessionID string) (*models.Session, error)
	// SaveSession upserts a session record (merge-on-write semantics).
	SaveSession(session models.Session) error
	// DeleteSession removes a session record.
	DeleteSession(sessionID string) error
	// GetFlowDefinition retrieves the active flow. Returns (nil, nil) when absent.
	GetFlowDefinition() (*models.FlowDefinition, error)
	// SaveFlowDefinition stores the active flow definition.
	SaveFlowDefinition(flow models.FlowDefinition) error
	// SaveLead persists a finalized lead record and returns its id.
	SaveLead(lead models.Lead) (string, error)
	// ListLeads returns up to limit lead records, most recent first.
	ListLeads(limit int) ([]models.Lead, error)
	// Close releases any underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store constructors.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType returns "postgres" for PostgreSQL-style connection strings and
// "sqlite" otherwise (file paths are treated as SQLite databases).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded in-memory Store used in tests and as a
// fallback when no database is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	flow     *models.FlowDefinition
	leads    []models.Lead
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.Session),
	}
}

// GetSession retrieves a session by id.
func (s *InMemoryStore) GetSession(sessionID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	// Copy the responses map so callers cannot mutate stored state.
	copied := sess
	copied.Responses = make(map[string]string, len(sess.Responses))
	for k, v := range sess.Responses {
		copied.Responses[k] = v
	}
	return &copied, nil
}

// SaveSession upserts a session record.
func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := session
	copied.Responses = make(map[string]string, len(session.Responses))
	for k, v := range session.Responses {
		copied.Responses[k] = v
	}
	s.sessions[session.SessionID] = copied
	return nil
}

// DeleteSession removes a session record.
func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// GetFlowDefinition retrieves the active flow definition.
func (s *InMemoryStore) GetFlowDefinition() (*models.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.flow == nil {
		return nil, nil
	}
	copied := *s.flow
	copied.Steps = append([]models.Step(nil), s.flow.Steps...)
	return &copied, nil
}

// SaveFlowDefinition stores the active flow definition.
func (s *InMemoryStore) SaveFlowDefinition(flow models.FlowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := flow
	copied.Steps = append([]models.Step(nil), flow.Steps...)
	s.flow = &copied
	return nil
}

// SaveLead persists a lead record, assigning an id when none is set.
func (s *InMemoryStore) SaveLead(lead models.Lead) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	s.leads = append(s.leads, lead)
	return lead.ID, nil
}

// ListLeads returns up to limit leads, most recent first.
func (s *InMemoryStore) ListLeads(limit int) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := append([]models.Lead(nil), s.leads...)
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
