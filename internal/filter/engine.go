package filter

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/solatis/mediafilter/internal/types"
)

// Session is a live Store bound to the dataset whose filter it edits.
type Session struct {
	ID        types.SessionID
	TenantID  types.TenantID
	DatasetID types.DatasetID
	Store     *Store
}

// Engine is the registry of live filter sessions.
// One session per open filter panel; bounded by maxSessions.
type Engine struct {
	mu          sync.RWMutex
	sessions    map[types.SessionID]*Session
	maxSessions int
	ids         types.IDProvider
	logger      *zap.Logger
}

// NewEngine creates an engine holding at most maxSessions drafts.
// maxSessions <= 0 means unbounded.
func NewEngine(maxSessions int, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sessions:    make(map[types.SessionID]*Session),
		maxSessions: maxSessions,
		ids:         types.DefaultIDProvider,
		logger:      logger,
	}
}

// SetIDProvider overrides rule id generation for stores opened afterwards.
func (e *Engine) SetIDProvider(ids types.IDProvider) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ids != nil {
		e.ids = ids
	}
}

// Open seeds a new session from the committed filter of a dataset.
// Returns ErrTooManySessions when the limit is reached.
func (e *Engine) Open(id types.SessionID, tenantID types.TenantID, datasetID types.DatasetID, committed types.FilterOptions, sink Sink) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.sessions[id]; exists {
		return nil, fmt.Errorf("session %s already open", id)
	}
	if e.maxSessions > 0 && len(e.sessions) >= e.maxSessions {
		return nil, types.ErrTooManySessions
	}

	logger := e.logger.With(
		zap.String("session_id", string(id)),
		zap.String("dataset_id", string(datasetID)))

	session := &Session{
		ID:        id,
		TenantID:  tenantID,
		DatasetID: datasetID,
		Store:     NewStore(committed, sink, WithIDProvider(e.ids), WithLogger(logger)),
	}
	e.sessions[id] = session

	logger.Debug("filter session opened", zap.Int("open_sessions", len(e.sessions)))
	return session, nil
}

// Session returns the live session for id.
func (e *Engine) Session(id types.SessionID) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	session, ok := e.sessions[id]
	if !ok {
		return nil, types.ErrUnknownSession
	}
	return session, nil
}

// Close discards the draft of a session.
func (e *Engine) Close(id types.SessionID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[id]; !ok {
		return types.ErrUnknownSession
	}
	delete(e.sessions, id)
	return nil
}

// SessionsForDataset returns every open session editing a dataset's filter.
func (e *Engine) SessionsForDataset(tenantID types.TenantID, datasetID types.DatasetID) []*Session {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []*Session
	for _, s := range e.sessions {
		if s.TenantID == tenantID && s.DatasetID == datasetID {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of open sessions.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}
