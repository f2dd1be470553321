// internal/filter/store.go
package filter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Filter Rule Store: a controlled draft with guarded push.
 *
 * Two named states are kept apart:
 *   - external: the committed FilterOptions owned by the host
 *   - draft:    the editable working copy
 *
 * Pull (external -> draft) happens only through SyncExternal. Push
 * (draft -> external) happens only through reconcile, after a draft change,
 * and only when the derived valid rule set differs from the external rules.
 *
 * Write state machine:
 *
 *   idle --Dispatch(user action)------> armed ------+
 *   idle --Dispatch(ADD)--------------> suppressed -+--reconcile--> idle
 *   idle --SyncExternal(UPDATE_ALL)---> suppressed -+
 *
 * A suppressed change never writes back, so a blank row or a wholesale
 * resync cannot echo into the host. The state always returns to idle after
 * the change, including when the action turned out to be a no-op.
 *
 * All operations serialize on one mutex; the sink is called while it is
 * held so pushes reach the host in draft order.
 */

// WriteState is the push state of a Store.
type WriteState int

const (
	WriteIdle WriteState = iota
	WriteArmed
	WriteSuppressed
)

// String returns the wire name of the write state.
func (w WriteState) String() string {
	switch w {
	case WriteArmed:
		return "armed"
	case WriteSuppressed:
		return "suppressed-after-structural-change"
	default:
		return "idle"
	}
}

// Sink receives reconciled filters pushed out of a Store.
type Sink interface {
	SetFilterOptions(ctx context.Context, options types.FilterOptions) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, options types.FilterOptions) error

// SetFilterOptions implements Sink.
func (f SinkFunc) SetFilterOptions(ctx context.Context, options types.FilterOptions) error {
	return f(ctx, options)
}

// Option configures a Store.
type Option func(*Store)

// WithIDProvider overrides rule id generation.
func WithIDProvider(ids types.IDProvider) Option {
	return func(s *Store) {
		if ids != nil {
			s.ids = ids
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store holds one filter draft and reconciles it against the committed filter.
type Store struct {
	mu       sync.Mutex
	draft    types.FilterOptions
	external types.FilterOptions
	state    WriteState
	last     WriteState
	ids      types.IDProvider
	sink     Sink
	logger   *zap.Logger
}

// NewStore seeds a draft from the committed filter.
// A nil sink discards pushes. Seeding never writes back.
func NewStore(external types.FilterOptions, sink Sink, opts ...Option) *Store {
	s := &Store{
		draft:    external.Clone(),
		external: external.Clone(),
		state:    WriteIdle,
		ids:      types.DefaultIDProvider,
		sink:     sink,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies a user action to the draft and reconciles.
// Returns the new draft. A sink error leaves the committed filter unchanged
// but keeps the edit in the draft.
func (s *Store) Dispatch(ctx context.Context, action Action) (types.FilterOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := WriteArmed
	if action.Type == ActionAdd {
		next = WriteSuppressed
	}
	return s.apply(ctx, action, next)
}

// SyncExternal pulls a changed committed filter into the draft.
//
// Runs only when options differ from the last known committed filter. An
// empty name rule models a cleared name search box and clears the draft
// (keeping unremovable rules); any other change replaces the draft without
// writing back.
func (s *Store) SyncExternal(ctx context.Context, options types.FilterOptions) (types.FilterOptions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cmp.Equal(options, s.external) {
		return s.draft.Clone(), nil
	}
	s.external = options.Clone()

	nameRule, hasName := options.FindRule(types.FieldMediaName)
	if !hasName && cmp.Equal(options, s.draft) {
		return s.draft.Clone(), nil
	}

	if hasName && nameRule.Value.IsEmpty() {
		return s.apply(ctx, RemoveAll(), WriteArmed)
	}

	return s.apply(ctx, UpdateAll(options), WriteSuppressed)
}

// apply runs the reducer and, if the rules changed, reconciles under state ws.
func (s *Store) apply(ctx context.Context, action Action, ws WriteState) (types.FilterOptions, error) {
	prev := s.draft
	s.draft = Reduce(s.draft, action, s.ids)

	if cmp.Equal(prev.Rules, s.draft.Rules) {
		return s.draft.Clone(), nil
	}

	s.state = ws
	err := s.reconcile(ctx, action)
	s.last = ws
	s.state = WriteIdle

	return s.draft.Clone(), err
}

// reconcile pushes the valid rule set when armed and different from the
// committed rules. Clears the committed filter when the draft has no rules.
func (s *Store) reconcile(ctx context.Context, action Action) error {
	if s.state != WriteArmed {
		s.logger.Debug("write-back suppressed",
			zap.String("action", action.Type.String()),
			zap.Int("draft_rules", len(s.draft.Rules)))
		return nil
	}

	valid := GetValidRules(s.draft.Rules)
	if cmp.Equal(valid, s.external.Rules, cmpopts.EquateEmpty()) {
		return nil
	}

	var out types.FilterOptions
	switch {
	case len(valid) > 0:
		out = types.NewFilterOptions(valid...)
	case len(s.draft.Rules) == 0 && !s.external.IsEmpty():
		// A draft with no rules counts as empty even when it still
		// carries a condition, as after REMOVE of the last row.
		out = types.FilterOptions{}
	default:
		return nil
	}

	if s.sink != nil {
		if err := s.sink.SetFilterOptions(ctx, out.Clone()); err != nil {
			return fmt.Errorf("push filter options: %w", err)
		}
	}
	s.external = out

	s.logger.Debug("filter options pushed",
		zap.String("action", action.Type.String()),
		zap.Int("valid_rules", len(out.Rules)))
	return nil
}

// Draft returns a copy of the working draft.
func (s *Store) Draft() types.FilterOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// External returns a copy of the last known committed filter.
func (s *Store) External() types.FilterOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.external.Clone()
}

// ValidRules returns the valid rule set derived from the draft.
func (s *Store) ValidRules() []types.FilterRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return GetValidRules(s.draft.Rules)
}

// WriteState returns the current write state. Outside a change it is idle.
func (s *Store) WriteState() WriteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastWrite returns the write state the most recent draft change was
// reconciled under, or idle if the draft never changed.
func (s *Store) LastWrite() WriteState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Snapshot is a consistent view of a store taken under one lock.
type Snapshot struct {
	Draft      types.FilterOptions
	External   types.FilterOptions
	ValidRules []types.FilterRule
	LastWrite  WriteState
}

// Snapshot returns the draft, the committed filter, the derived valid
// rules and the last write state together.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Draft:      s.draft.Clone(),
		External:   s.external.Clone(),
		ValidRules: GetValidRules(s.draft.Rules),
		LastWrite:  s.last,
	}
}
