package scope

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rescape/region-store/internal/model"
)

// Phase is a step of a scope sync.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetchingExisting
	PhaseSkipped
	PhaseMerging
	PhasePersisting
	PhaseDone
	PhaseFailed
	// PhaseRead ends a sync that had no association to upsert.
	PhaseRead
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetchingExisting:
		return "fetching_existing"
	case PhaseSkipped:
		return "skipped"
	case PhaseMerging:
		return "merging"
	case PhasePersisting:
		return "persisting"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseRead:
		return "read"
	default:
		return "unknown"
	}
}

// Identity selects whose aggregate to sync.
type Identity struct {
	UserID model.ID
}

// Resolved reports whether the identity names a user.
func (i Identity) Resolved() bool { return !i.UserID.Empty() }

// AggregateClient fetches and persists user-state aggregates.
type AggregateClient interface {
	// FetchAggregate returns the user's state, nil if the user has none
	// yet, or model.ErrNotReady if the identity cannot be resolved.
	FetchAggregate(ctx context.Context, id Identity) (*model.UserState, error)
	// PersistAggregate replaces the stored aggregate with s and returns
	// the stored copy.
	PersistAggregate(ctx context.Context, s *model.UserState) (*model.UserState, error)
}

// UpsertRequest is one scope sync.
type UpsertRequest struct {
	Identity Identity
	Scope    model.Scope
	// Local is the caller's partial aggregate, if any. Its associations
	// for Scope override the fetched ones.
	Local *model.UserState
	// Submitted is the association to upsert. Nil makes the sync a read.
	Submitted *model.Association
}

// Outcome is the terminal state of a sync.
type Outcome struct {
	Phase Phase
	// Skipped is set when the identity was not ready; UserState is nil.
	Skipped   bool
	UserState *model.UserState
}

// Syncer runs the fetch, merge, persist cycle for scope associations.
type Syncer struct {
	client  AggregateClient
	observe func(Phase)
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithPhaseObserver registers fn to be called on every phase transition.
func WithPhaseObserver(fn func(Phase)) SyncerOption {
	return func(s *Syncer) {
		s.observe = fn
	}
}

// NewSyncer returns a Syncer backed by client.
func NewSyncer(client AggregateClient, opts ...SyncerOption) *Syncer {
	s := &Syncer{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Syncer) enter(log *zap.Logger, p Phase) {
	log.Debug("scope: phase", zap.Stringer("phase", p))
	if s.observe != nil {
		s.observe(p)
	}
}

// Upsert fetches the user's current aggregate, merges the submitted
// association into req.Scope, and persists the merged aggregate. Phases run
// strictly in sequence because the persist replaces the stored aggregate
// wholesale.
func (s *Syncer) Upsert(ctx context.Context, req UpsertRequest) (Outcome, error) {
	log := zap.L().With(
		zap.String("user_id", req.Identity.UserID.String()),
		zap.String("scope", req.Scope.Name),
	)
	s.enter(log, PhaseIdle)

	if req.Submitted != nil && !req.Scope.Valid() {
		return Outcome{Phase: PhaseFailed}, eris.New("scope: unknown scope")
	}

	s.enter(log, PhaseFetchingExisting)
	if !req.Identity.Resolved() {
		s.enter(log, PhaseSkipped)
		return Outcome{Phase: PhaseSkipped, Skipped: true}, nil
	}

	existing, err := s.client.FetchAggregate(ctx, req.Identity)
	if errors.Is(err, model.ErrNotReady) {
		s.enter(log, PhaseSkipped)
		return Outcome{Phase: PhaseSkipped, Skipped: true}, nil
	}
	if err != nil {
		s.enter(log, PhaseFailed)
		return Outcome{Phase: PhaseFailed}, eris.Wrap(err, "scope: fetch user state")
	}

	if req.Submitted == nil {
		s.enter(log, PhaseRead)
		return Outcome{Phase: PhaseRead, UserState: existing}, nil
	}

	s.enter(log, PhaseMerging)
	merged, err := s.merge(req, existing)
	if err != nil {
		s.enter(log, PhaseFailed)
		return Outcome{Phase: PhaseFailed}, err
	}

	s.enter(log, PhasePersisting)
	saved, err := s.client.PersistAggregate(ctx, merged)
	if err != nil {
		s.enter(log, PhaseFailed)
		log.Warn("scope: persist failed", zap.Error(err))
		return Outcome{Phase: PhaseFailed, UserState: merged}, &PersistError{Merged: merged, Err: err}
	}
	if saved == nil {
		saved = merged
	}

	s.enter(log, PhaseDone)
	log.Info("scope: association upserted",
		zap.Int("associations", len(req.Scope.Associations(&saved.Data))),
	)
	return Outcome{Phase: PhaseDone, UserState: saved}, nil
}

// merge builds the aggregate to persist: the fetched aggregate (or a new
// one) with req.Scope's collection replaced by the merged collection.
func (s *Syncer) merge(req UpsertRequest, existing *model.UserState) (*model.UserState, error) {
	var base *model.UserState
	if existing != nil {
		base = existing.Clone()
	} else {
		base = &model.UserState{}
	}
	if base.User.ID.Empty() {
		base.User.ID = req.Identity.UserID
	}

	var local []model.Association
	if req.Local != nil {
		local = req.Scope.Associations(&req.Local.Data)
	}

	merged, err := Merge(
		req.Scope.Associations(&base.Data),
		local,
		[]model.Association{*req.Submitted},
	)
	if err != nil {
		return nil, eris.Wrapf(err, "scope: merge %s", req.Scope.Name)
	}

	req.Scope.SetAssociations(&base.Data, merged)
	return base, nil
}
