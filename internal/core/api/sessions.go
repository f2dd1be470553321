package api

import (
	"context"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/events"
	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/idgen"
	"github.com/solatis/mediafilter/internal/types"
)

func defaultSessionID() (types.SessionID, error) {
	return idgen.NewSessionID()
}

// datasetSink persists what one session's store pushes.
type datasetSink struct {
	svc       *FilterService
	tenantID  types.TenantID
	datasetID types.DatasetID
	sessionID types.SessionID
}

func (d *datasetSink) SetFilterOptions(ctx context.Context, options types.FilterOptions) error {
	return d.svc.commit(ctx, d.tenantID, d.datasetID, options, d.sessionID)
}

// commit stores a dataset's new committed filter and announces it.
// The database is the source of truth: a failed publish is logged, not
// returned.
func (s *FilterService) commit(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions, origin types.SessionID) error {
	if err := s.repo.SaveFilterOptions(ctx, tenantID, datasetID, options); err != nil {
		return err
	}

	event := events.FilterUpdated{
		TenantID:       tenantID,
		DatasetID:      datasetID,
		Filter:         options,
		OriginSession:  origin,
		OriginInstance: s.instanceID,
	}
	if err := s.publisher.Publish(ctx, events.TopicFilterUpdated, event); err != nil {
		s.logger.Warn("failed to publish filter update",
			zap.String("dataset_id", string(datasetID)),
			zap.Error(err))
	}
	return nil
}

// fanOut pulls a new committed filter into every other open session of
// the dataset. Runs outside any store lock.
func (s *FilterService) fanOut(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions, origin types.SessionID) {
	for _, session := range s.engine.SessionsForDataset(tenantID, datasetID) {
		if session.ID == origin {
			continue
		}
		if _, err := session.Store.SyncExternal(ctx, options); err != nil {
			s.logger.Warn("failed to sync session with committed filter",
				zap.String("session_id", string(session.ID)),
				zap.Error(err))
		}
	}
}

// sessionFor returns the caller's session; sessions of other tenants are
// reported as unknown.
func (s *FilterService) sessionFor(ctx context.Context, id types.SessionID) (*filter.Session, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, errMissingTenant
	}
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId required")
	}
	session, err := s.engine.Session(id)
	if err != nil {
		return nil, toStatus(err)
	}
	if session.TenantID != tenantID {
		return nil, toStatus(types.ErrUnknownSession)
	}
	return session, nil
}

func draftResponse(session *filter.Session) DraftResponse {
	snap := session.Store.Snapshot()
	return DraftResponse{
		SessionID:      session.ID,
		Filter:         snap.Draft,
		Committed:      snap.External,
		ValidRules:     snap.ValidRules,
		InvalidRuleIDs: filter.InvalidRules(snap.Draft.Rules),
		WriteState:     snap.LastWrite.String(),
	}
}

// OpenSession seeds a new draft from the dataset's committed filter.
func (s *FilterService) OpenSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return nil, errMissingTenant
	}

	var req OpenSessionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	if req.DatasetID == "" {
		return nil, status.Error(codes.InvalidArgument, "datasetId required")
	}

	committed, err := s.repo.GetFilterOptions(ctx, tenantID, req.DatasetID)
	if err != nil {
		return nil, toStatus(err)
	}

	id, err := s.newID()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	sink := &datasetSink{svc: s, tenantID: tenantID, datasetID: req.DatasetID, sessionID: id}

	session, err := s.engine.Open(id, tenantID, req.DatasetID, committed, sink)
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("filter session opened",
		zap.String("session_id", string(id)),
		zap.String("tenant_id", string(tenantID)),
		zap.String("dataset_id", string(req.DatasetID)))

	return encodeResponse(draftResponse(session))
}

// toAction converts the wire action to a reducer action.
func toAction(msg ActionMessage) (filter.Action, error) {
	actionType, err := filter.ParseActionType(msg.Type)
	if err != nil {
		return filter.Action{}, err
	}

	switch actionType {
	case filter.ActionAdd:
		return filter.Add(), nil
	case filter.ActionUpdate:
		if msg.ID == "" || msg.Rule == nil {
			return filter.Action{}, fmt.Errorf("%w: UPDATE needs id and rule", types.ErrInvalidRequest)
		}
		return filter.Update(msg.ID, *msg.Rule), nil
	case filter.ActionRemove:
		if msg.ID == "" {
			return filter.Action{}, fmt.Errorf("%w: REMOVE needs id", types.ErrInvalidRequest)
		}
		return filter.Remove(msg.ID), nil
	case filter.ActionUpdateAll:
		if msg.Filter == nil {
			return filter.Action{}, fmt.Errorf("%w: UPDATE_ALL needs filter", types.ErrInvalidRequest)
		}
		if c := msg.Filter.Condition; c != types.ConditionUnset && !c.Valid() {
			return filter.Action{}, fmt.Errorf("%w: %q", types.ErrInvalidCondition, c)
		}
		return filter.UpdateAll(*msg.Filter), nil
	default:
		return filter.RemoveAll(), nil
	}
}

// Dispatch applies one row-level edit to a session's draft.
// Invalid rows are reported, never rejected: the draft is a work in progress.
func (s *FilterService) Dispatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DispatchRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	session, err := s.sessionFor(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	action, err := toAction(req.Action)
	if err != nil {
		return nil, toStatus(err)
	}

	before := session.Store.External()
	if _, err := session.Store.Dispatch(ctx, action); err != nil {
		s.logger.Error("filter push failed",
			zap.String("session_id", string(session.ID)),
			zap.String("action", action.Type.String()),
			zap.Error(err))
		return nil, toStatus(err)
	}

	if after := session.Store.External(); !cmp.Equal(before, after) {
		s.fanOut(ctx, session.TenantID, session.DatasetID, after, session.ID)
	}

	return encodeResponse(draftResponse(session))
}

// CloseSession discards a session's draft.
func (s *FilterService) CloseSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SessionRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	session, err := s.sessionFor(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.engine.Close(session.ID); err != nil {
		return nil, toStatus(err)
	}

	s.logger.Info("filter session closed", zap.String("session_id", string(session.ID)))
	return &structpb.Struct{}, nil
}
