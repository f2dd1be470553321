package api

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/events"
	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/types"
)

func requireDataset(ctx context.Context, id types.DatasetID) (types.TenantID, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return "", errMissingTenant
	}
	if id == "" {
		return "", status.Error(codes.InvalidArgument, "datasetId required")
	}
	return tenantID, nil
}

// replaceCommitted stores options as the dataset's committed filter and
// pulls it into every open session of the dataset.
func (s *FilterService) replaceCommitted(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions) error {
	if err := s.commit(ctx, tenantID, datasetID, options, ""); err != nil {
		return err
	}
	s.fanOut(ctx, tenantID, datasetID, options, "")
	return nil
}

// SyncFilter replaces a dataset's committed filter from outside any
// session, for example a name search box or a URL.
func (s *FilterService) SyncFilter(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SyncFilterRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	tenantID, err := requireDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if err := filter.ValidateOptions(req.Filter); err != nil {
		return nil, toStatus(err)
	}

	if err := s.replaceCommitted(ctx, tenantID, req.DatasetID, req.Filter); err != nil {
		return nil, toStatus(err)
	}

	s.logger.Debug("committed filter synced",
		zap.String("dataset_id", string(req.DatasetID)),
		zap.Int("rules", len(req.Filter.Rules)))

	return encodeResponse(FilterResponse{DatasetID: req.DatasetID, Filter: req.Filter})
}

// ApplyQuickRule merges one rule into the committed filter, replacing
// rules that share its field or its operator.
func (s *FilterService) ApplyQuickRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QuickRuleRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	tenantID, err := requireDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if filter.IsEmptyRule(req.Rule) {
		return nil, status.Error(codes.InvalidArgument, "rule must have field, operator and value")
	}
	if err := filter.ValidateRule(req.Rule); err != nil {
		return nil, toStatus(err)
	}

	committed, err := s.repo.GetFilterOptions(ctx, tenantID, req.DatasetID)
	if err != nil {
		return nil, toStatus(err)
	}
	next := filter.AddOrUpdateFilterRule(committed, req.Rule, nil)

	if err := s.replaceCommitted(ctx, tenantID, req.DatasetID, next); err != nil {
		return nil, toStatus(err)
	}
	return encodeResponse(FilterResponse{DatasetID: req.DatasetID, Filter: next})
}

// RemoveQuickRule drops one rule from the committed filter. Removing the
// last rule leaves the empty filter.
func (s *FilterService) RemoveQuickRule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RemoveQuickRuleRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	tenantID, err := requireDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	if req.RuleID == "" {
		return nil, status.Error(codes.InvalidArgument, "ruleId required")
	}

	committed, err := s.repo.GetFilterOptions(ctx, tenantID, req.DatasetID)
	if err != nil {
		return nil, toStatus(err)
	}
	next := filter.RemoveRuleByID(committed, req.RuleID)

	if err := s.replaceCommitted(ctx, tenantID, req.DatasetID, next); err != nil {
		return nil, toStatus(err)
	}
	return encodeResponse(FilterResponse{DatasetID: req.DatasetID, Filter: next})
}

// HandleFilterUpdated applies a committed filter change announced by
// another server instance to the local sessions of the dataset.
// Events this instance published itself were fanned out at commit time
// and are dropped; a late echo would roll sessions back past newer commits.
func (s *FilterService) HandleFilterUpdated(ctx context.Context, ev events.FilterUpdated) {
	if ev.OriginInstance == s.instanceID {
		s.logger.Debug("ignoring own filter update",
			zap.String("dataset_id", string(ev.DatasetID)))
		return
	}
	s.logger.Debug("filter update received",
		zap.String("dataset_id", string(ev.DatasetID)),
		zap.String("origin_instance", ev.OriginInstance),
		zap.String("origin_session", string(ev.OriginSession)))
	s.fanOut(ctx, ev.TenantID, ev.DatasetID, ev.Filter, ev.OriginSession)
}
