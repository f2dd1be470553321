// Package api provides the gRPC FilterService implementation.
package api

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/mediafilter/internal/core/config"
	"github.com/solatis/mediafilter/internal/events"
	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/idgen"
	"github.com/solatis/mediafilter/internal/types"
)

// Repository is the persistence the service needs.
// Implemented by *db.Repository.
type Repository interface {
	GetFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID) (types.FilterOptions, error)
	SaveFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions) error
	InsertMedia(ctx context.Context, tenantID types.TenantID, m types.Media) (types.MediaID, error)
	ListMedia(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, after types.MediaID, limit int) ([]types.Media, error)
}

// FilterService implements FilterServiceServer.
// Thin orchestration layer over the session engine, the repository and
// the event publisher.
type FilterService struct {
	engine    *filter.Engine
	repo      Repository
	publisher events.Publisher
	cfg       *config.FilterAPIConfig
	logger    *zap.Logger
	newID     func() (types.SessionID, error)

	// instanceID tags published events so this instance can recognise
	// its own deliveries.
	instanceID string
}

// NewFilterService creates service instance with dependencies.
// A nil publisher disables event publishing.
func NewFilterService(engine *filter.Engine, repo Repository, publisher events.Publisher, cfg *config.FilterAPIConfig, logger *zap.Logger) (*FilterService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if repo == nil {
		return nil, fmt.Errorf("repo cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if publisher == nil {
		publisher = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	instanceID, err := idgen.NewInstanceID()
	if err != nil {
		return nil, err
	}

	return &FilterService{
		engine:    engine,
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		newID:     defaultSessionID,

		instanceID: instanceID,
	}, nil
}

var _ FilterServiceServer = (*FilterService)(nil)
