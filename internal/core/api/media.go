package api

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/types"
)

// QueryMedia returns the media of a dataset matching its committed filter.
//
// Media are scanned in id order, one page of MaxMediaPage rows at a time,
// until limit matches are found. NextCursor is set when the scan stopped
// early and resumes right after the last returned item.
func (s *FilterService) QueryMedia(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QueryMediaRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	tenantID, err := requireDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}

	pageSize := s.cfg.MaxMediaPage
	if pageSize <= 0 || pageSize > types.MaxMediaPageSize {
		pageSize = types.MaxMediaPageSize
	}
	limit := req.Limit
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}

	options, err := s.repo.GetFilterOptions(ctx, tenantID, req.DatasetID)
	if err != nil {
		return nil, toStatus(err)
	}
	compiled := filter.Compile(options)

	resp := QueryMediaResponse{Filter: options, Media: []types.Media{}}
	cursor := req.Cursor
	scanned := 0

scan:
	for {
		if err := ctx.Err(); err != nil {
			return nil, toStatus(err)
		}
		page, err := s.repo.ListMedia(ctx, tenantID, req.DatasetID, cursor, pageSize)
		if err != nil {
			return nil, toStatus(err)
		}
		scanned += len(page)

		for i := range page {
			cursor = page[i].ID
			if !compiled.Match(&page[i]) {
				continue
			}
			resp.Media = append(resp.Media, page[i])
			if len(resp.Media) == limit {
				more := i < len(page)-1
				if !more && len(page) == pageSize {
					rest, err := s.repo.ListMedia(ctx, tenantID, req.DatasetID, cursor, 1)
					if err != nil {
						return nil, toStatus(err)
					}
					more = len(rest) > 0
				}
				if more {
					resp.NextCursor = cursor
				}
				break scan
			}
		}
		if len(page) < pageSize {
			break
		}
	}

	s.logger.Debug("media queried",
		zap.String("dataset_id", string(req.DatasetID)),
		zap.Int("scanned", scanned),
		zap.Int("matched", len(resp.Media)))

	return encodeResponse(resp)
}

func validateMedia(m *types.Media) error {
	if m.DatasetID == "" {
		return fmt.Errorf("%w: datasetId required", types.ErrInvalidRequest)
	}
	if m.Name == "" || len(m.Name) > types.MaxMediaNameLength {
		return fmt.Errorf("%w: name must be 1-%d bytes", types.ErrInvalidRequest, types.MaxMediaNameLength)
	}
	if m.Width < 0 || m.Height < 0 {
		return fmt.Errorf("%w: negative dimensions", types.ErrInvalidRequest)
	}
	if m.SceneState == "" {
		m.SceneState = types.SceneNone
	}
	if !slices.Contains(types.SceneStates, m.SceneState) {
		return fmt.Errorf("%w: unknown scene state %q", types.ErrInvalidRequest, m.SceneState)
	}
	if m.ID != "" {
		if _, err := types.ParseMediaID(string(m.ID)); err != nil {
			return fmt.Errorf("%w: media id: %v", types.ErrInvalidRequest, err)
		}
	}
	return nil
}

// AddMedia stores a media record in the caller's catalog.
func (s *FilterService) AddMedia(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req AddMediaRequest
	if err := decodeRequest(in, &req); err != nil {
		return nil, err
	}
	tenantID, err := requireDataset(ctx, req.Media.DatasetID)
	if err != nil {
		return nil, err
	}
	if err := validateMedia(&req.Media); err != nil {
		return nil, toStatus(err)
	}

	id, err := s.repo.InsertMedia(ctx, tenantID, req.Media)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeResponse(AddMediaResponse{ID: id})
}

// ListFields describes the filterable fields and their legal operators.
func (s *FilterService) ListFields(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := filter.Fields()
	resp := ListFieldsResponse{
		Fields:   make([]FieldDescriptor, 0, len(fields)),
		MaxRules: types.MaxRules,
	}
	for _, f := range fields {
		kind, _ := filter.KindOf(f)
		resp.Fields = append(resp.Fields, FieldDescriptor{
			Field:     f,
			Kind:      kind.String(),
			Operators: filter.Operators(f),
		})
	}
	return encodeResponse(resp)
}
