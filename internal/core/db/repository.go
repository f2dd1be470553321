package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/mediafilter/internal/types"
)

/*
 * Repository persists committed filters and the media catalog.
 *
 * A dataset's committed filter is stored as FilterOptions JSON so {} and
 * {condition, rules: []} survive the round trip. A dataset that never had
 * a filter reads back as {}.
 *
 * Timestamps are stored as RFC3339Nano UTC text on both drivers so media
 * rows scan identically from SQLite and PostgreSQL.
 */

// Querier is the subset of *Queries the repository needs.
type Querier interface {
	ExecContext(ctx context.Context, name string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, name string, dest interface{}, args ...interface{}) error
	SelectContext(ctx context.Context, name string, dest interface{}, args ...interface{}) error
}

// Repository reads and writes filters and media.
type Repository struct {
	q Querier
}

// NewRepository creates a repository over named queries.
func NewRepository(q Querier) *Repository {
	return &Repository{q: q}
}

// GetFilterOptions returns the committed filter of a dataset, {} if none.
func (r *Repository) GetFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID) (types.FilterOptions, error) {
	var raw string
	err := r.q.GetContext(ctx, "get-filter-options", &raw, string(tenantID), string(datasetID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.FilterOptions{}, nil
	}
	if err != nil {
		return types.FilterOptions{}, fmt.Errorf("loading filter for dataset %s: %w", datasetID, err)
	}

	var options types.FilterOptions
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return types.FilterOptions{}, fmt.Errorf("decoding filter for dataset %s: %w", datasetID, err)
	}
	return options, nil
}

// SaveFilterOptions replaces the committed filter of a dataset.
func (r *Repository) SaveFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions) error {
	data, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("encoding filter: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.q.ExecContext(ctx, "upsert-filter-options", string(tenantID), string(datasetID), string(data), now); err != nil {
		return fmt.Errorf("saving filter for dataset %s: %w", datasetID, err)
	}
	return nil
}

// mediaRow is the database shape of types.Media.
type mediaRow struct {
	MediaID     string         `db:"media_id"`
	DatasetID   string         `db:"dataset_id"`
	Name        string         `db:"name"`
	Width       int            `db:"width"`
	Height      int            `db:"height"`
	SceneState  string         `db:"scene_state"`
	UploadedAt  string         `db:"uploaded_at"`
	AnnotatedAt sql.NullString `db:"annotated_at"`
	LabelIDs    string         `db:"label_ids"`
}

func (row mediaRow) toMedia() (types.Media, error) {
	m := types.Media{
		ID:         types.MediaID(row.MediaID),
		DatasetID:  types.DatasetID(row.DatasetID),
		Name:       row.Name,
		Width:      row.Width,
		Height:     row.Height,
		SceneState: types.SceneState(row.SceneState),
	}

	uploaded, err := time.Parse(time.RFC3339Nano, row.UploadedAt)
	if err != nil {
		return types.Media{}, fmt.Errorf("media %s: uploaded_at: %w", row.MediaID, err)
	}
	m.UploadedAt = uploaded

	if row.AnnotatedAt.Valid && row.AnnotatedAt.String != "" {
		annotated, err := time.Parse(time.RFC3339Nano, row.AnnotatedAt.String)
		if err != nil {
			return types.Media{}, fmt.Errorf("media %s: annotated_at: %w", row.MediaID, err)
		}
		m.AnnotatedAt = &annotated
	}

	if err := json.Unmarshal([]byte(row.LabelIDs), &m.LabelIDs); err != nil {
		return types.Media{}, fmt.Errorf("media %s: label_ids: %w", row.MediaID, err)
	}
	return m, nil
}

// InsertMedia stores a media record, assigning an id when m.ID is empty.
func (r *Repository) InsertMedia(ctx context.Context, tenantID types.TenantID, m types.Media) (types.MediaID, error) {
	if m.ID == "" {
		m.ID = types.NewMediaID()
	}
	if m.UploadedAt.IsZero() {
		m.UploadedAt = types.MediaIDTime(m.ID)
	}

	labels := m.LabelIDs
	if labels == nil {
		labels = []string{}
	}
	labelJSON, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("encoding labels: %w", err)
	}

	var annotated sql.NullString
	if m.AnnotatedAt != nil {
		annotated = sql.NullString{String: m.AnnotatedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}

	_, err = r.q.ExecContext(ctx, "insert-media",
		string(m.ID), string(tenantID), string(m.DatasetID), m.Name, m.Width, m.Height,
		string(m.SceneState), m.UploadedAt.UTC().Format(time.RFC3339Nano), annotated, string(labelJSON))
	if err != nil {
		return "", fmt.Errorf("inserting media: %w", err)
	}
	return m.ID, nil
}

// ListMedia returns up to limit media of a dataset with ids after the
// given cursor, in id order. An empty cursor starts at the beginning.
func (r *Repository) ListMedia(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, after types.MediaID, limit int) ([]types.Media, error) {
	var rows []mediaRow
	if err := r.q.SelectContext(ctx, "list-media-after", &rows, string(tenantID), string(datasetID), string(after), limit); err != nil {
		return nil, fmt.Errorf("listing media for dataset %s: %w", datasetID, err)
	}

	out := make([]types.Media, 0, len(rows))
	for _, row := range rows {
		m, err := row.toMedia()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
