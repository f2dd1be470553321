package api

import (
	"testing"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/solatis/mediafilter/internal/types"
)

func addMedia(t *testing.T, svc *FilterService, name string, width int) types.MediaID {
	t.Helper()
	var resp AddMediaResponse
	mustInvoke(t, svc.AddMedia, AddMediaRequest{Media: types.Media{
		DatasetID:  testDataset,
		Name:       name,
		Width:      width,
		Height:     100,
		UploadedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}}, &resp)
	return resp.ID
}

func mediaIDs(media []types.Media) []types.MediaID {
	ids := make([]types.MediaID, 0, len(media))
	for _, m := range media {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestQueryMedia_PagesThroughMatches(t *testing.T) {
	svc, _, _ := newTestService(t)
	addMedia(t, svc, "a.jpg", 1920) // media-001
	addMedia(t, svc, "b.jpg", 640)  // media-002
	addMedia(t, svc, "c.jpg", 800)  // media-003
	addMedia(t, svc, "d.jpg", 300)  // media-004
	addMedia(t, svc, "e.jpg", 1024) // media-005

	wide := types.NewFilterOptions(types.FilterRule{ID: "w", Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(700)})
	mustInvoke(t, svc.SyncFilter, SyncFilterRequest{DatasetID: testDataset, Filter: wide}, nil)

	var first QueryMediaResponse
	mustInvoke(t, svc.QueryMedia, QueryMediaRequest{DatasetID: testDataset}, &first)
	if got := mediaIDs(first.Media); len(got) != 2 || got[0] != "media-001" || got[1] != "media-003" {
		t.Fatalf("first page = %v, want [media-001 media-003]", got)
	}
	if first.NextCursor != "media-003" {
		t.Errorf("NextCursor = %q, want media-003", first.NextCursor)
	}
	if len(first.Filter.Rules) != 1 {
		t.Errorf("response filter = %+v, want the committed filter", first.Filter)
	}

	var second QueryMediaResponse
	mustInvoke(t, svc.QueryMedia, QueryMediaRequest{DatasetID: testDataset, Cursor: first.NextCursor}, &second)
	if got := mediaIDs(second.Media); len(got) != 1 || got[0] != "media-005" {
		t.Fatalf("second page = %v, want [media-005]", got)
	}
	if second.NextCursor != "" {
		t.Errorf("NextCursor = %q, want empty", second.NextCursor)
	}
}

func TestQueryMedia_LimitAndEmptyFilter(t *testing.T) {
	svc, _, _ := newTestService(t)
	addMedia(t, svc, "a.jpg", 10)
	addMedia(t, svc, "b.jpg", 20)
	addMedia(t, svc, "c.jpg", 30)

	var resp QueryMediaResponse
	mustInvoke(t, svc.QueryMedia, QueryMediaRequest{DatasetID: testDataset, Limit: 1}, &resp)

	if got := mediaIDs(resp.Media); len(got) != 1 || got[0] != "media-001" {
		t.Errorf("media = %v, want [media-001]", got)
	}
	if resp.NextCursor != "media-001" {
		t.Errorf("NextCursor = %q, want media-001", resp.NextCursor)
	}
	if !resp.Filter.IsEmpty() {
		t.Errorf("Filter = %+v, want {}", resp.Filter)
	}
}

func TestQueryMedia_NoMedia(t *testing.T) {
	svc, _, _ := newTestService(t)

	var resp QueryMediaResponse
	mustInvoke(t, svc.QueryMedia, QueryMediaRequest{DatasetID: testDataset}, &resp)

	if len(resp.Media) != 0 || resp.NextCursor != "" {
		t.Errorf("resp = %+v, want no media and no cursor", resp)
	}

	err := invoke(t, tenantCtx(), svc.QueryMedia, QueryMediaRequest{}, nil)
	wantCode(t, err, codes.InvalidArgument)
}

func TestAddMedia_Validation(t *testing.T) {
	svc, repo, _ := newTestService(t)
	long := make([]byte, types.MaxMediaNameLength+1)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		media types.Media
	}{
		{"missing dataset", types.Media{Name: "a.jpg"}},
		{"missing name", types.Media{DatasetID: testDataset}},
		{"name too long", types.Media{DatasetID: testDataset, Name: string(long)}},
		{"negative width", types.Media{DatasetID: testDataset, Name: "a.jpg", Width: -1}},
		{"unknown scene state", types.Media{DatasetID: testDataset, Name: "a.jpg", SceneState: "DONE"}},
		{"malformed id", types.Media{ID: "not-a-uuid", DatasetID: testDataset, Name: "a.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := invoke(t, tenantCtx(), svc.AddMedia, AddMediaRequest{Media: tt.media}, nil)
			wantCode(t, err, codes.InvalidArgument)
		})
	}
	if len(repo.media[testTenant]) != 0 {
		t.Errorf("rejected media stored: %d", len(repo.media[testTenant]))
	}
}

func TestAddMedia_DefaultsSceneState(t *testing.T) {
	svc, repo, _ := newTestService(t)

	addMedia(t, svc, "a.jpg", 10)

	stored := repo.media[testTenant]
	if len(stored) != 1 {
		t.Fatalf("stored %d media, want 1", len(stored))
	}
	if stored[0].SceneState != types.SceneNone {
		t.Errorf("SceneState = %q, want NONE", stored[0].SceneState)
	}
}

func TestListFields(t *testing.T) {
	svc, _, _ := newTestService(t)

	var resp ListFieldsResponse
	mustInvoke(t, svc.ListFields, struct{}{}, &resp)

	if resp.MaxRules != types.MaxRules {
		t.Errorf("MaxRules = %d, want %d", resp.MaxRules, types.MaxRules)
	}
	var label *FieldDescriptor
	for i := range resp.Fields {
		if resp.Fields[i].Field == types.FieldLabelID {
			label = &resp.Fields[i]
		}
	}
	if label == nil {
		t.Fatalf("LABEL_ID missing from %+v", resp.Fields)
	}
	if label.Kind != "list" {
		t.Errorf("LABEL_ID kind = %q, want list", label.Kind)
	}
	if len(label.Operators) != 2 || label.Operators[0] != types.OpIn || label.Operators[1] != types.OpNotIn {
		t.Errorf("LABEL_ID operators = %v, want [IN NOT_IN]", label.Operators)
	}
}
