package api

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/core/config"
	"github.com/solatis/mediafilter/internal/events"
	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/types"
)

const (
	testTenant  types.TenantID  = "tenant-1"
	testDataset types.DatasetID = "dataset-1"
)

type datasetKey struct {
	tenant  types.TenantID
	dataset types.DatasetID
}

// memoryRepo is an in-memory Repository.
type memoryRepo struct {
	mu      sync.Mutex
	filters map[datasetKey]types.FilterOptions
	media   map[types.TenantID][]types.Media
	saves   int
	saveErr error
	nextID  int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		filters: make(map[datasetKey]types.FilterOptions),
		media:   make(map[types.TenantID][]types.Media),
	}
}

func (r *memoryRepo) GetFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID) (types.FilterOptions, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters[datasetKey{tenantID, datasetID}].Clone(), nil
}

func (r *memoryRepo) SaveFilterOptions(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, options types.FilterOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.filters[datasetKey{tenantID, datasetID}] = options.Clone()
	return nil
}

func (r *memoryRepo) InsertMedia(ctx context.Context, tenantID types.TenantID, m types.Media) (types.MediaID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == "" {
		r.nextID++
		m.ID = types.MediaID(fmt.Sprintf("media-%03d", r.nextID))
	}
	r.media[tenantID] = append(r.media[tenantID], m)
	return m.ID, nil
}

func (r *memoryRepo) ListMedia(ctx context.Context, tenantID types.TenantID, datasetID types.DatasetID, after types.MediaID, limit int) ([]types.Media, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Media
	for _, m := range r.media[tenantID] {
		if m.DatasetID == datasetID && m.ID > after {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) committed(datasetID types.DatasetID) types.FilterOptions {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters[datasetKey{testTenant, datasetID}]
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.FilterUpdated
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event.(events.FilterUpdated))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []events.FilterUpdated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.FilterUpdated(nil), p.events...)
}

func seqRuleIDs() types.IDProvider {
	n := 0
	return types.IDProviderFunc(func() types.RuleID {
		n++
		return types.RuleID(fmt.Sprintf("rule-%d", n))
	})
}

func newTestService(t *testing.T) (*FilterService, *memoryRepo, *recordingPublisher) {
	t.Helper()
	engine := filter.NewEngine(10, nil)
	engine.SetIDProvider(seqRuleIDs())
	repo := newMemoryRepo()
	pub := &recordingPublisher{}
	cfg := &config.FilterAPIConfig{MaxMediaPage: 2}

	svc, err := NewFilterService(engine, repo, pub, cfg, nil)
	if err != nil {
		t.Fatalf("NewFilterService: %v", err)
	}
	n := 0
	svc.newID = func() (types.SessionID, error) {
		n++
		return types.SessionID(fmt.Sprintf("fs-%d", n)), nil
	}
	return svc, repo, pub
}

func tenantCtx() context.Context {
	return auth.WithTenantID(context.Background(), testTenant)
}

type handler func(context.Context, *structpb.Struct) (*structpb.Struct, error)

// invoke encodes req, calls h and decodes the response into resp.
func invoke(t *testing.T, ctx context.Context, h handler, req, resp interface{}) error {
	t.Helper()
	in, err := EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	out, err := h(ctx, in)
	if err != nil {
		return err
	}
	if resp != nil {
		if err := DecodeResponse(out, resp); err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
	}
	return nil
}

func mustInvoke(t *testing.T, h handler, req, resp interface{}) {
	t.Helper()
	if err := invoke(t, tenantCtx(), h, req, resp); err != nil {
		t.Fatalf("call failed: %v", err)
	}
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if status.Code(err) != code {
		t.Errorf("code = %v (%v), want %v", status.Code(err), err, code)
	}
}

func widthRule(op types.Operator, n float64) types.FilterRule {
	return types.FilterRule{Field: types.FieldMediaWidth, Operator: op, Value: types.NumberValue(n)}
}

func openSession(t *testing.T, svc *FilterService, datasetID types.DatasetID) DraftResponse {
	t.Helper()
	var resp DraftResponse
	mustInvoke(t, svc.OpenSession, OpenSessionRequest{DatasetID: datasetID}, &resp)
	return resp
}

func dispatch(t *testing.T, svc *FilterService, id types.SessionID, action ActionMessage) DraftResponse {
	t.Helper()
	var resp DraftResponse
	mustInvoke(t, svc.Dispatch, DispatchRequest{SessionID: id, Action: action}, &resp)
	return resp
}

func TestNewFilterService_RequiresDependencies(t *testing.T) {
	engine := filter.NewEngine(1, nil)
	cfg := &config.FilterAPIConfig{}
	if _, err := NewFilterService(nil, newMemoryRepo(), nil, cfg, nil); err == nil {
		t.Error("nil engine accepted")
	}
	if _, err := NewFilterService(engine, nil, nil, cfg, nil); err == nil {
		t.Error("nil repo accepted")
	}
	if _, err := NewFilterService(engine, newMemoryRepo(), nil, nil, nil); err == nil {
		t.Error("nil cfg accepted")
	}
}

func TestOpenSession_SeedsDraftFromCommitted(t *testing.T) {
	svc, repo, _ := newTestService(t)
	committed := types.NewFilterOptions(types.FilterRule{ID: "c1", Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(100)})
	repo.filters[datasetKey{testTenant, testDataset}] = committed

	resp := openSession(t, svc, testDataset)

	if resp.SessionID != "fs-1" {
		t.Errorf("SessionID = %q, want fs-1", resp.SessionID)
	}
	if diff := cmp.Diff(committed, resp.Filter); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(committed, resp.Committed); diff != "" {
		t.Errorf("committed mismatch (-want +got):\n%s", diff)
	}
	if resp.WriteState != "idle" {
		t.Errorf("WriteState = %q, want idle", resp.WriteState)
	}
	if repo.saves != 0 {
		t.Errorf("opening a session wrote %d times, want 0", repo.saves)
	}
}

func TestOpenSession_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := invoke(t, tenantCtx(), svc.OpenSession, OpenSessionRequest{}, nil)
	wantCode(t, err, codes.InvalidArgument)

	err = invoke(t, context.Background(), svc.OpenSession, OpenSessionRequest{DatasetID: testDataset}, nil)
	wantCode(t, err, codes.Internal)
}

func TestDispatch_EditLifecycle(t *testing.T) {
	svc, repo, pub := newTestService(t)
	session := openSession(t, svc, testDataset)

	added := dispatch(t, svc, session.SessionID, ActionMessage{Type: "ADD"})
	if len(added.Filter.Rules) != 1 {
		t.Fatalf("rules after ADD = %d, want 1", len(added.Filter.Rules))
	}
	if added.WriteState != "suppressed-after-structural-change" {
		t.Errorf("WriteState after ADD = %q", added.WriteState)
	}
	if repo.saves != 0 {
		t.Errorf("ADD wrote %d times, want 0", repo.saves)
	}

	rule := widthRule(types.OpGreater, 700)
	updated := dispatch(t, svc, session.SessionID, ActionMessage{Type: "UPDATE", ID: "rule-1", Rule: &rule})
	if updated.WriteState != "armed" {
		t.Errorf("WriteState after UPDATE = %q, want armed", updated.WriteState)
	}

	want := types.NewFilterOptions(types.FilterRule{ID: "rule-1", Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(700)})
	if diff := cmp.Diff(want, repo.committed(testDataset)); diff != "" {
		t.Errorf("committed mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, updated.Committed); diff != "" {
		t.Errorf("response committed mismatch (-want +got):\n%s", diff)
	}

	published := pub.published()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	if published[0].OriginSession != session.SessionID || published[0].DatasetID != testDataset {
		t.Errorf("event = %+v", published[0])
	}

	cleared := dispatch(t, svc, session.SessionID, ActionMessage{Type: "REMOVE_ALL"})
	if !cleared.Filter.IsEmpty() {
		t.Errorf("draft after REMOVE_ALL = %+v, want {}", cleared.Filter)
	}
	if !repo.committed(testDataset).IsEmpty() {
		t.Errorf("committed after REMOVE_ALL = %+v, want {}", repo.committed(testDataset))
	}
}

func TestDispatch_FansOutToOtherSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	first := openSession(t, svc, testDataset)
	second := openSession(t, svc, testDataset)
	other := openSession(t, svc, "dataset-2")

	dispatch(t, svc, first.SessionID, ActionMessage{Type: "ADD"})
	rule := widthRule(types.OpLess, 1000)
	dispatch(t, svc, first.SessionID, ActionMessage{Type: "UPDATE", ID: "rule-1", Rule: &rule})

	s2, err := svc.engine.Session(second.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got := s2.Store.Draft(); len(got.Rules) != 1 || got.Rules[0].ID != "rule-1" {
		t.Errorf("second session draft = %+v, want the pushed rule", got)
	}

	s3, err := svc.engine.Session(other.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got := s3.Store.Draft(); !got.IsEmpty() {
		t.Errorf("other dataset draft = %+v, want {}", got)
	}
}

func TestDispatch_ReportsInvalidRules(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := openSession(t, svc, testDataset)

	dispatch(t, svc, session.SessionID, ActionMessage{Type: "ADD"})
	rule := types.FilterRule{Field: types.FieldLabelID, Operator: types.OpGreater, Value: types.ListValue("cat")}
	resp := dispatch(t, svc, session.SessionID, ActionMessage{Type: "UPDATE", ID: "rule-1", Rule: &rule})

	if diff := cmp.Diff([]types.RuleID{"rule-1"}, resp.InvalidRuleIDs); diff != "" {
		t.Errorf("InvalidRuleIDs mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_Errors(t *testing.T) {
	svc, repo, _ := newTestService(t)
	session := openSession(t, svc, testDataset)

	tests := []struct {
		name string
		ctx  context.Context
		req  DispatchRequest
		code codes.Code
	}{
		{"unknown action", tenantCtx(), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "CLEAR"}}, codes.InvalidArgument},
		{"update without rule", tenantCtx(), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "UPDATE", ID: "x"}}, codes.InvalidArgument},
		{"remove without id", tenantCtx(), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "REMOVE"}}, codes.InvalidArgument},
		{"update all without filter", tenantCtx(), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "UPDATE_ALL"}}, codes.InvalidArgument},
		{"update all bad condition", tenantCtx(), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "UPDATE_ALL", Filter: &types.FilterOptions{Condition: "xor", Rules: []types.FilterRule{}}}}, codes.InvalidArgument},
		{"missing session id", tenantCtx(), DispatchRequest{Action: ActionMessage{Type: "ADD"}}, codes.InvalidArgument},
		{"unknown session", tenantCtx(), DispatchRequest{SessionID: "fs-missing", Action: ActionMessage{Type: "ADD"}}, codes.NotFound},
		{"other tenant", auth.WithTenantID(context.Background(), "tenant-2"), DispatchRequest{SessionID: session.SessionID, Action: ActionMessage{Type: "ADD"}}, codes.NotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := invoke(t, tt.ctx, svc.Dispatch, tt.req, nil)
			wantCode(t, err, tt.code)
		})
	}
	if repo.saves != 0 {
		t.Errorf("rejected dispatches wrote %d times", repo.saves)
	}
}

func TestDispatch_PersistFailureKeepsCommitted(t *testing.T) {
	svc, repo, pub := newTestService(t)
	session := openSession(t, svc, testDataset)
	dispatch(t, svc, session.SessionID, ActionMessage{Type: "ADD"})

	repo.saveErr = errors.New("disk full")
	rule := widthRule(types.OpGreater, 1)
	err := invoke(t, tenantCtx(), svc.Dispatch, DispatchRequest{
		SessionID: session.SessionID,
		Action:    ActionMessage{Type: "UPDATE", ID: "rule-1", Rule: &rule},
	}, nil)
	wantCode(t, err, codes.Unavailable)

	s, _ := svc.engine.Session(session.SessionID)
	if !s.Store.External().IsEmpty() {
		t.Errorf("External() = %+v, want {}", s.Store.External())
	}
	if len(pub.published()) != 0 {
		t.Errorf("published %d events after failed save", len(pub.published()))
	}
}

func TestDispatch_PublishFailureIsNotFatal(t *testing.T) {
	svc, repo, pub := newTestService(t)
	pub.err = errors.New("nats down")
	session := openSession(t, svc, testDataset)

	dispatch(t, svc, session.SessionID, ActionMessage{Type: "ADD"})
	rule := widthRule(types.OpGreater, 1)
	dispatch(t, svc, session.SessionID, ActionMessage{Type: "UPDATE", ID: "rule-1", Rule: &rule})

	if len(repo.committed(testDataset).Rules) != 1 {
		t.Errorf("committed = %+v, want one rule", repo.committed(testDataset))
	}
}

func TestCloseSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	session := openSession(t, svc, testDataset)

	mustInvoke(t, svc.CloseSession, SessionRequest{SessionID: session.SessionID}, nil)

	err := invoke(t, tenantCtx(), svc.CloseSession, SessionRequest{SessionID: session.SessionID}, nil)
	wantCode(t, err, codes.NotFound)
	if svc.engine.Len() != 0 {
		t.Errorf("engine holds %d sessions, want 0", svc.engine.Len())
	}
}

func TestSyncFilter_ReplacesSessionDrafts(t *testing.T) {
	svc, repo, pub := newTestService(t)
	session := openSession(t, svc, testDataset)

	search := types.NewFilterOptions(types.FilterRule{ID: "name", Field: types.FieldMediaName, Operator: types.OpEqual, Value: types.StringValue("cat.jpg")})
	var resp FilterResponse
	mustInvoke(t, svc.SyncFilter, SyncFilterRequest{DatasetID: testDataset, Filter: search}, &resp)

	if diff := cmp.Diff(search, repo.committed(testDataset)); diff != "" {
		t.Errorf("committed mismatch (-want +got):\n%s", diff)
	}
	s, _ := svc.engine.Session(session.SessionID)
	if diff := cmp.Diff(search, s.Store.Draft()); diff != "" {
		t.Errorf("draft mismatch (-want +got):\n%s", diff)
	}
	if s.Store.LastWrite() != filter.WriteSuppressed {
		t.Errorf("LastWrite() = %v, want suppressed", s.Store.LastWrite())
	}
	if len(pub.published()) != 1 {
		t.Errorf("published %d events, want 1", len(pub.published()))
	}
}

func TestSyncFilter_ClearedNameSearchClearsFilter(t *testing.T) {
	svc, repo, _ := newTestService(t)
	session := openSession(t, svc, testDataset)

	search := types.NewFilterOptions(types.FilterRule{ID: "name", Field: types.FieldMediaName, Operator: types.OpEqual, Value: types.StringValue("cat.jpg")})
	mustInvoke(t, svc.SyncFilter, SyncFilterRequest{DatasetID: testDataset, Filter: search}, nil)

	cleared := types.NewFilterOptions(types.FilterRule{ID: "name", Field: types.FieldMediaName, Operator: types.OpEqual, Value: types.StringValue("")})
	mustInvoke(t, svc.SyncFilter, SyncFilterRequest{DatasetID: testDataset, Filter: cleared}, nil)

	s, _ := svc.engine.Session(session.SessionID)
	if !s.Store.Draft().IsEmpty() {
		t.Errorf("draft = %+v, want {}", s.Store.Draft())
	}
	if !repo.committed(testDataset).IsEmpty() {
		t.Errorf("committed = %+v, want {}", repo.committed(testDataset))
	}
}

func TestSyncFilter_RejectsInvalidFilter(t *testing.T) {
	svc, repo, _ := newTestService(t)

	bad := types.FilterOptions{Condition: "xor", Rules: []types.FilterRule{widthRule(types.OpGreater, 1)}}
	err := invoke(t, tenantCtx(), svc.SyncFilter, SyncFilterRequest{DatasetID: testDataset, Filter: bad}, nil)
	wantCode(t, err, codes.InvalidArgument)

	err = invoke(t, tenantCtx(), svc.SyncFilter, SyncFilterRequest{Filter: types.FilterOptions{}}, nil)
	wantCode(t, err, codes.InvalidArgument)

	if repo.saves != 0 {
		t.Errorf("rejected sync wrote %d times", repo.saves)
	}
}

func TestQuickRules(t *testing.T) {
	svc, repo, _ := newTestService(t)
	repo.filters[datasetKey{testTenant, testDataset}] = types.FilterOptions{
		Condition: types.ConditionOr,
		Rules: []types.FilterRule{
			{ID: "old-name", Field: types.FieldMediaName, Operator: types.OpNotEqual, Value: types.StringValue("dog.jpg")},
			{ID: "width", Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(100)},
		},
	}

	rule := types.FilterRule{Field: types.FieldMediaName, Operator: types.OpEqual, Value: types.StringValue("cat.jpg")}
	var applied FilterResponse
	mustInvoke(t, svc.ApplyQuickRule, QuickRuleRequest{DatasetID: testDataset, Rule: rule}, &applied)

	if applied.Filter.Condition != types.ConditionAnd {
		t.Errorf("Condition = %q, want and", applied.Filter.Condition)
	}
	if len(applied.Filter.Rules) != 2 || applied.Filter.Rules[0].ID != "width" {
		t.Fatalf("Rules = %+v, want width then the new name rule", applied.Filter.Rules)
	}
	newID := applied.Filter.Rules[1].ID
	if newID == "" || newID == "old-name" {
		t.Errorf("new rule id = %q", newID)
	}

	var removed FilterResponse
	mustInvoke(t, svc.RemoveQuickRule, RemoveQuickRuleRequest{DatasetID: testDataset, RuleID: "width"}, &removed)
	mustInvoke(t, svc.RemoveQuickRule, RemoveQuickRuleRequest{DatasetID: testDataset, RuleID: newID}, &removed)

	if !removed.Filter.IsEmpty() {
		t.Errorf("filter after removing every rule = %+v, want {}", removed.Filter)
	}
	if !repo.committed(testDataset).IsEmpty() {
		t.Errorf("committed = %+v, want {}", repo.committed(testDataset))
	}
}

func TestQuickRules_Errors(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := invoke(t, tenantCtx(), svc.ApplyQuickRule, QuickRuleRequest{DatasetID: testDataset, Rule: types.FilterRule{Field: types.FieldMediaName}}, nil)
	wantCode(t, err, codes.InvalidArgument)

	illegal := types.FilterRule{Field: types.FieldLabelID, Operator: types.OpEqual, Value: types.ListValue("a")}
	err = invoke(t, tenantCtx(), svc.ApplyQuickRule, QuickRuleRequest{DatasetID: testDataset, Rule: illegal}, nil)
	wantCode(t, err, codes.InvalidArgument)

	err = invoke(t, tenantCtx(), svc.RemoveQuickRule, RemoveQuickRuleRequest{DatasetID: testDataset}, nil)
	wantCode(t, err, codes.InvalidArgument)
}

func TestHandleFilterUpdated_SkipsOrigin(t *testing.T) {
	svc, _, _ := newTestService(t)
	origin := openSession(t, svc, testDataset)
	peer := openSession(t, svc, testDataset)

	remote := types.NewFilterOptions(types.FilterRule{ID: "r", Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(5)})
	svc.HandleFilterUpdated(context.Background(), events.FilterUpdated{
		TenantID:      testTenant,
		DatasetID:     testDataset,
		Filter:        remote,
		OriginSession: origin.SessionID,
	})

	o, _ := svc.engine.Session(origin.SessionID)
	if !o.Store.Draft().IsEmpty() {
		t.Errorf("origin draft = %+v, want untouched", o.Store.Draft())
	}
	p, _ := svc.engine.Session(peer.SessionID)
	if diff := cmp.Diff(remote, p.Store.Draft()); diff != "" {
		t.Errorf("peer draft mismatch (-want +got):\n%s", diff)
	}
}
