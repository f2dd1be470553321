package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/solatis/mediafilter/internal/core/api"
	"github.com/solatis/mediafilter/internal/core/auth"
	"github.com/solatis/mediafilter/internal/core/config"
	"github.com/solatis/mediafilter/internal/core/db"
	"github.com/solatis/mediafilter/internal/filter"
	"github.com/solatis/mediafilter/internal/types"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	conn   *grpc.ClientConn
	client *api.FilterServiceClient
	apiKey string
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.DefaultFilterAPIConfig()
	cfg.DataDir = t.TempDir()

	dbURL, err := db.ResolveURL("", cfg.DataDir)
	if err != nil {
		t.Fatalf("ResolveURL: %v", err)
	}
	conn, err := db.Open(dbURL)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}

	authenticator := auth.NewAuthenticator(map[string][]byte{testSecretID: []byte("testsecret1234567890abcdefghijklmnop")}, queries, nil)
	_, apiKey, err := authenticator.IssueAPIKey(context.Background(), "tenant-1", "test", testSecretID)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}

	svc, err := api.NewFilterService(filter.NewEngine(cfg.MaxSessions, nil), db.NewRepository(queries), nil, cfg, nil)
	if err != nil {
		t.Fatalf("NewFilterService: %v", err)
	}
	srv, err := NewGRPCServer(cfg, svc, authenticator, nil)
	if err != nil {
		t.Fatalf("NewGRPCServer: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { cc.Close() })

	return &testEnv{conn: cc, client: api.NewFilterServiceClient(cc), apiKey: apiKey}
}

func (e *testEnv) call(t *testing.T, ctx context.Context, method string, req, resp interface{}) error {
	t.Helper()
	in, err := api.EncodeRequest(req)
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}
	out, err := e.client.Call(ctx, method, in)
	if err != nil {
		return err
	}
	if resp != nil {
		if err := api.DecodeResponse(out, resp); err != nil {
			t.Fatalf("DecodeResponse: %v", err)
		}
	}
	return nil
}

func (e *testEnv) authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", e.apiKey)
}

func TestNewGRPCServer_RequiresDependencies(t *testing.T) {
	if _, err := NewGRPCServer(nil, nil, nil, nil); err == nil {
		t.Error("nil cfg accepted")
	}
	cfg := config.DefaultFilterAPIConfig()
	if _, err := NewGRPCServer(cfg, nil, nil, nil); err == nil {
		t.Error("nil service accepted")
	}
}

func TestGRPCServer_HealthWithoutKey(t *testing.T) {
	env := startTestServer(t)

	resp, err := grpc_health_v1.NewHealthClient(env.conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("Status = %v, want SERVING", resp.Status)
	}
}

func TestGRPCServer_RejectsMissingKey(t *testing.T) {
	env := startTestServer(t)

	err := env.call(t, context.Background(), api.MethodListFields, struct{}{}, nil)
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("code = %v, want Unauthenticated", status.Code(err))
	}
}

func TestGRPCServer_SessionRoundTrip(t *testing.T) {
	env := startTestServer(t)
	ctx := env.authed()

	var opened api.DraftResponse
	if err := env.call(t, ctx, api.MethodOpenSession, api.OpenSessionRequest{DatasetID: "dataset-1"}, &opened); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if !opened.Filter.IsEmpty() {
		t.Errorf("new dataset draft = %+v, want {}", opened.Filter)
	}

	var added api.DraftResponse
	if err := env.call(t, ctx, api.MethodDispatch, api.DispatchRequest{SessionID: opened.SessionID, Action: api.ActionMessage{Type: "ADD"}}, &added); err != nil {
		t.Fatalf("Dispatch(ADD): %v", err)
	}
	if len(added.Filter.Rules) != 1 {
		t.Fatalf("rules after ADD = %d, want 1", len(added.Filter.Rules))
	}

	rule := types.FilterRule{Field: types.FieldMediaWidth, Operator: types.OpGreater, Value: types.NumberValue(100)}
	var updated api.DraftResponse
	err := env.call(t, ctx, api.MethodDispatch, api.DispatchRequest{
		SessionID: opened.SessionID,
		Action:    api.ActionMessage{Type: "UPDATE", ID: added.Filter.Rules[0].ID, Rule: &rule},
	}, &updated)
	if err != nil {
		t.Fatalf("Dispatch(UPDATE): %v", err)
	}
	if len(updated.Committed.Rules) != 1 {
		t.Errorf("committed = %+v, want one rule", updated.Committed)
	}

	// A fresh session reads the persisted filter.
	var reopened api.DraftResponse
	if err := env.call(t, ctx, api.MethodOpenSession, api.OpenSessionRequest{DatasetID: "dataset-1"}, &reopened); err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	if len(reopened.Filter.Rules) != 1 || reopened.Filter.Rules[0].Field != types.FieldMediaWidth {
		t.Errorf("reopened draft = %+v", reopened.Filter)
	}

	if err := env.call(t, ctx, api.MethodCloseSession, api.SessionRequest{SessionID: opened.SessionID}, nil); err != nil {
		t.Fatalf("CloseSession: %v", err)
	}
}

func TestTimeoutInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: api.FullMethod(api.MethodQueryMedia)}
	slow := func(ctx context.Context, req interface{}) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := timeoutInterceptor(10*time.Millisecond)(context.Background(), nil, info, slow)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}

	var hasDeadline bool
	check := func(ctx context.Context, req interface{}) (interface{}, error) {
		_, hasDeadline = ctx.Deadline()
		return nil, nil
	}
	timeoutInterceptor(0)(context.Background(), nil, info, check)
	if hasDeadline {
		t.Error("zero timeout set a deadline")
	}
}
