package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/mediafilter/internal/types"
)

// decodeRequest converts a Struct request into dest via its JSON form.
// Malformed requests map to INVALID_ARGUMENT.
func decodeRequest(in *structpb.Struct, dest interface{}) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	data, err := protojson.Marshal(in)
	if err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("malformed request: %v", err))
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return status.Error(codes.InvalidArgument, fmt.Sprintf("malformed request: %v", err))
	}
	return nil
}

// encodeResponse converts src to a Struct via its JSON form.
func encodeResponse(src interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encoding response: %v", err))
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, status.Error(codes.Internal, fmt.Sprintf("encoding response: %v", err))
	}
	return out, nil
}

// EncodeRequest is the client-side counterpart of decodeRequest.
func EncodeRequest(src interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(src)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeResponse is the client-side counterpart of encodeResponse.
func DecodeResponse(in *structpb.Struct, dest interface{}) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Request and response messages.

type OpenSessionRequest struct {
	DatasetID types.DatasetID `json:"datasetId"`
}

type SessionRequest struct {
	SessionID types.SessionID `json:"sessionId"`
}

// ActionMessage is the wire form of a reducer action.
type ActionMessage struct {
	Type   string               `json:"type"`
	ID     types.RuleID         `json:"id,omitempty"`
	Rule   *types.FilterRule    `json:"rule,omitempty"`
	Filter *types.FilterOptions `json:"filter,omitempty"`
}

type DispatchRequest struct {
	SessionID types.SessionID `json:"sessionId"`
	Action    ActionMessage   `json:"action"`
}

// DraftResponse describes a session's draft after a change.
type DraftResponse struct {
	SessionID      types.SessionID     `json:"sessionId"`
	Filter         types.FilterOptions `json:"filter"`
	Committed      types.FilterOptions `json:"committed"`
	ValidRules     []types.FilterRule  `json:"validRules"`
	InvalidRuleIDs []types.RuleID      `json:"invalidRuleIds"`
	WriteState     string              `json:"writeState"`
}

type SyncFilterRequest struct {
	DatasetID types.DatasetID     `json:"datasetId"`
	Filter    types.FilterOptions `json:"filter"`
}

type QuickRuleRequest struct {
	DatasetID types.DatasetID  `json:"datasetId"`
	Rule      types.FilterRule `json:"rule"`
}

type RemoveQuickRuleRequest struct {
	DatasetID types.DatasetID `json:"datasetId"`
	RuleID    types.RuleID    `json:"ruleId"`
}

// FilterResponse carries a dataset's committed filter.
type FilterResponse struct {
	DatasetID types.DatasetID     `json:"datasetId"`
	Filter    types.FilterOptions `json:"filter"`
}

type QueryMediaRequest struct {
	DatasetID types.DatasetID `json:"datasetId"`
	Limit     int             `json:"limit,omitempty"`
	Cursor    types.MediaID   `json:"cursor,omitempty"`
}

type QueryMediaResponse struct {
	Filter     types.FilterOptions `json:"filter"`
	Media      []types.Media       `json:"media"`
	NextCursor types.MediaID       `json:"nextCursor,omitempty"`
}

type AddMediaRequest struct {
	Media types.Media `json:"media"`
}

type AddMediaResponse struct {
	ID types.MediaID `json:"id"`
}

// FieldDescriptor describes one filterable field.
type FieldDescriptor struct {
	Field     types.Field      `json:"field"`
	Kind      string           `json:"kind"`
	Operators []types.Operator `json:"operators"`
}

type ListFieldsResponse struct {
	Fields   []FieldDescriptor `json:"fields"`
	MaxRules int               `json:"maxRules"`
}
