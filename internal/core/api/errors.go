package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/mediafilter/internal/types"
)

// Error mapping:
//   validation errors   -> INVALID_ARGUMENT
//   unknown session     -> NOT_FOUND
//   session cap         -> RESOURCE_EXHAUSTED
//   context timeouts    -> DEADLINE_EXCEEDED
//   everything else (database, sink) -> UNAVAILABLE
// Auth errors are mapped in the auth package interceptor.

var errMissingTenant = status.Error(codes.Internal, "missing tenant_id in context")

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, types.ErrUnknownField),
		errors.Is(err, types.ErrInvalidOperator),
		errors.Is(err, types.ErrInvalidValue),
		errors.Is(err, types.ErrTooManyInValues),
		errors.Is(err, types.ErrInvalidCondition),
		errors.Is(err, types.ErrUnsupportedValue),
		errors.Is(err, types.ErrUnknownAction),
		errors.Is(err, types.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, types.ErrUnknownSession):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrTooManySessions):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
