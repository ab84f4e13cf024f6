package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hupe1980/vecraft"
)

// toStatus maps a DB error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, vecraft.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, vecraft.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, vecraft.ErrAlreadyExists):
		return codes.AlreadyExists
	case errors.Is(err, vecraft.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, vecraft.ErrResourceExhausted):
		return codes.ResourceExhausted
	case errors.Is(err, vecraft.ErrIOFailure), errors.Is(err, vecraft.ErrDegraded), errors.Is(err, vecraft.ErrClosed):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
