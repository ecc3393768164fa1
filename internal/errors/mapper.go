// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// transient store failures bubble up as Unavailable so the caller
		// (or the queue, for worker jobs) knows a retry may succeed
		return status.Error(codes.Unavailable, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation (self-interaction,
// unparsable ids).
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// NotFound signals that the like/match/block to remove does not exist.
func NotFound(msg string) error {
	return status.Error(codes.NotFound, msg)
}

// RateLimited signals the caller exceeded the sliding-window like limit.
func RateLimited(msg string) error {
	return status.Error(codes.ResourceExhausted, msg)
}

// FailedPrecondition signals a state conflict, e.g. removing a match
// between users who are not matched.
func FailedPrecondition(msg string) error {
	return status.Error(codes.FailedPrecondition, msg)
}

// AlreadyExists creates a gRPC AlreadyExists error.
func AlreadyExists(msg string) error {
	return status.Error(codes.AlreadyExists, msg)
}

// IsCode reports whether err carries the given status code. Used by tests
// and by callers that branch on the failure class.
func IsCode(err error, c codes.Code) bool {
	s, ok := status.FromError(err)
	return ok && s.Code() == c
}
