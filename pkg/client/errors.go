package client

import (
	"fmt"
	"strconv"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/daniel-salmon/distlock/pkg/types"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maps a gRPC status back to the store sentinel it came from so callers can
// use errors.Is, anything else is wrapped unchanged
func fromGRPCError(op, key string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s %q: %w", op, key, err)
	}

	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s %q: %w", op, key, types.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s %q: %w", op, key, types.ErrAlreadyExists)
	case codes.Aborted:
		return fmt.Errorf("%s %q: %w", op, key, unreleasableFromStatus(st))
	default:
		return fmt.Errorf("%s %q: %w", op, key, err)
	}
}

// rebuilds the typed error from the ErrorInfo detail, falling back to the
// status message when the detail is missing
func unreleasableFromStatus(st *status.Status) error {
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetReason() != pb.ReasonStaleClock {
			continue
		}
		expected, err1 := strconv.ParseUint(info.GetMetadata()[pb.MetadataExpectedClock], 10, 64)
		presented, err2 := strconv.ParseUint(info.GetMetadata()[pb.MetadataPresentedClock], 10, 64)
		if err1 != nil || err2 != nil {
			break
		}
		return &types.UnreleasableError{
			Key:       info.GetMetadata()[pb.MetadataKey],
			Expected:  expected,
			Presented: presented,
		}
	}
	return fmt.Errorf("%s: %w", st.Message(), types.ErrUnreleasable)
}
