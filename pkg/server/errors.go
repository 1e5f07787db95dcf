package server

import (
	"errors"
	"strconv"

	pb "github.com/daniel-salmon/distlock/api/v1"
	"github.com/daniel-salmon/distlock/pkg/types"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// converts domain errors to gRPC status errors
func toGRPCError(err error) error {
	if err == nil {
		return nil
	}

	var unreleasable *types.UnreleasableError
	switch {
	case errors.As(err, &unreleasable):
		return unreleasableError(unreleasable)

	case errors.Is(err, types.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, types.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, types.ErrInvalidKey), errors.Is(err, types.ErrInvalidLease):
		return status.Error(codes.InvalidArgument, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// returns an aborted error naming the expected and presented tokens
// the tokens are also attached as ErrorInfo metadata for clients
func unreleasableError(e *types.UnreleasableError) error {
	st := status.New(codes.Aborted, "could not release lock: "+e.Error())

	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: pb.ReasonStaleClock,
		Domain: pb.ErrorDomain,
		Metadata: map[string]string{
			pb.MetadataKey:            e.Key,
			pb.MetadataExpectedClock:  strconv.FormatUint(e.Expected, 10),
			pb.MetadataPresentedClock: strconv.FormatUint(e.Presented, 10),
		},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
