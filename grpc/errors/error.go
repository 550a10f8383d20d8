// Package errors converts gateway failures into gRPC statuses that carry a
// google.rpc.ErrorInfo detail, so clients can tell why a call was refused.
package errors

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rainbow-me/gateway-correlation/correlation"
)

// Domain is the ErrorInfo domain of every status built here.
const Domain = "gateway.correlation"

// Code returns the gRPC code for err.
func Code(err error) codes.Code {
	switch {
	case errors.Is(err, correlation.ErrGeneratorUnavailable):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

// ToStatus converts err into a status error with an ErrorInfo detail. Errors that already
// carry a gRPC status are returned as they are.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := Code(err)
	st := status.New(code, strings.ToLower(code.String()))
	withDetails, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: strings.ToUpper(correlation.FailureReason(err)),
		Domain: Domain,
	})
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}

// Reason extracts the ErrorInfo reason from a status error built by ToStatus.
func Reason(err error) (string, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return "", false
	}
	for _, detail := range st.Details() {
		if info, isInfo := detail.(*errdetails.ErrorInfo); isInfo && info.GetDomain() == Domain {
			return info.GetReason(), true
		}
	}
	return "", false
}
