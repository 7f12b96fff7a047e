package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// FromAWS wraps an AWS SDK error as an EXTERNAL UnifiedError, keeping the
// service error code in the details so operators can tell throttling from
// validation failures in the logs.
func FromAWS(err error, code, operation string) *UnifiedError {
	if err == nil {
		return nil
	}

	details := err.Error()
	retryable := true

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		details = fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage())
		retryable = apiErr.ErrorFault() != smithy.FaultClient
	}
	if errors.Is(err, context.Canceled) {
		retryable = false
	}

	return External(code, "upstream service call failed").
		WithOperation(operation).
		WithDetails(details).
		WithRetryable(retryable).
		WithCause(err).
		Build()
}
