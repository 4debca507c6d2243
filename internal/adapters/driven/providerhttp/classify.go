package providerhttp

import (
	"context"
	"errors"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// Classify maps an SDK error onto the provider error taxonomy.
//
// status is the HTTP status the SDK reported, or 0 when the call never got a
// response. Cancellation passes through untouched. Deadline expiry and
// transport failures are retrievable.
func Classify(op string, err error, status int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if domain.IsRetrievable(err) || domain.IsFatal(err) {
		return err
	}
	if status == 0 || errors.Is(err, context.DeadlineExceeded) {
		return domain.Retrievable(op, err)
	}
	return domain.ClassifyHTTPStatus(op, status, Truncate(err.Error()))
}
