package analytics

import (
	"github.com/minicrm/backend/internal/domain/shared"
)

var (
	// ErrDataUnavailable means the entity store could not supply the
	// records a metric needs, including a missing subject.
	ErrDataUnavailable = shared.NewDomainError("DATA_UNAVAILABLE", "Metric data unavailable")
	// ErrInvalidMetricKey means the kind/subject combination is not defined
	ErrInvalidMetricKey = shared.NewDomainError("INVALID_METRIC_KEY", "Invalid metric key")
)

// DataUnavailable wraps cause so that errors.Is matches both
// ErrDataUnavailable and the cause.
func DataUnavailable(cause error) error {
	return ErrDataUnavailable.Wrap(cause)
}
