package fusion

import (
	"errors"
	"fmt"
)

// InvalidConfigError rejects a weight document at the boundary. Field is the
// dotted path of the offending entry, e.g. "weights.empathy.ml_inference".
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid fusion config at %s: %s", e.Field, e.Reason)
}

// IsInvalidConfigError reports whether err is an InvalidConfigError.
func IsInvalidConfigError(err error) bool {
	var invalid *InvalidConfigError
	return errors.As(err, &invalid)
}
