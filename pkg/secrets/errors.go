package secrets

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound signals a secret absent from a source. The resolver treats
// it as "try the next source"; any other error is logged and skipped.
var ErrNotFound = errors.New("secret not found")

// FatalConfigError means required secrets could not be resolved from any
// source. The process cannot serve and should exit non-zero.
type FatalConfigError struct {
	Missing []string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("missing required secrets: %s", strings.Join(e.Missing, ", "))
}

// IsFatalConfigError reports whether err is a FatalConfigError.
func IsFatalConfigError(err error) bool {
	var fatal *FatalConfigError
	return errors.As(err, &fatal)
}
