package inference

import (
	"errors"
	"fmt"

	"github.com/lumen-ed/compass/pkg/featurestore"
)

// MissingRecordError means the feature store holds no record of the
// given kind for the student. The store itself was reachable; scoring
// on half the signal is refused rather than silently zero-filled.
type MissingRecordError struct {
	StudentID string
	Kind      featurestore.Kind
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("no %s feature record for student %s", e.Kind, e.StudentID)
}

// IsMissingRecordError reports whether err is a MissingRecordError.
func IsMissingRecordError(err error) bool {
	var missing *MissingRecordError
	return errors.As(err, &missing)
}
