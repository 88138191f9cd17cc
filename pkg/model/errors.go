package model

import (
	"errors"
	"fmt"
)

// FeatureShapeError means a feature vector did not match the manifest
// length for the skill. Never recovered locally.
type FeatureShapeError struct {
	Skill string
	Want  int
	Got   int
}

func (e *FeatureShapeError) Error() string {
	return fmt.Sprintf("feature vector for %s has %d values, manifest requires %d", e.Skill, e.Got, e.Want)
}

// IsFeatureShapeError reports whether err is a FeatureShapeError.
func IsFeatureShapeError(err error) bool {
	var shape *FeatureShapeError
	return errors.As(err, &shape)
}

// ArtifactIntegrityError means an artifact's content hash did not match
// the recorded hash in the manifest index. Startup must abort.
type ArtifactIntegrityError struct {
	Skill string
	Path  string
	Want  string
	Got   string
}

func (e *ArtifactIntegrityError) Error() string {
	return fmt.Sprintf("artifact %s for %s failed integrity check: recorded sha256 %s, computed %s", e.Path, e.Skill, e.Want, e.Got)
}

// IsArtifactIntegrityError reports whether err is an ArtifactIntegrityError.
func IsArtifactIntegrityError(err error) bool {
	var integrity *ArtifactIntegrityError
	return errors.As(err, &integrity)
}

// PredictionError means the predictor itself failed on a structurally
// valid vector (malformed tree, out-of-range node reference).
type PredictionError struct {
	Skill  string
	Reason string
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed for %s: %s", e.Skill, e.Reason)
}

// IsPredictionError reports whether err is a PredictionError.
func IsPredictionError(err error) bool {
	var prediction *PredictionError
	return errors.As(err, &prediction)
}
