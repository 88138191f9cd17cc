package inference

import (
	"context"
	"errors"

	"github.com/lumen-ed/compass/pkg/featurestore"
	"github.com/lumen-ed/compass/pkg/fusion"
	"github.com/lumen-ed/compass/pkg/model"
	"github.com/lumen-ed/compass/pkg/ratelimit"
	"github.com/lumen-ed/compass/pkg/skills"
)

// Categorize maps a pipeline error onto the shared metrics and batch-result
// vocabulary. Deadline and cancellation are checked first so a timeout
// wrapped inside an upstream error still reports as deadline_exceeded.
func Categorize(err error) skills.ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return skills.CategoryDeadlineExceeded
	case model.IsFeatureShapeError(err):
		return skills.CategoryFeatureShape
	case model.IsArtifactIntegrityError(err):
		return skills.CategoryArtifactIntegrity
	case featurestore.IsUpstreamError(err), IsMissingRecordError(err):
		return skills.CategoryUpstreamUnavailable
	case model.IsPredictionError(err):
		return skills.CategoryPredictionFailure
	case fusion.IsInvalidConfigError(err):
		return skills.CategoryInvalidConfig
	case ratelimit.IsRateLimitError(err):
		return skills.CategoryRateLimited
	default:
		return skills.CategoryInternal
	}
}
