// Package rocchio implements confidence-weighted relevance feedback for user
// profile embeddings, plus the confidence estimation that weights feedback
// signal quality.
package rocchio

import (
	"log/slog"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/pkg/vecmath"
)

// Default blend weights. The base profile dominates so a single noisy
// feedback event cannot swing the profile drastically.
const (
	DefaultAlpha = 0.8 // retention of the prior profile
	DefaultBeta  = 0.2 // pull toward liked items
	DefaultGamma = 0.1 // push away from skipped items
)

// FeedbackVector is one adaptation input: an item embedding, the confidence
// assigned to the feedback event, and its polarity. Neutral records must be
// excluded by the caller before building these.
type FeedbackVector struct {
	Embedding  []float32
	Confidence float64
	Polarity   models.Polarity
}

// Updater moves a profile embedding toward positively-labeled item vectors
// and away from negatively-labeled ones, weighted by per-item confidence.
type Updater struct {
	alpha  float64
	beta   float64
	gamma  float64
	logger *slog.Logger
}

// UpdaterParams configures an Updater. Zero weights fall back to the defaults.
type UpdaterParams struct {
	Alpha  float64
	Beta   float64
	Gamma  float64
	Logger *slog.Logger
}

// NewUpdater creates an Updater with the given blend weights.
func NewUpdater(p UpdaterParams) *Updater {
	alpha, beta, gamma := p.Alpha, p.Beta, p.Gamma
	if alpha == 0 && beta == 0 && gamma == 0 {
		alpha, beta, gamma = DefaultAlpha, DefaultBeta, DefaultGamma
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Updater{alpha: alpha, beta: beta, gamma: gamma, logger: logger}
}

// UpdateEmbedding computes the confidence-weighted Rocchio update of base:
//
//	new = alpha*base + beta*positiveCentroid - gamma*negativeCentroid
//
// normalized to unit L2 norm. Each centroid is the confidence-weighted mean
// of its set; an empty set contributes a zero centroid. The output always has
// the same dimension as base.
//
// The operation fails closed: on any malformed input (dimension mismatch,
// non-finite components) it returns an unmodified copy of base together with
// an AdaptationError, so a bad round can never corrupt a stored profile.
func (u *Updater) UpdateEmbedding(base []float32, feedback []FeedbackVector) ([]float32, error) {
	dim := len(base)
	if dim == 0 {
		return nil, apperrors.NewAdaptationError("base embedding is empty", nil)
	}

	if !vecmath.IsFinite(base) {
		return copyVector(base), apperrors.NewAdaptationError("base embedding has non-finite components", nil)
	}

	positive := newCentroid(dim)
	negative := newCentroid(dim)

	for i, fv := range feedback {
		if len(fv.Embedding) != dim {
			u.logger.Warn("rocchio: feedback vector rejected",
				"index", i, "expected_dim", dim, "got_dim", len(fv.Embedding))

			return copyVector(base), apperrors.NewAdaptationError(
				"feedback vector dimension mismatch",
				apperrors.NewDimensionMismatchError(dim, len(fv.Embedding)))
		}

		if !vecmath.IsFinite(fv.Embedding) {
			return copyVector(base), apperrors.NewAdaptationError("feedback vector has non-finite components", nil)
		}

		switch fv.Polarity {
		case models.PolarityLike:
			positive.add(fv.Embedding, fv.Confidence)
		case models.PolaritySkip:
			negative.add(fv.Embedding, fv.Confidence)
		default:
			// Neutral should have been filtered by the caller; tolerate it
			// here the same way: no contribution.
		}
	}

	// Accumulate in float64 so summation error stays at the margins.
	updated := make([]float64, dim)
	posCentroid := positive.mean()
	negCentroid := negative.mean()

	for i := range updated {
		updated[i] = u.alpha*float64(base[i]) + u.beta*posCentroid[i] - u.gamma*negCentroid[i]
	}

	out := make([]float32, dim)
	for i, v := range updated {
		out[i] = float32(v)
	}

	// Degenerate case: zero base and no feedback. Return the zero vector
	// rather than dividing by zero.
	vecmath.NormalizeL2(out)

	return out, nil
}

// centroid accumulates a confidence-weighted running sum of vectors.
type centroid struct {
	sum       []float64
	weightSum float64
}

func newCentroid(dim int) *centroid {
	return &centroid{sum: make([]float64, dim)}
}

func (c *centroid) add(vec []float32, weight float64) {
	for i, v := range vec {
		c.sum[i] += weight * float64(v)
	}

	c.weightSum += weight
}

// mean returns the confidence-weighted centroid, or the zero vector when
// nothing was added (or all weights were zero).
func (c *centroid) mean() []float64 {
	out := make([]float64, len(c.sum))
	if c.weightSum == 0 {
		return out
	}

	for i, v := range c.sum {
		out[i] = v / c.weightSum
	}

	return out
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)

	return out
}
