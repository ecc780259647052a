package rocchio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oppmatch/engine/internal/apperrors"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/pkg/vecmath"
)

const tol = 1e-6

func TestUpdater_UpdateEmbedding(t *testing.T) {
	u := NewUpdater(UpdaterParams{})

	t.Run("documented scenario with one like and one skip", func(t *testing.T) {
		base := []float32{1, 0, 0}
		feedback := []FeedbackVector{
			{Embedding: []float32{0, 1, 0}, Confidence: 1.0, Polarity: models.PolarityLike},
			{Embedding: []float32{0, 0, 1}, Confidence: 1.0, Polarity: models.PolaritySkip},
		}

		got, err := u.UpdateEmbedding(base, feedback)
		require.NoError(t, err)
		require.Len(t, got, 3)

		// raw = [0.8, 0.2, -0.1], then unit-normalized
		norm := math.Sqrt(0.8*0.8 + 0.2*0.2 + 0.1*0.1)
		assert.InDelta(t, 0.8/norm, float64(got[0]), tol)
		assert.InDelta(t, 0.2/norm, float64(got[1]), tol)
		assert.InDelta(t, -0.1/norm, float64(got[2]), tol)
	})

	t.Run("output is unit normalized", func(t *testing.T) {
		base := []float32{0.3, -0.7, 0.2, 0.5}
		feedback := []FeedbackVector{
			{Embedding: []float32{1, 0, 0, 0}, Confidence: 0.4, Polarity: models.PolarityLike},
			{Embedding: []float32{0, 1, 0, 0}, Confidence: 0.9, Polarity: models.PolarityLike},
			{Embedding: []float32{0, 0, 0, 1}, Confidence: 0.6, Polarity: models.PolaritySkip},
		}

		got, err := u.UpdateEmbedding(base, feedback)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, vecmath.Norm(got), tol)
	})

	t.Run("empty feedback keeps the base direction", func(t *testing.T) {
		base := []float32{2, 0, 0}

		got, err := u.UpdateEmbedding(base, nil)
		require.NoError(t, err)

		// alpha*base renormalized: direction proportionally unchanged.
		assert.InDelta(t, 1.0, float64(got[0]), tol)
		assert.InDelta(t, 0.0, float64(got[1]), tol)
		assert.InDelta(t, 0.0, float64(got[2]), tol)
	})

	t.Run("positive feedback moves the profile toward the liked vector", func(t *testing.T) {
		base := []float32{1, 0, 0}
		liked := []float32{0, 1, 0}

		got, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: liked, Confidence: 1.0, Polarity: models.PolarityLike},
		})
		require.NoError(t, err)

		before := vecmath.CosineSimilarity(base, liked)
		after := vecmath.CosineSimilarity(got, liked)
		assert.Greater(t, after, before)
	})

	t.Run("higher confidence pulls harder", func(t *testing.T) {
		base := []float32{1, 0}
		liked := []float32{0, 1}
		distractor := []float32{1, 0}

		weak, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: liked, Confidence: 0.2, Polarity: models.PolarityLike},
			{Embedding: distractor, Confidence: 0.8, Polarity: models.PolarityLike},
		})
		require.NoError(t, err)

		strong, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: liked, Confidence: 0.8, Polarity: models.PolarityLike},
			{Embedding: distractor, Confidence: 0.2, Polarity: models.PolarityLike},
		})
		require.NoError(t, err)

		assert.Greater(t, vecmath.CosineSimilarity(strong, liked), vecmath.CosineSimilarity(weak, liked))
	})

	t.Run("neutral feedback contributes nothing", func(t *testing.T) {
		base := []float32{1, 0, 0}

		withNeutral, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: []float32{0, 1, 0}, Confidence: 1.0, Polarity: models.PolarityNeutral},
		})
		require.NoError(t, err)

		without, err := u.UpdateEmbedding(base, nil)
		require.NoError(t, err)

		for i := range without {
			assert.InDelta(t, float64(without[i]), float64(withNeutral[i]), tol)
		}
	})

	t.Run("dimension mismatch fails closed and returns base unchanged", func(t *testing.T) {
		base := []float32{1, 0, 0}

		got, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: []float32{0, 1}, Confidence: 1.0, Polarity: models.PolarityLike},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrAdaptation)
		assert.Equal(t, base, got)
	})

	t.Run("non-finite feedback fails closed", func(t *testing.T) {
		base := []float32{1, 0}

		got, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: []float32{float32(math.NaN()), 0}, Confidence: 1.0, Polarity: models.PolarityLike},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrAdaptation)
		assert.Equal(t, base, got)
	})

	t.Run("zero base with no feedback returns the zero vector", func(t *testing.T) {
		got, err := u.UpdateEmbedding([]float32{0, 0, 0}, nil)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0}, got)
	})

	t.Run("output dimension always equals base dimension", func(t *testing.T) {
		base := []float32{0.5, 0.5, 0.5, 0.5, 0.5}

		got, err := u.UpdateEmbedding(base, []FeedbackVector{
			{Embedding: []float32{1, 0, 0, 0, 0}, Confidence: 0.7, Polarity: models.PolaritySkip},
		})
		require.NoError(t, err)
		assert.Len(t, got, len(base))
	})
}

func TestNewUpdater_Defaults(t *testing.T) {
	u := NewUpdater(UpdaterParams{})
	assert.Equal(t, DefaultAlpha, u.alpha)
	assert.Equal(t, DefaultBeta, u.beta)
	assert.Equal(t, DefaultGamma, u.gamma)

	custom := NewUpdater(UpdaterParams{Alpha: 0.5, Beta: 0.3, Gamma: 0.2})
	assert.Equal(t, 0.5, custom.alpha)
}
