package rocchio

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oppmatch/engine/internal/models"
)

func TestEstimateConfidence(t *testing.T) {
	t.Run("fully engaged conversation hits the ceiling", func(t *testing.T) {
		got := EstimateConfidence(models.EngagementSnapshot{
			InterestLevel:   10,
			MessageCount:    10,
			DurationSeconds: 300,
			QuestionCount:   0,
		})
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("no signal still gets the floor", func(t *testing.T) {
		got := EstimateConfidence(models.EngagementSnapshot{})
		assert.InDelta(t, MinConfidence, got, 1e-9)
	})

	t.Run("weighted sum for a typical conversation", func(t *testing.T) {
		// interest 7/10, 3 of 5 messages, 60 of 120 seconds, one question:
		// 0.6*0.7 + 0.2*0.6 + 0.2*0.5 - 0.1 = 0.54
		got := EstimateConfidence(models.EngagementSnapshot{
			InterestLevel:   7,
			MessageCount:    3,
			DurationSeconds: 60,
			QuestionCount:   1,
		})
		assert.InDelta(t, 0.54, got, 1e-9)
	})

	t.Run("question penalty is capped", func(t *testing.T) {
		few := EstimateConfidence(models.EngagementSnapshot{
			InterestLevel: 10, MessageCount: 5, DurationSeconds: 120, QuestionCount: 3,
		})
		many := EstimateConfidence(models.EngagementSnapshot{
			InterestLevel: 10, MessageCount: 5, DurationSeconds: 120, QuestionCount: 30,
		})
		assert.InDelta(t, few, many, 1e-9)
		assert.InDelta(t, 0.7, many, 1e-9)
	})

	t.Run("always within bounds", func(t *testing.T) {
		snapshots := []models.EngagementSnapshot{
			{},
			{InterestLevel: 10, MessageCount: 1000, DurationSeconds: 100000},
			{InterestLevel: 1, QuestionCount: 50},
			{InterestLevel: 5, MessageCount: 2, DurationSeconds: 30, QuestionCount: 2},
		}

		for _, s := range snapshots {
			got := EstimateConfidence(s)
			assert.GreaterOrEqual(t, got, MinConfidence)
			assert.LessOrEqual(t, got, MaxConfidence)
		}
	})
}
