package rocchio

import (
	"github.com/oppmatch/engine/internal/models"
)

// Confidence bounds. The floor is deliberately above zero: a feedback event
// that reached adaptation at all should always nudge the profile a little; a
// zero-confidence item would vanish from both centroids as if never recorded.
const (
	MinConfidence = 0.1
	MaxConfidence = 1.0
)

// Weights of the confidence formula. Each component is normalized to [0,1]
// before weighting; clarifying questions reduce certainty, capped at 0.3.
const (
	interestWeight   = 0.6
	engagementWeight = 0.2
	durationWeight   = 0.2

	messageCountCeiling    = 5.0   // messages at which engagement saturates
	durationCeilingSeconds = 120.0 // seconds at which duration saturates
	questionPenaltyStep    = 0.1
	questionPenaltyCap     = 0.3
)

// EstimateConfidence derives a feedback-strength multiplier in
// [MinConfidence, MaxConfidence] from conversation engagement proxies.
func EstimateConfidence(snapshot models.EngagementSnapshot) float64 {
	interest := clamp(float64(snapshot.InterestLevel)/10.0, 0, 1)
	engagement := min(float64(snapshot.MessageCount)/messageCountCeiling, 1.0)
	duration := min(float64(snapshot.DurationSeconds)/durationCeilingSeconds, 1.0)
	questionPenalty := min(float64(snapshot.QuestionCount)*questionPenaltyStep, questionPenaltyCap)

	confidence := interestWeight*interest +
		engagementWeight*engagement +
		durationWeight*duration -
		questionPenalty

	return clamp(confidence, MinConfidence, MaxConfidence)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
