package models

import "time"

// UserProfile holds a user's preference embedding. The embedding is either nil
// (new user, not yet matchable) or unit-normalized; it is mutated only through
// the adaptation service.
type UserProfile struct {
	UserID    string    `json:"user_id"`
	Bio       *string   `json:"bio,omitempty"`
	Location  *string   `json:"location,omitempty"`
	Embedding []float32 `json:"embedding,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertProfileRequest creates or updates a user's profile. The bio is the
// onboarding text the initial profile embedding is derived from.
type UpsertProfileRequest struct {
	Bio      *string `json:"bio,omitempty"`
	Location *string `json:"location,omitempty"`
}
