package models

import (
	"time"
)

// Opportunity represents a single indexable item: an event or opportunity
// with metadata used for filtering and an embedding used for matching.
type Opportunity struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Cost        *float64   `json:"cost,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	State       *string    `json:"state,omitempty"`
	City        *string    `json:"city,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	// Embedding is nil until the item has been embedded. Items without an
	// embedding are excluded from the index build.
	Embedding []float32 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasLocation reports whether the opportunity carries any location info at all.
// Opportunities with no location pass geographic filters (they may be remote or
// nationwide offerings that were ingested without a place).
func (o *Opportunity) HasLocation() bool {
	return o.State != nil || o.City != nil || (o.Latitude != nil && o.Longitude != nil)
}

// UpsertOpportunityRequest is the payload for creating or replacing an opportunity.
type UpsertOpportunityRequest struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Type        *string    `json:"type,omitempty"`
	Cost        *float64   `json:"cost,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	State       *string    `json:"state,omitempty"`
	City        *string    `json:"city,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	Embedding   []float32  `json:"embedding,omitempty"`
}
