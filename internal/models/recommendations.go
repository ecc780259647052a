package models

import "time"

// LocationScope selects how geographic filtering is applied to recommendations.
type LocationScope string

// Location scopes. Nationwide means no geographic filtering at all; the other
// scopes still let opportunities with no location info pass through.
const (
	ScopeNationwide    LocationScope = "nationwide"
	ScopeStates        LocationScope = "states"
	ScopeCities        LocationScope = "cities"
	ScopeRadius        LocationScope = "radius"
	ScopeInternational LocationScope = "international"
)

// Valid reports whether s is a known location scope. The empty scope is valid
// and treated as nationwide.
func (s LocationScope) Valid() bool {
	switch s {
	case "", ScopeNationwide, ScopeStates, ScopeCities, ScopeRadius, ScopeInternational:
		return true
	}

	return false
}

// RecommendFilters are the optional metadata filters applied to search
// candidates. Each field contributes one predicate; the predicates are
// composed into a single filter so type and geography stay independent.
type RecommendFilters struct {
	Type          *string       `json:"type,omitempty"`
	MaxCost       *float64      `json:"max_cost,omitempty"`
	LocationScope LocationScope `json:"location_scope,omitempty"`
	States        []string      `json:"states,omitempty"`
	Cities        []string      `json:"cities,omitempty"`
	CenterLat     *float64      `json:"center_lat,omitempty"`
	CenterLon     *float64      `json:"center_lon,omitempty"`
	RadiusMiles   *float64      `json:"radius_miles,omitempty"`
	// DeadlineAfter keeps only opportunities whose deadline is at least two
	// days after this date (or that have no deadline).
	DeadlineAfter *time.Time `json:"deadline_after,omitempty"`
}

// RecommendRequest asks for the top-K opportunities for a user.
type RecommendRequest struct {
	UserID  string           `json:"user_id"`
	TopK    int              `json:"top_k"`
	Filters RecommendFilters `json:"filters"`
}

// Recommendation is one scored result. Score is an inner product over unit
// vectors: larger means more similar.
type Recommendation struct {
	Opportunity Opportunity `json:"opportunity"`
	Score       float64     `json:"score"`
}

// RecommendResponse is the ordered result list for a recommendation request.
type RecommendResponse struct {
	Results []Recommendation `json:"results"`
	Count   int              `json:"count"`
}
