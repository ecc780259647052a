package service

import (
	"math"
	"strings"
	"time"

	"github.com/oppmatch/engine/internal/models"
)

// deadlineBufferDays is the grace window applied to deadline filtering:
// an opportunity whose deadline falls within this many days of the
// reference date is treated as effectively closed and excluded.
const deadlineBufferDays = 2

const earthRadiusMiles = 3958.8

// opportunityFilter accepts or rejects one candidate opportunity.
type opportunityFilter func(opp *models.Opportunity) bool

// buildFilter composes the request's metadata filters into a single
// predicate. Each populated field contributes one predicate; a candidate must
// pass all of them. Returns nil when no filter is requested, which the index
// treats as accept-everything.
func buildFilter(f *models.RecommendFilters) opportunityFilter {
	var preds []opportunityFilter

	if f.Type != nil && *f.Type != "" {
		preds = append(preds, typeFilter(*f.Type))
	}

	if f.MaxCost != nil {
		preds = append(preds, maxCostFilter(*f.MaxCost))
	}

	if p := locationFilter(f); p != nil {
		preds = append(preds, p)
	}

	if f.DeadlineAfter != nil {
		preds = append(preds, deadlineFilter(*f.DeadlineAfter))
	}

	if len(preds) == 0 {
		return nil
	}

	return func(opp *models.Opportunity) bool {
		for _, pred := range preds {
			if !pred(opp) {
				return false
			}
		}

		return true
	}
}

// typeFilter matches the opportunity type case-insensitively. Candidates with
// no type are excluded when a type is requested.
func typeFilter(want string) opportunityFilter {
	return func(opp *models.Opportunity) bool {
		return opp.Type != nil && strings.EqualFold(*opp.Type, want)
	}
}

// maxCostFilter keeps candidates at or below the cost ceiling. Candidates
// with no cost recorded are treated as free and kept.
func maxCostFilter(maxCost float64) opportunityFilter {
	return func(opp *models.Opportunity) bool {
		return opp.Cost == nil || *opp.Cost <= maxCost
	}
}

// locationFilter builds the geographic predicate for the requested scope.
// Nationwide and international scopes impose no geographic constraint.
// Candidates that carry no location info at all always pass: an opportunity
// ingested without a place may be remote or open to anyone.
func locationFilter(f *models.RecommendFilters) opportunityFilter {
	switch f.LocationScope {
	case models.ScopeStates:
		if len(f.States) == 0 {
			return nil
		}

		return statesFilter(f.States)
	case models.ScopeCities:
		if len(f.Cities) == 0 {
			return nil
		}

		return citiesFilter(f.Cities)
	case models.ScopeRadius:
		if f.CenterLat == nil || f.CenterLon == nil || f.RadiusMiles == nil {
			return nil
		}

		return radiusFilter(*f.CenterLat, *f.CenterLon, *f.RadiusMiles)
	default:
		return nil
	}
}

func statesFilter(states []string) opportunityFilter {
	allowed := make(map[string]struct{}, len(states))
	for _, s := range states {
		allowed[strings.ToLower(s)] = struct{}{}
	}

	return func(opp *models.Opportunity) bool {
		if !opp.HasLocation() {
			return true
		}

		if opp.State == nil {
			return false
		}

		_, ok := allowed[strings.ToLower(*opp.State)]

		return ok
	}
}

func citiesFilter(cities []string) opportunityFilter {
	allowed := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		allowed[strings.ToLower(c)] = struct{}{}
	}

	return func(opp *models.Opportunity) bool {
		if !opp.HasLocation() {
			return true
		}

		if opp.City == nil {
			return false
		}

		_, ok := allowed[strings.ToLower(*opp.City)]

		return ok
	}
}

func radiusFilter(lat, lon, radiusMiles float64) opportunityFilter {
	return func(opp *models.Opportunity) bool {
		if !opp.HasLocation() {
			return true
		}

		if opp.Latitude == nil || opp.Longitude == nil {
			return false
		}

		return haversineMiles(lat, lon, *opp.Latitude, *opp.Longitude) <= radiusMiles
	}
}

// deadlineFilter keeps candidates whose deadline is at least
// deadlineBufferDays after the reference date, or that have no deadline.
func deadlineFilter(after time.Time) opportunityFilter {
	cutoff := after.AddDate(0, 0, deadlineBufferDays)

	return func(opp *models.Opportunity) bool {
		return opp.Deadline == nil || !opp.Deadline.Before(cutoff)
	}
}

// haversineMiles returns the great-circle distance between two points.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(a))
}
