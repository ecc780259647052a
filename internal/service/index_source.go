package service

import (
	"context"
	"fmt"

	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/vecindex"
)

// EmbeddedOpportunityLister lists every opportunity that has an embedding.
type EmbeddedOpportunityLister interface {
	ListEmbedded(ctx context.Context) ([]models.Opportunity, error)
}

// OpportunityIndexSource adapts the opportunities repository into the item
// source the index manager rebuilds from.
type OpportunityIndexSource struct {
	opportunities EmbeddedOpportunityLister
}

// NewOpportunityIndexSource creates an OpportunityIndexSource.
func NewOpportunityIndexSource(opportunities EmbeddedOpportunityLister) *OpportunityIndexSource {
	return &OpportunityIndexSource{opportunities: opportunities}
}

// ListEmbedded implements vecindex.ItemSource.
func (s *OpportunityIndexSource) ListEmbedded(ctx context.Context) ([]vecindex.Item, error) {
	opps, err := s.opportunities.ListEmbedded(ctx)
	if err != nil {
		return nil, fmt.Errorf("list embedded opportunities: %w", err)
	}

	items := make([]vecindex.Item, len(opps))
	for i, opp := range opps {
		items[i] = vecindex.Item{ID: opp.ID, Embedding: opp.Embedding}
	}

	return items, nil
}
