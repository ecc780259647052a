// Package repository provides data access for opportunities, profiles,
// feedback, and conversations on PostgreSQL.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/oppmatch/engine/internal/models"
)

// ErrOpportunityNotFound is returned when no opportunity row exists for an id.
var ErrOpportunityNotFound = errors.New("opportunity not found")

// OpportunitiesRepository handles data access for the opportunities table.
type OpportunitiesRepository struct {
	db *pgxpool.Pool
}

// NewOpportunitiesRepository creates an opportunities repository.
func NewOpportunitiesRepository(db *pgxpool.Pool) *OpportunitiesRepository {
	return &OpportunitiesRepository{db: db}
}

// Upsert inserts or replaces an opportunity. On conflict every metadata field
// and the embedding are replaced; updated_at is bumped.
func (r *OpportunitiesRepository) Upsert(ctx context.Context, req *models.UpsertOpportunityRequest) error {
	var vec *pgvector.Vector
	if len(req.Embedding) > 0 {
		v := pgvector.NewVector(req.Embedding)
		vec = &v
	}

	now := time.Now()

	_, err := r.db.Exec(ctx, `
		INSERT INTO opportunities
			(id, title, description, type, cost, deadline, state, city, latitude, longitude, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, description = EXCLUDED.description,
			type = EXCLUDED.type, cost = EXCLUDED.cost, deadline = EXCLUDED.deadline,
			state = EXCLUDED.state, city = EXCLUDED.city,
			latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			embedding = EXCLUDED.embedding, updated_at = $12`,
		req.ID, req.Title, req.Description, req.Type, req.Cost, req.Deadline,
		req.State, req.City, req.Latitude, req.Longitude, vec, now,
	)
	if err != nil {
		return fmt.Errorf("opportunities upsert: %w", err)
	}

	return nil
}

// SetEmbedding stores the embedding for one opportunity.
func (r *OpportunitiesRepository) SetEmbedding(ctx context.Context, id string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)

	tag, err := r.db.Exec(ctx,
		`UPDATE opportunities SET embedding = $2, updated_at = $3 WHERE id = $1`,
		id, vec, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("opportunities set embedding: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrOpportunityNotFound
	}

	return nil
}

// GetByID returns one opportunity including its embedding.
// Returns ErrOpportunityNotFound when no row exists.
func (r *OpportunitiesRepository) GetByID(ctx context.Context, id string) (*models.Opportunity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, title, description, type, cost, deadline, state, city,
		       latitude, longitude, embedding, created_at, updated_at
		FROM opportunities WHERE id = $1`, id)

	opp, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOpportunityNotFound
		}

		return nil, fmt.Errorf("get opportunity: %w", err)
	}

	return opp, nil
}

// GetByIDs returns the opportunities for the given ids, keyed by id. Missing
// ids are simply absent from the map.
func (r *OpportunitiesRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Opportunity, error) {
	if len(ids) == 0 {
		return map[string]*models.Opportunity{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, title, description, type, cost, deadline, state, city,
		       latitude, longitude, embedding, created_at, updated_at
		FROM opportunities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get opportunities by ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.Opportunity, len(ids))

	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}

		out[opp.ID] = opp
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opportunities: %w", err)
	}

	return out, nil
}

// ListEmbedded returns every opportunity that has an embedding, ordered by id
// so index rebuilds see a deterministic corpus.
func (r *OpportunitiesRepository) ListEmbedded(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, embedding FROM opportunities WHERE embedding IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list embedded opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity

	for rows.Next() {
		var (
			opp models.Opportunity
			vec pgvector.Vector
		)

		if err := rows.Scan(&opp.ID, &vec); err != nil {
			return nil, fmt.Errorf("scan embedded opportunity: %w", err)
		}

		opp.Embedding = vec.Slice()
		out = append(out, opp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedded opportunities: %w", err)
	}

	return out, nil
}

// ListMissingEmbedding returns ids of opportunities that still need embedding.
func (r *OpportunitiesRepository) ListMissingEmbedding(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM opportunities WHERE embedding IS NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list opportunities missing embedding: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan opportunity id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opportunity ids: %w", err)
	}

	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var (
		opp models.Opportunity
		vec *pgvector.Vector
	)

	err := row.Scan(
		&opp.ID, &opp.Title, &opp.Description, &opp.Type, &opp.Cost, &opp.Deadline,
		&opp.State, &opp.City, &opp.Latitude, &opp.Longitude, &vec,
		&opp.CreatedAt, &opp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if vec != nil {
		opp.Embedding = vec.Slice()
	}

	return &opp, nil
}
