// Command ingest loads an opportunities feed into Postgres, embeds records
// that lack a vector, and rebuilds the index artifact.
//
// The feed is JSON Lines: one opportunity object per line, matching
// models.UpsertOpportunityRequest. Records arriving with an embedding keep
// it; the rest are embedded here, rate limited against the provider.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/oppmatch/engine/internal/config"
	"github.com/oppmatch/engine/internal/embeddings"
	"github.com/oppmatch/engine/internal/models"
	"github.com/oppmatch/engine/internal/repository"
	"github.com/oppmatch/engine/internal/service"
	"github.com/oppmatch/engine/internal/vecindex"
	"github.com/oppmatch/engine/pkg/database"
)

func main() {
	var (
		feedPath       = flag.String("file", "", "path to the opportunities JSONL feed (omit to only embed and rebuild)")
		skipRebuild    = flag.Bool("skip-rebuild", false, "skip rebuilding the index artifact")
		mockEmbeddings = flag.Bool("mock-embeddings", false, "use deterministic hash embeddings instead of OpenAI (local development)")
	)
	flag.Parse()

	if err := run(context.Background(), *feedPath, *skipRebuild, *mockEmbeddings); err != nil {
		slog.Error("Ingest failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, feedPath string, skipRebuild, mockEmbeddings bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	opportunitiesRepo := repository.NewOpportunitiesRepository(db)

	if feedPath != "" {
		if err := loadFeed(ctx, feedPath, opportunitiesRepo); err != nil {
			return err
		}
	}

	switch {
	case mockEmbeddings:
		slog.Info("Using mock embeddings", "dim", cfg.VectorDim)

		if err := embedMissing(ctx, opportunitiesRepo, embeddings.NewMockClient(cfg.VectorDim)); err != nil {
			return err
		}
	case cfg.OpenAIAPIKey != "":
		client, err := embeddings.NewOpenAIClient(cfg.OpenAIAPIKey,
			embeddings.WithDimension(cfg.VectorDim),
			embeddings.WithRateLimit(float64(cfg.EmbeddingRateLimit)),
		)
		if err != nil {
			return fmt.Errorf("create embedding client: %w", err)
		}

		if err := embedMissing(ctx, opportunitiesRepo, client); err != nil {
			return err
		}
	default:
		slog.Warn("Skipping embedding (OPENAI_API_KEY not set)")
	}

	if skipRebuild {
		return nil
	}

	manager := vecindex.NewManager(vecindex.ManagerParams{
		ArtifactPath: cfg.VectorIndexPath,
		Dim:          cfg.VectorDim,
		Source:       service.NewOpportunityIndexSource(opportunitiesRepo),
		Logger:       slog.Default(),
	})

	if err := manager.Rebuild(ctx); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	count, dim := manager.Stats()
	slog.Info("Index artifact rebuilt", "path", cfg.VectorIndexPath, "items", count, "dim", dim)

	return nil
}

// loadFeed upserts every record in the JSONL feed. A malformed line is
// logged and skipped; the rest of the feed still loads.
func loadFeed(ctx context.Context, path string, repo *repository.OpportunitiesRepository) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	var line, loaded, skipped int

	for scanner.Scan() {
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var req models.UpsertOpportunityRequest
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			slog.Warn("Skipping malformed feed line", "line", line, "error", err)
			skipped++

			continue
		}

		if req.ID == "" || req.Title == "" {
			slog.Warn("Skipping feed line without id or title", "line", line)
			skipped++

			continue
		}

		if err := repo.Upsert(ctx, &req); err != nil {
			return fmt.Errorf("upsert opportunity %s (line %d): %w", req.ID, line, err)
		}

		loaded++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	slog.Info("Feed loaded", "loaded", loaded, "skipped", skipped)

	return nil
}

// loadBatchSize bounds how many opportunities are loaded per query while
// embedding; the embed calls themselves stay sequential and rate limited.
const loadBatchSize = 200

// embedMissing embeds every opportunity that has no vector yet, using its
// title and description as the embedding text. Rows are loaded in batches
// rather than one query per id.
func embedMissing(ctx context.Context, repo *repository.OpportunitiesRepository, client embeddings.Client) error {
	ids, err := repo.ListMissingEmbedding(ctx)
	if err != nil {
		return fmt.Errorf("list opportunities missing embedding: %w", err)
	}

	if len(ids) == 0 {
		slog.Info("All opportunities already embedded")

		return nil
	}

	slog.Info("Embedding opportunities", "count", len(ids))

	embedded := 0

	for start := 0; start < len(ids); start += loadBatchSize {
		chunk := ids[start:min(start+loadBatchSize, len(ids))]

		opps, err := repo.GetByIDs(ctx, chunk)
		if err != nil {
			return fmt.Errorf("load opportunities for embedding: %w", err)
		}

		for _, id := range chunk {
			opp, ok := opps[id]
			if !ok {
				// Deleted between the id listing and the batch load.
				slog.Warn("Skipping vanished opportunity", "id", id)

				continue
			}

			text := opp.Title
			if opp.Description != nil && *opp.Description != "" {
				text += "\n" + *opp.Description
			}

			vec, err := client.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed opportunity %s: %w", id, err)
			}

			if err := repo.SetEmbedding(ctx, id, vec); err != nil {
				return fmt.Errorf("store embedding for %s: %w", id, err)
			}

			embedded++
		}
	}

	slog.Info("Embedding finished", "count", embedded)

	return nil
}
