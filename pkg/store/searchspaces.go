package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/quarryhq/quarry/pkg/apperr"
	"github.com/quarryhq/quarry/pkg/models"
)

// CreateSearchSpace inserts a new SearchSpace and returns its assigned id.
func (s *Store) CreateSearchSpace(ctx context.Context, sp models.SearchSpace) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO search_spaces
			(owner_id, name, citations_enabled, qna_custom_instructions,
			 long_context_llm_id, fast_llm_id, strategic_llm_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		sp.OwnerID, sp.Name, sp.CitationsEnabled, sp.QnACustomInstructs,
		nullIfZero(sp.LongContextLLMID), nullIfZero(sp.FastLLMID), nullIfZero(sp.StrategicLLMID),
	).Scan(&id)
	if err != nil {
		return 0, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	return id, nil
}

// GetSearchSpace fetches a SearchSpace by id.
func (s *Store) GetSearchSpace(ctx context.Context, id int64) (*models.SearchSpace, error) {
	var sp models.SearchSpace
	var longCtx, fast, strategic *int64
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, citations_enabled, qna_custom_instructions,
		       long_context_llm_id, fast_llm_id, strategic_llm_id, created_at, updated_at
		FROM search_spaces WHERE id = $1`, id,
	).Scan(&sp.ID, &sp.OwnerID, &sp.Name, &sp.CitationsEnabled, &sp.QnACustomInstructs,
		&longCtx, &fast, &strategic, &sp.CreatedAt, &sp.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindItemMalformed, false, errors.New("search space not found"))
	}
	if err != nil {
		return nil, apperr.New(apperr.KindDatabaseTransient, true, err)
	}
	sp.LongContextLLMID = derefOrZero(longCtx)
	sp.FastLLMID = derefOrZero(fast)
	sp.StrategicLLMID = derefOrZero(strategic)
	return &sp, nil
}

func nullIfZero(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func derefOrZero(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
