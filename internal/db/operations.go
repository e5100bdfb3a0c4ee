package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

func (s *pgStore) RecordOperation(ctx context.Context, rec model.OperationRecord) (model.OperationRecord, error) {
	var out model.OperationRecord
	q := `
	INSERT INTO operations (request_id, command, outcome, message, started_at, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, request_id, command, outcome, message, started_at, finished_at;`
	if err := s.db.GetContext(ctx, &out, q,
		rec.RequestID, rec.Command, rec.Outcome, rec.Message, rec.StartedAt, rec.FinishedAt,
	); err != nil {
		log.Error().Err(err).Str("request_id", rec.RequestID).Msg("failed to record operation")
		return model.OperationRecord{}, fmt.Errorf("record operation: %w", err)
	}
	return out, nil
}

func (s *pgStore) ListOperations(ctx context.Context, limit int) ([]model.OperationRecord, error) {
	out := []model.OperationRecord{}
	err := s.db.SelectContext(ctx, &out, `
		SELECT id, request_id, command, outcome, message, started_at, finished_at
		FROM operations
		ORDER BY finished_at DESC, id DESC
		LIMIT $1
		`, clampLimit(limit))
	if err != nil {
		log.Error().Err(err).Msg("failed to list operations")
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return out, nil
}
