// exposes a Store interface for the operation journal
package db

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

// DefaultListLimit is how many journal entries a listing returns by default.
const DefaultListLimit = 50

type Store interface {
	RecordOperation(ctx context.Context, rec model.OperationRecord) (model.OperationRecord, error)
	// ListOperations returns the newest entries first.
	ListOperations(ctx context.Context, limit int) ([]model.OperationRecord, error)
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(db *sqlx.DB) Store {
	return &pgStore{db: db}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
