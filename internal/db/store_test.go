package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nixie-Tech-LLC/ekran/internal/model"
)

func record(i int) model.OperationRecord {
	at := time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC)
	return model.OperationRecord{
		RequestID:  fmt.Sprintf("req-%d", i),
		Command:    "stop",
		Outcome:    model.OutcomeOK,
		StartedAt:  at,
		FinishedAt: at.Add(time.Millisecond),
	}
}

func TestMemoryStoreKeepsNewestFirst(t *testing.T) {
	m := NewMemoryStore(3)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := m.RecordOperation(ctx, record(i))
		require.NoError(t, err)
	}

	got, err := m.ListOperations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "req-5", got[0].RequestID)
	assert.Equal(t, "req-3", got[2].RequestID)
	assert.Equal(t, 5, got[0].ID)

	got, err = m.ListOperations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryStoreEmpty(t *testing.T) {
	got, err := NewMemoryStore(0).ListOperations(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgresJournal(t *testing.T) {
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	require.NoError(t, InitTestDB("../../migrations"))
	_, err := DB.Exec(`TRUNCATE operations`)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		rec, err := TestStore.RecordOperation(ctx, record(i))
		require.NoError(t, err)
		assert.NotZero(t, rec.ID)
	}

	got, err := TestStore.ListOperations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "req-3", got[0].RequestID)
	assert.True(t, got[0].FinishedAt.Equal(record(3).FinishedAt))
}
