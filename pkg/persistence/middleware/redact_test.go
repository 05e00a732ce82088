package middleware_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/adapters/memory"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/persistence/middleware"
)

func TestRedactionMiddleware_MasksOnSave(t *testing.T) {
	underlying := memory.NewStore()
	redacting := middleware.NewRedactionMiddleware([]string{
		`sk-[A-Za-z0-9]+`,
		`[\w.+-]+@[\w-]+\.[\w.]+`,
	})(underlying)

	ctx := context.Background()
	require.NoError(t, redacting.SaveRun(ctx, domain.RunRecord{
		ID:          "r1",
		Input:       "use key sk-abc123 and mail alice@example.com",
		FinalOutput: "sent report to alice@example.com",
	}))
	require.NoError(t, redacting.SaveNodeRecord(ctx, domain.NodeRecord{
		RunID:  "r1",
		NodeID: "n1",
		Output: "authorization succeeded with sk-abc123",
	}))

	run, err := underlying.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "use key [redacted] and mail [redacted]", run.Input)
	assert.Equal(t, "sent report to [redacted]", run.FinalOutput)

	records, err := underlying.LoadNodeRecords(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "authorization succeeded with [redacted]", records[0].Output)
}

func TestRedactionMiddleware_LeavesCleanTextAlone(t *testing.T) {
	underlying := memory.NewStore()
	redacting := middleware.NewRedactionMiddleware([]string{`sk-[A-Za-z0-9]+`})(underlying)

	ctx := context.Background()
	require.NoError(t, redacting.SaveRun(ctx, domain.RunRecord{ID: "r1", Input: "nothing secret here"}))

	run, err := underlying.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "nothing secret here", run.Input)
}

func TestRedactionMiddleware_StacksWithEncryption(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)

	// Redact first, then encrypt what remains.
	store := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlying)
	store = middleware.NewRedactionMiddleware([]string{`sk-[A-Za-z0-9]+`})(store)

	ctx := context.Background()
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "r1", Input: "key sk-abc123"}))

	loaded, err := store.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "key [redacted]", loaded.Input)
}
