package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/adapters/memory"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/persistence/middleware"
	"github.com/rishimeka/astro/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	key := generateKey(t)
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})(underlying)

	ctx := context.Background()
	run := domain.RunRecord{
		ID:          "r1",
		Status:      domain.RunCompleted,
		Input:       "summarize the quarterly numbers",
		FinalOutput: "revenue grew 12%",
	}
	require.NoError(t, secure.SaveRun(ctx, run))
	require.NoError(t, secure.SaveNodeRecord(ctx, domain.NodeRecord{
		RunID:  "r1",
		NodeID: "n1",
		Status: domain.NodeCompleted,
		Output: "the raw spreadsheet rows",
	}))

	// At rest the text must be unreadable.
	raw, err := underlying.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.NotEqual(t, run.Input, raw.Input)
	assert.NotEqual(t, run.FinalOutput, raw.FinalOutput)
	assert.Equal(t, domain.RunCompleted, raw.Status, "status stays plain for listing")

	// Through the middleware it reads back verbatim.
	loaded, err := secure.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, run.Input, loaded.Input)
	assert.Equal(t, run.FinalOutput, loaded.FinalOutput)

	records, err := secure.LoadNodeRecords(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "the raw spreadsheet rows", records[0].Output)

	listed, err := secure.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, run.Input, listed[0].Input)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	oldStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlying)
	require.NoError(t, oldStore.SaveRun(ctx, domain.RunRecord{ID: "r1", Input: "written under the old key"}))

	rotated := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlying)

	loaded, err := rotated.LoadRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "written under the old key", loaded.Input)

	// Without the fallback the old record is unreadable.
	strict := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})(underlying)
	_, err = strict.LoadRun(ctx, "r1")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptionMiddleware_PlaintextPassthrough(t *testing.T) {
	underlying := memory.NewStore()
	ctx := context.Background()

	// A record persisted before encryption was enabled.
	require.NoError(t, underlying.SaveRun(ctx, domain.RunRecord{ID: "legacy", Input: "plain old input"}))

	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlying)
	loaded, err := secure.LoadRun(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, "plain old input", loaded.Input)
}

func TestEncryptionMiddleware_BadKeyLength(t *testing.T) {
	assert.Panics(t, func() {
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	})
}

func TestEncryptionMiddleware_SatisfiesContract(t *testing.T) {
	secure := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(memory.NewStore())
	ports.RunStoreContract(t, secure)
}
