package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishimeka/astro/pkg/adapters/memory"
	"github.com/rishimeka/astro/pkg/domain"
	"github.com/rishimeka/astro/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStoreContract(t, store)
}

func TestMemoryStore_ListOrder(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	base := time.Now().UTC()
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "old", UpdatedAt: base.Add(-time.Hour)}))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "new", UpdatedAt: base}))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "old", runs[1].ID)
}

func TestConstellationStore_Isolation(t *testing.T) {
	store := memory.NewConstellationStore()
	ctx := context.Background()

	c := &domain.Constellation{
		ID:   "c1",
		Name: "ingest",
		Stars: []domain.Star{
			{ID: "s1", Name: "fetch", Type: domain.StarWorker, Config: map[string]any{"timeout": 30}},
		},
		Nodes: []domain.Node{
			{ID: "start", Kind: domain.NodeKindStart},
			{ID: "n1", Kind: domain.NodeKindStar, StarID: "s1"},
			{ID: "end", Kind: domain.NodeKindEnd},
		},
		Edges: []domain.Edge{
			{ID: "e1", From: "start", To: "n1"},
			{ID: "e2", From: "n1", To: "end"},
		},
	}
	require.NoError(t, store.Save(ctx, c))

	// Mutating the original must not leak into the store.
	c.Stars[0].Config["timeout"] = 99
	c.Nodes[0].ID = "mutated"

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 30, loaded.Stars[0].Config["timeout"])
	assert.Equal(t, "start", loaded.Nodes[0].ID)

	// Mutating a loaded copy must not change later loads.
	loaded.Edges[0].To = "elsewhere"
	again, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "n1", again.Edges[0].To)
}

func TestConstellationStore_Lifecycle(t *testing.T) {
	store := memory.NewConstellationStore()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConstellationNotFound)

	require.NoError(t, store.Save(ctx, &domain.Constellation{ID: "b"}))
	require.NoError(t, store.Save(ctx, &domain.Constellation{ID: "a"}))

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Load(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrConstellationNotFound)
}
