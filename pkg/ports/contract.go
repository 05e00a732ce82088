package ports

import (
	"context"
	"testing"
	"time"

	"github.com/rishimeka/astro/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a RunStore
// implementation adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store RunStore) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405.000")

	t.Run("Save and Load", func(t *testing.T) {
		run := domain.RunRecord{
			ID:              runID,
			ConstellationID: "c1",
			Status:          domain.RunRunning,
			Input:           "batch 7",
			CreatedAt:       time.Now().UTC().Truncate(time.Second),
			UpdatedAt:       time.Now().UTC().Truncate(time.Second),
		}

		err := store.SaveRun(ctx, run)
		require.NoError(t, err, "SaveRun should not return error")

		loaded, err := store.LoadRun(ctx, runID)
		require.NoError(t, err, "LoadRun should not return error")
		assert.Equal(t, run.ID, loaded.ID)
		assert.Equal(t, run.ConstellationID, loaded.ConstellationID)
		assert.Equal(t, domain.RunRunning, loaded.Status)
		assert.Equal(t, "batch 7", loaded.Input)
	})

	t.Run("Save overwrites", func(t *testing.T) {
		run := domain.RunRecord{ID: runID, ConstellationID: "c1", Status: domain.RunCompleted, FinalOutput: "done"}
		require.NoError(t, store.SaveRun(ctx, run))

		loaded, err := store.LoadRun(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunCompleted, loaded.Status)
		assert.Equal(t, "done", loaded.FinalOutput)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.LoadRun(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Node records", func(t *testing.T) {
		recA := domain.NodeRecord{RunID: runID, NodeID: "a", StarID: "s1", Status: domain.NodeRunning}
		recB := domain.NodeRecord{RunID: runID, NodeID: "b", StarID: "s2", Status: domain.NodePending}
		require.NoError(t, store.SaveNodeRecord(ctx, recA))
		require.NoError(t, store.SaveNodeRecord(ctx, recB))

		// Overwrite a's outcome, as the engine does on completion.
		recA.Status = domain.NodeCompleted
		recA.Output = "fetched"
		require.NoError(t, store.SaveNodeRecord(ctx, recA))

		records, err := store.LoadNodeRecords(ctx, runID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "a", records[0].NodeID)
		assert.Equal(t, domain.NodeCompleted, records[0].Status)
		assert.Equal(t, "fetched", records[0].Output)
		assert.Equal(t, "b", records[1].NodeID)
	})

	t.Run("Node records of unknown run", func(t *testing.T) {
		records, err := store.LoadNodeRecords(ctx, "never-ran-"+runID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("List", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: id1, Status: domain.RunRunning, CreatedAt: time.Now()}))
		require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: id2, Status: domain.RunRunning, CreatedAt: time.Now()}))

		defer func() {
			_ = store.DeleteRun(ctx, id1)
			_ = store.DeleteRun(ctx, id2)
		}()

		runs, err := store.ListRuns(ctx)
		require.NoError(t, err)

		var ids []string
		for _, r := range runs {
			ids = append(ids, r.ID)
		}
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: runID, Status: domain.RunCompleted}))
		require.NoError(t, store.SaveNodeRecord(ctx, domain.NodeRecord{RunID: runID, NodeID: "a", Status: domain.NodeCompleted}))

		err := store.DeleteRun(ctx, runID)
		require.NoError(t, err, "DeleteRun should not return error")

		_, err = store.LoadRun(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "LoadRun after DeleteRun should return ErrRunNotFound")

		records, err := store.LoadNodeRecords(ctx, runID)
		require.NoError(t, err)
		assert.Empty(t, records, "node records should be removed with the run")
	})
}
