package database

import (
	"context"
	"testing"
	"time"

	"travelbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncQueueCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.SyncTask{
		TaskType: "booking_request",
		EntityID: "TB-0001",
		Payload:  `{"test": true}`,
	}

	require.NoError(t, db.CreateSyncTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, models.SyncStatusPending, task.Status)

	tasks, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "TB-0001", tasks[0].EntityID)
	assert.Nil(t, tasks[0].LastError)

	require.NoError(t, db.UpdateSyncTaskStatus(ctx, tasks[0].ID, models.SyncStatusCompleted, "", nil))
	tasks, err = db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	t.Run("Failed", func(t *testing.T) {
		errMsg := "sheet missing"
		require.NoError(t, db.CreateSyncTask(ctx, &models.SyncTask{
			TaskType: "decision", EntityID: "d-1", Status: models.SyncStatusFailed, LastError: &errMsg,
		}))
		failed, err := db.GetFailedSyncTasks(ctx)
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, "sheet missing", *failed[0].LastError)
	})

	t.Run("RetryRespectsSchedule", func(t *testing.T) {
		task := &models.SyncTask{TaskType: "decision", EntityID: "d-2"}
		require.NoError(t, db.CreateSyncTask(ctx, task))

		next := time.Now().Add(time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "timeout", &next))

		tasks, err := db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		for _, pending := range tasks {
			assert.NotEqual(t, task.ID, pending.ID, "future retry must not be due")
		}

		past := time.Now().Add(-time.Hour)
		require.NoError(t, db.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, "timeout", &past))

		tasks, err = db.GetPendingSyncTasks(ctx, 10)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, task.ID, tasks[0].ID)
		assert.Equal(t, 2, tasks[0].RetryCount)
		require.NotNil(t, tasks[0].LastError)
		assert.Equal(t, "timeout", *tasks[0].LastError)
	})
}
