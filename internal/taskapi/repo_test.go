package taskapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayparty/internal/model"
)

func newTask(id string, scheduledAt time.Time, order int) model.Task {
	return model.Task{
		ID:          model.TaskID(id),
		Title:       id,
		ScheduledAt: scheduledAt,
		Order:       order,
		Size:        1,
		Duration:    model.SlotMinutes,
		Status:      model.StatusPending,
	}
}

func TestUpsertBatch_ForcesIdentityAndSyncFlags(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)
	alice := repo.ForUser("user-alice")

	now := time.Now()
	spoofed := newTask("t1", now, 0)
	spoofed.UserID = "user-mallory"
	spoofed.IsDirty = true
	deleted := now
	spoofed.DeletedAt = &deleted

	stored, err := alice.UpsertBatch([]model.Task{spoofed}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	tasks, err := alice.List()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "user-alice", tasks[0].UserID)
	assert.False(t, tasks[0].IsDirty)
	assert.True(t, tasks[0].IsSynced)
	require.NotNil(t, tasks[0].LastSyncedAt)
	assert.Nil(t, tasks[0].DeletedAt)
}

func TestUpsertBatch_SkipsBlankIDs(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	stored, err := repo.UpsertBatch([]model.Task{
		newTask("", now, 0),
		newTask("ok", now, 1),
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestList_SortsByScheduledAtThenOrder(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)

	_, err = repo.UpsertBatch([]model.Task{
		newTask("tomorrow", tomorrow, 0),
		newTask("today-second", today, 1),
		newTask("today-first", today, 0),
	}, now)
	require.NoError(t, err)

	tasks, err := repo.List()
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, model.TaskID("today-first"), tasks[0].ID)
	assert.Equal(t, model.TaskID("today-second"), tasks[1].ID)
	assert.Equal(t, model.TaskID("tomorrow"), tasks[2].ID)
}

func TestDeleteBatch_SkipsUnknownIDs(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	_, err = repo.UpsertBatch([]model.Task{newTask("t1", now, 0)}, now)
	require.NoError(t, err)

	removed, err := repo.DeleteBatch([]model.TaskID{"t1", "never-existed"})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	tasks, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestForUser_IsolatesTasks(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)
	alice := repo.ForUser("user-alice")
	bob := repo.ForUser("user-bob")

	now := time.Now()
	_, err = alice.UpsertBatch([]model.Task{newTask("alice-task", now, 0)}, now)
	require.NoError(t, err)
	_, err = bob.UpsertBatch([]model.Task{newTask("bob-task", now, 0)}, now)
	require.NoError(t, err)

	aliceTasks, err := alice.List()
	require.NoError(t, err)
	require.Len(t, aliceTasks, 1)
	assert.Equal(t, model.TaskID("alice-task"), aliceTasks[0].ID)

	bobTasks, err := bob.List()
	require.NoError(t, err)
	require.Len(t, bobTasks, 1)
	assert.Equal(t, model.TaskID("bob-task"), bobTasks[0].ID)
}

func TestForUser_BlankFallsBackToDefault(t *testing.T) {
	repo, err := NewFileRepo(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	_, err = repo.ForUser("  ").UpsertBatch([]model.Task{newTask("t1", now, 0)}, now)
	require.NoError(t, err)

	tasks, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "blank user shares the default scope")
}

func TestFileRepo_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepo(dir)
	require.NoError(t, err)

	now := time.Now()
	_, err = repo.ForUser("user-alice").UpsertBatch([]model.Task{newTask("t1", now, 0)}, now)
	require.NoError(t, err)

	reopened, err := NewFileRepo(dir)
	require.NoError(t, err)

	tasks, err := reopened.ForUser("user-alice").List()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, model.TaskID("t1"), tasks[0].ID)
}
