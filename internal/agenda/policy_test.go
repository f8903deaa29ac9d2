package agenda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayparty/internal/model"
)

func mkTask(id string, order int, status model.Status) model.Task {
	return model.Task{
		ID:       model.TaskID(id),
		Title:    id,
		Order:    order,
		Size:     1,
		Duration: model.SlotMinutes,
		Status:   status,
	}
}

func bucketIDs(bucket []model.Task) []string {
	out := make([]string, 0, len(bucket))
	for _, t := range bucket {
		out = append(out, string(t.ID))
	}
	return out
}

func TestSortByStatus_PriorityThenPriorOrder(t *testing.T) {
	bucket := []model.Task{
		mkTask("done-early", 0, model.StatusDone),
		mkTask("pending-a", 1, model.StatusPending),
		mkTask("ongoing", 2, model.StatusOngoing),
		mkTask("paused", 3, model.StatusPaused),
		mkTask("pending-b", 4, model.StatusPending),
	}

	sortByStatus(bucket)

	assert.Equal(t, []string{"ongoing", "paused", "pending-a", "pending-b", "done-early"}, bucketIDs(bucket))
	for i, task := range bucket {
		assert.Equal(t, i, task.Order)
	}
}

func TestNormalizeOrders_DenseAndSkipsSubtasks(t *testing.T) {
	sub := mkTask("sub", 7, model.StatusPending)
	sub.ParentID = "group"
	bucket := []model.Task{
		mkTask("a", 3, model.StatusPending),
		sub,
		mkTask("b", 9, model.StatusPending),
	}

	normalizeOrders(bucket)

	assert.Equal(t, 0, bucket[0].Order)
	assert.Equal(t, 7, bucket[1].Order, "subtask keeps its intra-group position")
	assert.Equal(t, 1, bucket[2].Order)
}

func TestMaxOrder(t *testing.T) {
	assert.Equal(t, -1, maxOrder(nil))

	sub := mkTask("sub", 99, model.StatusPending)
	sub.ParentID = "group"
	bucket := []model.Task{
		mkTask("a", 0, model.StatusPending),
		mkTask("b", 4, model.StatusPending),
		sub,
	}
	assert.Equal(t, 4, maxOrder(bucket))
}

func TestBucketMinutes_SkipsGroupContainers(t *testing.T) {
	group := mkTask("group", 0, model.StatusPending)
	group.IsGroup = true
	group.Duration = 120

	a := mkTask("a", 1, model.StatusPending)
	a.Duration = 60
	b := mkTask("b", 2, model.StatusPending)
	b.Duration = 45

	assert.Equal(t, 105, bucketMinutes([]model.Task{group, a, b}))
}

func TestDemoteOtherOngoing(t *testing.T) {
	now := time.Now()
	bucket := []model.Task{
		mkTask("keep", 0, model.StatusOngoing),
		mkTask("other", 1, model.StatusOngoing),
		mkTask("pending", 2, model.StatusPending),
	}

	demoted := demoteOtherOngoing(bucket, "keep", now)

	require.Len(t, demoted, 1)
	assert.Equal(t, model.TaskID("other"), demoted[0])
	assert.Equal(t, model.StatusOngoing, bucket[0].Status)
	assert.Equal(t, model.StatusPaused, bucket[1].Status)
	assert.True(t, bucket[1].IsDirty)
	assert.Equal(t, model.StatusPending, bucket[2].Status)
}

func TestHealSingleOngoing_KeepsMostRecent(t *testing.T) {
	now := time.Now()
	older := mkTask("older", 0, model.StatusOngoing)
	older.UpdatedAt = now.Add(-time.Hour)
	newer := mkTask("newer", 1, model.StatusOngoing)
	newer.UpdatedAt = now.Add(-time.Minute)
	bucket := []model.Task{older, newer}

	changed := healSingleOngoing(bucket, now)

	assert.True(t, changed)
	assert.Equal(t, model.StatusPaused, bucket[0].Status)
	assert.Equal(t, model.StatusOngoing, bucket[1].Status)
}

func TestHealSingleOngoing_NoOngoingIsNoop(t *testing.T) {
	bucket := []model.Task{mkTask("a", 0, model.StatusPending)}
	assert.False(t, healSingleOngoing(bucket, time.Now()))
}
