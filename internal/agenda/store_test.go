package agenda

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dayparty/internal/model"
)

var testDay = time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)

func newTestStore(opts Options) *Store {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testDay }
	}
	s := NewStore(opts)
	s.SetCurrentDate(testDay)
	return s
}

func TestAddTask_Defaults(t *testing.T) {
	s := newTestStore(Options{})

	task, ok := s.AddTask("Write report", 4, nil, "work")
	require.True(t, ok)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Write report", task.Title)
	assert.Equal(t, "work", task.TagKey)
	assert.Equal(t, 4, task.Size)
	assert.Equal(t, 60, task.Duration)
	assert.Equal(t, model.StatusPending, task.Status)
	assert.Equal(t, 0, task.Order)
	assert.True(t, task.IsDirty)
	assert.False(t, task.IsSynced)
	assert.NotZero(t, task.Revision)
}

func TestAddTask_MinimumSize(t *testing.T) {
	s := newTestStore(Options{})

	task, ok := s.AddTask("Tiny", 0, nil, "")
	require.True(t, ok)
	assert.Equal(t, 1, task.Size)
	assert.Equal(t, model.SlotMinutes, task.Duration)
}

func TestAddTask_OrdersAreDense(t *testing.T) {
	s := newTestStore(Options{})

	for _, title := range []string{"a", "b", "c"} {
		_, ok := s.AddTask(title, 1, &testDay, "")
		require.True(t, ok)
	}

	tasks := s.TasksForDate(testDay)
	require.Len(t, tasks, 3)
	for i, task := range tasks {
		assert.Equal(t, i, task.Order)
	}
	assert.Equal(t, "a", tasks[0].Title)
	assert.Equal(t, "c", tasks[2].Title)
}

func TestAddTask_UnderCapacityNeedsNoConfirm(t *testing.T) {
	s := newTestStore(Options{}) // nil Confirm declines everything

	_, ok := s.AddTask("meeting", 4, &testDay, "") // 60m
	require.True(t, ok)
	_, ok = s.AddTask("deep work", 20, &testDay, "") // 300m
	require.True(t, ok)

	assert.Equal(t, 360, s.TotalMinutes())
}

func TestAddTask_OverCapacityDeclined(t *testing.T) {
	var prompted *CapacityPrompt
	s := newTestStore(Options{
		Confirm: func(p CapacityPrompt) bool {
			prompted = &p
			return false
		},
	})

	_, ok := s.AddTask("meeting", 4, &testDay, "") // 60m
	require.True(t, ok)
	_, ok = s.AddTask("deep work", 20, &testDay, "") // 300m
	require.True(t, ok)

	_, ok = s.AddTask("marathon", 30, &testDay, "") // 450m would make 810m
	assert.False(t, ok)

	require.NotNil(t, prompted)
	assert.Equal(t, "marathon", prompted.Title)
	assert.Equal(t, 810, prompted.TotalMinutes)
	assert.Equal(t, 480, prompted.CapacityMinutes)

	assert.Equal(t, 360, s.TotalMinutes())
	assert.Len(t, s.TasksForDate(testDay), 2)
}

func TestAddTask_OverCapacityAcceptedMovesToNextDay(t *testing.T) {
	s := newTestStore(Options{
		Confirm: func(p CapacityPrompt) bool { return true },
	})

	_, ok := s.AddTask("meeting", 4, &testDay, "")
	require.True(t, ok)
	_, ok = s.AddTask("deep work", 20, &testDay, "")
	require.True(t, ok)

	task, ok := s.AddTask("marathon", 30, &testDay, "")
	require.True(t, ok)

	nextDay := testDay.AddDate(0, 0, 1)
	assert.Equal(t, nextDay.Day(), task.ScheduledAt.Day())
	assert.Equal(t, 0, task.Order, "first task on its new day")
	assert.Len(t, s.TasksForDate(testDay), 2)
	assert.Len(t, s.TasksForDate(nextDay), 1)
}

func TestUpdateTask_UnknownIDIsNoop(t *testing.T) {
	s := newTestStore(Options{})

	title := "nope"
	_, ok := s.UpdateTask("missing", Patch{Title: &title})
	assert.False(t, ok)
}

func TestUpdateTask_PartialPatch(t *testing.T) {
	s := newTestStore(Options{})
	task, _ := s.AddTask("draft", 2, &testDay, "writing")

	title := "final draft"
	updated, ok := s.UpdateTask(task.ID, Patch{Title: &title})
	require.True(t, ok)

	assert.Equal(t, "final draft", updated.Title)
	assert.Equal(t, "writing", updated.TagKey)
	assert.Equal(t, 2, updated.Size)
	assert.Equal(t, 30, updated.Duration)
	assert.Greater(t, updated.Revision, task.Revision)
}

func TestUpdateTask_SizeChangeRecomputesDuration(t *testing.T) {
	s := newTestStore(Options{})
	task, _ := s.AddTask("draft", 2, &testDay, "")

	size := 6
	updated, ok := s.UpdateTask(task.ID, Patch{Size: &size})
	require.True(t, ok)
	assert.Equal(t, 6, updated.Size)
	assert.Equal(t, 90, updated.Duration)
}

func TestUpdateTask_RescheduleMovesBuckets(t *testing.T) {
	s := newTestStore(Options{})
	task, _ := s.AddTask("movable", 1, &testDay, "")
	other, _ := s.AddTask("stays", 1, &testDay, "")

	dest := testDay.AddDate(0, 0, 2)
	_, ok := s.UpdateTask(task.ID, Patch{ScheduledAt: &dest})
	require.True(t, ok)

	src := s.TasksForDate(testDay)
	require.Len(t, src, 1)
	assert.Equal(t, other.ID, src[0].ID)
	assert.Equal(t, 0, src[0].Order, "source bucket renormalized")

	moved := s.TasksForDate(dest)
	require.Len(t, moved, 1)
	assert.Equal(t, task.ID, moved[0].ID)
}

func TestUpdateTask_SingleOngoingInvariant(t *testing.T) {
	s := newTestStore(Options{})
	first, _ := s.AddTask("first", 1, &testDay, "")
	second, _ := s.AddTask("second", 1, &testDay, "")

	ongoing := model.StatusOngoing
	_, ok := s.UpdateTask(first.ID, Patch{Status: &ongoing})
	require.True(t, ok)
	_, ok = s.UpdateTask(second.ID, Patch{Status: &ongoing})
	require.True(t, ok)

	tasks := s.TasksForDate(testDay)
	require.Len(t, tasks, 2)

	var ongoingCount int
	for _, task := range tasks {
		if task.Status == model.StatusOngoing {
			ongoingCount++
			assert.Equal(t, second.ID, task.ID)
		}
	}
	assert.Equal(t, 1, ongoingCount)
	assert.Equal(t, model.StatusOngoing, tasks[0].Status, "ongoing sorts first")
	assert.Equal(t, model.StatusPaused, tasks[1].Status)
}

func TestUpdateTask_StatusSortPriority(t *testing.T) {
	s := newTestStore(Options{})
	a, _ := s.AddTask("a", 1, &testDay, "")
	b, _ := s.AddTask("b", 1, &testDay, "")
	c, _ := s.AddTask("c", 1, &testDay, "")
	d, _ := s.AddTask("d", 1, &testDay, "")

	done := model.StatusDone
	paused := model.StatusPaused
	ongoing := model.StatusOngoing
	s.UpdateTask(a.ID, Patch{Status: &done})
	s.UpdateTask(b.ID, Patch{Status: &paused})
	s.UpdateTask(c.ID, Patch{Status: &ongoing})

	tasks := s.TasksForDate(testDay)
	require.Len(t, tasks, 4)
	assert.Equal(t, c.ID, tasks[0].ID)
	assert.Equal(t, b.ID, tasks[1].ID)
	assert.Equal(t, d.ID, tasks[2].ID)
	assert.Equal(t, a.ID, tasks[3].ID)
	for i, task := range tasks {
		assert.Equal(t, i, task.Order)
	}
}

func TestUpdateTask_InvalidStatusIgnored(t *testing.T) {
	s := newTestStore(Options{})
	task, _ := s.AddTask("a", 1, &testDay, "")

	bogus := model.Status("exploded")
	updated, ok := s.UpdateTask(task.ID, Patch{Status: &bogus})
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, updated.Status)
}

func TestDeleteTask_MovesToBuffer(t *testing.T) {
	s := newTestStore(Options{})
	task, _ := s.AddTask("doomed", 1, &testDay, "")
	keeper, _ := s.AddTask("keeper", 1, &testDay, "")

	require.True(t, s.DeleteTask(task.ID))
	assert.False(t, s.DeleteTask(task.ID), "second delete is a no-op")

	tasks := s.TasksForDate(testDay)
	require.Len(t, tasks, 1)
	assert.Equal(t, keeper.ID, tasks[0].ID)
	assert.Equal(t, 0, tasks[0].Order)

	deleted := s.DeletedTasks()
	require.Contains(t, deleted, task.ID)
	assert.NotNil(t, deleted[task.ID].DeletedAt)
}

func TestDeleteAllDayTasks(t *testing.T) {
	s := newTestStore(Options{})
	for _, title := range []string{"a", "b", "c"} {
		s.AddTask(title, 1, &testDay, "")
	}
	otherDay := testDay.AddDate(0, 0, 1)
	s.AddTask("elsewhere", 1, &otherDay, "")

	assert.Equal(t, 3, s.DeleteAllDayTasks(testDay))
	assert.Empty(t, s.TasksForDate(testDay))
	assert.Len(t, s.TasksForDate(otherDay), 1)
	assert.Len(t, s.DeletedTasks(), 3)
	assert.Equal(t, 0, s.DeleteAllDayTasks(testDay))
}

func TestSetCurrentDate_Projection(t *testing.T) {
	s := newTestStore(Options{})
	s.AddTask("today", 4, &testDay, "")
	tomorrow := testDay.AddDate(0, 0, 1)
	s.AddTask("tomorrow", 8, &tomorrow, "")

	assert.Equal(t, 60, s.TotalMinutes())
	require.Len(t, s.CurrentDayTasks(), 1)
	assert.Equal(t, "today", s.CurrentDayTasks()[0].Title)

	s.SetCurrentDate(tomorrow)
	assert.Equal(t, 120, s.TotalMinutes())
	require.Len(t, s.CurrentDayTasks(), 1)
	assert.Equal(t, "tomorrow", s.CurrentDayTasks()[0].Title)
}

func TestSetDayCapacity(t *testing.T) {
	s := newTestStore(Options{})
	assert.Equal(t, DefaultDayCapacityHours, s.DayCapacityHours())

	s.SetDayCapacity(10)
	assert.Equal(t, 10, s.DayCapacityHours())

	s.SetDayCapacity(0)
	assert.Equal(t, 10, s.DayCapacityHours(), "non-positive values ignored")
}

func TestPersistence_SurvivesRestart(t *testing.T) {
	storage := NewMemoryStorage()

	s1 := newTestStore(Options{Storage: storage})
	a, _ := s1.AddTask("persisted", 4, &testDay, "work")
	b, _ := s1.AddTask("deleted", 1, &testDay, "")
	s1.DeleteTask(b.ID)

	s2 := newTestStore(Options{Storage: storage})
	s2.Initialize(context.Background())

	tasks := s2.TasksForDate(testDay)
	require.Len(t, tasks, 1)
	assert.Equal(t, a.ID, tasks[0].ID)
	assert.Equal(t, "persisted", tasks[0].Title)
	assert.Equal(t, 60, tasks[0].Duration)

	deleted := s2.DeletedTasks()
	assert.Contains(t, deleted, b.ID)
}

func TestInitialize_CorruptBlobStartsEmpty(t *testing.T) {
	storage := NewMemoryStorage()
	require.NoError(t, storage.Set(storageKeyTasks, []byte("{not json")))

	s := newTestStore(Options{Storage: storage})
	s.Initialize(context.Background())

	assert.Empty(t, s.TasksByDate())
}

func TestInitialize_HealsDoubleOngoing(t *testing.T) {
	storage := NewMemoryStorage()

	s1 := newTestStore(Options{Storage: storage})
	s1.AddTask("first", 1, &testDay, "")
	second, _ := s1.AddTask("second", 1, &testDay, "")

	// Corrupt the persisted state into two ongoing tasks, as a crashed
	// client could leave behind.
	byDate := s1.TasksByDate()
	for key, bucket := range byDate {
		for i := range bucket {
			bucket[i].Status = model.StatusOngoing
			if bucket[i].ID == second.ID {
				bucket[i].UpdatedAt = bucket[i].UpdatedAt.Add(time.Minute)
			}
		}
		byDate[key] = bucket
	}
	blob, err := json.Marshal(persistedBuckets{TasksByDate: byDate})
	require.NoError(t, err)
	require.NoError(t, storage.Set(storageKeyTasks, blob))

	s2 := newTestStore(Options{Storage: storage})
	s2.Initialize(context.Background())

	tasks := s2.TasksForDate(testDay)
	require.Len(t, tasks, 2)
	var ongoingCount int
	for _, task := range tasks {
		if task.Status == model.StatusOngoing {
			ongoingCount++
			assert.Equal(t, second.ID, task.ID)
		}
	}
	assert.Equal(t, 1, ongoingCount)
}

func TestRevision_MonotonicAcrossRestart(t *testing.T) {
	storage := NewMemoryStorage()

	s1 := newTestStore(Options{Storage: storage})
	a, _ := s1.AddTask("a", 1, &testDay, "")
	title := "edited"
	edited, _ := s1.UpdateTask(a.ID, Patch{Title: &title})

	s2 := newTestStore(Options{Storage: storage})
	s2.Initialize(context.Background())
	b, _ := s2.AddTask("b", 1, &testDay, "")

	assert.Greater(t, b.Revision, edited.Revision)
}

func TestDirtySignal_FiresOnMutation(t *testing.T) {
	s := newTestStore(Options{})

	select {
	case <-s.DirtySignal():
		t.Fatal("signal should be empty before any mutation")
	default:
	}

	s.AddTask("a", 1, &testDay, "")

	select {
	case <-s.DirtySignal():
	default:
		t.Fatal("expected dirty signal after AddTask")
	}
}
