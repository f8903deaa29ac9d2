// Package agenda owns the canonical local representation of scheduled
// tasks: day buckets keyed by daykey, the soft-deleted buffer, the
// selected-day projection, and every mutation path. Mutations complete
// locally (in memory plus durable storage) before returning; remote
// synchronization happens in the background through the sync engine.
package agenda

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"dayparty/internal/daykey"
	"dayparty/internal/model"
)

const DefaultDayCapacityHours = 8

// CapacityPrompt describes a schedule that would exceed the day's budget.
// The confirmer answers whether to push the task to the next calendar day.
type CapacityPrompt struct {
	Title           string
	Day             time.Time
	TotalMinutes    int
	CapacityMinutes int
}

// ConfirmFunc resolves a capacity conflict. Returning false leaves the
// store unchanged. A ConfirmFunc must not call back into the Store.
type ConfirmFunc func(p CapacityPrompt) bool

type Options struct {
	Storage LocalStorage
	Remote  Remote // nil disables sync entirely
	Logger  *log.Logger
	Confirm ConfirmFunc
	// DayCapacityHours defaults to DefaultDayCapacityHours.
	DayCapacityHours int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

// Store is the sole mutator of the local task state. All reads and writes
// go through its methods; callers never hold references into its buckets.
type Store struct {
	mu      sync.Mutex
	storage LocalStorage
	remote  Remote
	logger  *log.Logger
	confirm ConfirmFunc
	now     func() time.Time

	tasksByDate map[string][]model.Task
	deleted     map[model.TaskID]model.Task

	currentDay      string
	currentDayTasks []model.Task
	totalMinutes    int

	dayCapacityHours int
	revision         int64

	dirtySignal chan struct{}
}

func NewStore(opts Options) *Store {
	if opts.Storage == nil {
		opts.Storage = NewMemoryStorage()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.DayCapacityHours <= 0 {
		opts.DayCapacityHours = DefaultDayCapacityHours
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Store{
		storage:          opts.Storage,
		remote:           opts.Remote,
		logger:           opts.Logger,
		confirm:          opts.Confirm,
		now:              opts.Now,
		tasksByDate:      map[string][]model.Task{},
		deleted:          map[model.TaskID]model.Task{},
		dayCapacityHours: opts.DayCapacityHours,
		dirtySignal:      make(chan struct{}, 1),
	}
	s.currentDay = daykey.For(s.now())
	return s
}

// Patch is a partial task update. nil pointer => "no change".
type Patch struct {
	Title       *string       `json:"title,omitempty"`
	TagKey      *string       `json:"tagKey,omitempty"`
	ScheduledAt *time.Time    `json:"scheduledAt,omitempty"`
	Size        *int          `json:"size,omitempty"`
	Duration    *int          `json:"duration,omitempty"`
	Status      *model.Status `json:"status,omitempty"`
}

// AddTask creates a pending task on scheduledAt's day (now when nil). The
// second return is false when a capacity conflict was declined and nothing
// was added. The local insert never waits on, or fails because of, sync.
func (s *Store) AddTask(title string, size int, scheduledAt *time.Time, tagKey string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sched := now
	if scheduledAt != nil {
		sched = *scheduledAt
	}

	if size < 1 {
		size = 1
	}
	duration := size * model.SlotMinutes

	key := daykey.For(sched)
	capacity := s.dayCapacityHours * 60
	if would := bucketMinutes(s.tasksByDate[key]) + duration; would > capacity {
		ok := s.confirm != nil && s.confirm(CapacityPrompt{
			Title:           title,
			Day:             daykey.Midnight(sched),
			TotalMinutes:    would,
			CapacityMinutes: capacity,
		})
		if !ok {
			return model.Task{}, false
		}
		sched = daykey.NextDay(sched)
		key = daykey.For(sched)
	}

	t := model.Task{
		ID:          model.TaskID(uuid.NewString()),
		Title:       title,
		TagKey:      tagKey,
		ScheduledAt: sched,
		Order:       maxOrder(s.tasksByDate[key]) + 1,
		Size:        size,
		Duration:    duration,
		Status:      model.StatusPending,
		IsDirty:     true,
		IsSynced:    false,
		Revision:    s.nextRevisionLocked(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	bucket := append(s.tasksByDate[key], t)
	sortByOrder(bucket)
	s.tasksByDate[key] = bucket

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return t, true
}

// UpdateTask merges the patch into the task with the given id. Unknown ids
// are a silent no-op. A status change re-sorts the destination bucket by
// status priority and renormalizes orders; setting status to ongoing first
// pauses any other ongoing task on that day.
func (s *Store) UpdateTask(id model.TaskID, p Patch) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, idx, ok := s.findTaskLocked(id)
	if !ok {
		return model.Task{}, false
	}

	now := s.now()
	t := s.tasksByDate[key][idx]

	destSched := t.ScheduledAt
	if p.ScheduledAt != nil {
		destSched = *p.ScheduledAt
	}
	destKey := daykey.For(destSched)

	newDuration := t.Duration
	if p.Size != nil {
		newDuration = *p.Size * model.SlotMinutes
	}
	if p.Duration != nil {
		newDuration = *p.Duration
	}

	if newDuration > t.Duration {
		destTotal := bucketMinutes(s.tasksByDate[destKey]) + newDuration
		if destKey == key {
			destTotal -= t.Duration
		}
		capacity := s.dayCapacityHours * 60
		if destTotal > capacity {
			ok := s.confirm != nil && s.confirm(CapacityPrompt{
				Title:           t.Title,
				Day:             daykey.Midnight(destSched),
				TotalMinutes:    destTotal,
				CapacityMinutes: capacity,
			})
			if !ok {
				return model.Task{}, false
			}
			destSched = daykey.NextDay(destSched)
			destKey = daykey.For(destSched)
		}
	}

	s.removeFromBucketLocked(key, idx)

	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.TagKey != nil {
		t.TagKey = *p.TagKey
	}
	if p.Size != nil {
		t.Size = *p.Size
		if p.Duration == nil {
			t.Duration = *p.Size * model.SlotMinutes
		}
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.Status != nil && p.Status.Valid() {
		t.Status = *p.Status
	}
	t.ScheduledAt = destSched
	t.UpdatedAt = now
	t.IsDirty = true
	t.IsSynced = false
	t.Revision = s.nextRevisionLocked()

	dest := s.tasksByDate[destKey]
	if p.Status != nil && *p.Status == model.StatusOngoing {
		for _, did := range demoteOtherOngoing(dest, t.ID, now) {
			if i := indexOf(dest, did); i >= 0 {
				dest[i].Revision = s.nextRevisionLocked()
			}
		}
	}
	dest = append(dest, t)
	sortByStatus(dest)
	s.tasksByDate[destKey] = dest

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()

	if i := indexOf(s.tasksByDate[destKey], id); i >= 0 {
		return s.tasksByDate[destKey][i], true
	}
	return t, true
}

// DeleteTask moves the task into the soft-delete buffer. Unknown ids are a
// silent no-op. Deleting a group promotes its members back to top level;
// deleting a member detaches it from the parent first.
func (s *Store) DeleteTask(id model.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, idx, ok := s.findTaskLocked(id)
	if !ok {
		return false
	}

	now := s.now()
	bucket := s.tasksByDate[key]
	t := bucket[idx]

	if t.ParentID != "" {
		if pi := indexOf(bucket, t.ParentID); pi >= 0 {
			bucket[pi].Subtasks = removeID(bucket[pi].Subtasks, id)
			bucket[pi].UpdatedAt = now
			bucket[pi].IsDirty = true
			bucket[pi].IsSynced = false
			bucket[pi].Revision = s.nextRevisionLocked()
		}
	}
	if t.IsGroup {
		for _, sub := range t.Subtasks {
			if si := indexOf(bucket, sub); si >= 0 {
				bucket[si].ParentID = ""
				bucket[si].Order = maxOrder(bucket) + 1
				bucket[si].UpdatedAt = now
				bucket[si].IsDirty = true
				bucket[si].IsSynced = false
				bucket[si].Revision = s.nextRevisionLocked()
			}
		}
	}

	s.removeFromBucketLocked(key, indexOf(s.tasksByDate[key], id))

	deletedAt := now
	t.DeletedAt = &deletedAt
	t.UpdatedAt = now
	s.deleted[id] = t

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return true
}

// DeleteAllDayTasks moves every task on the given day into the soft-delete
// buffer and removes the bucket. Returns how many tasks were moved.
func (s *Store) DeleteAllDayTasks(day time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := daykey.For(day)
	bucket, ok := s.tasksByDate[key]
	if !ok {
		return 0
	}

	now := s.now()
	for _, t := range bucket {
		deletedAt := now
		t.DeletedAt = &deletedAt
		t.UpdatedAt = now
		s.deleted[t.ID] = t
	}
	delete(s.tasksByDate, key)

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return len(bucket)
}

// TasksForDate returns a copy of the day's bucket, empty when absent.
func (s *Store) TasksForDate(date time.Time) []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBucket(s.tasksByDate[daykey.For(date)])
}

// TasksByDate returns a deep copy of every bucket.
func (s *Store) TasksByDate() map[string][]model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]model.Task, len(s.tasksByDate))
	for k, b := range s.tasksByDate {
		out[k] = copyBucket(b)
	}
	return out
}

// DeletedTasks returns a copy of the soft-delete buffer.
func (s *Store) DeletedTasks() map[model.TaskID]model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[model.TaskID]model.Task, len(s.deleted))
	for id, t := range s.deleted {
		out[id] = t
	}
	return out
}

func (s *Store) SetCurrentDate(date time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentDay = daykey.For(date)
	s.refreshProjectionLocked()
}

func (s *Store) SetDayCapacity(hours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hours > 0 {
		s.dayCapacityHours = hours
	}
	s.refreshProjectionLocked()
}

func (s *Store) DayCapacityHours() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dayCapacityHours
}

// CurrentDayTasks is the projection for the selected day.
func (s *Store) CurrentDayTasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyBucket(s.currentDayTasks)
}

// TotalMinutes sums durations over the selected day's tasks.
func (s *Store) TotalMinutes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalMinutes
}

// DirtySignal fires after mutations that left unsynced local changes. The
// auto-sync loop drains it; the channel never blocks mutators.
func (s *Store) DirtySignal() <-chan struct{} {
	return s.dirtySignal
}

// --- internals ---

type persistedBuckets struct {
	TasksByDate map[string][]model.Task `json:"tasksByDate"`
}

type persistedDeleted struct {
	DeletedTasks map[model.TaskID]model.Task `json:"deletedTasks"`
}

func (s *Store) nextRevisionLocked() int64 {
	s.revision++
	return s.revision
}

func (s *Store) findTaskLocked(id model.TaskID) (string, int, bool) {
	for key, bucket := range s.tasksByDate {
		if i := indexOf(bucket, id); i >= 0 {
			return key, i, true
		}
	}
	return "", 0, false
}

func (s *Store) removeFromBucketLocked(key string, idx int) {
	bucket := s.tasksByDate[key]
	if idx < 0 || idx >= len(bucket) {
		return
	}
	bucket = append(bucket[:idx], bucket[idx+1:]...)
	if len(bucket) == 0 {
		delete(s.tasksByDate, key)
		return
	}
	normalizeOrders(bucket)
	s.tasksByDate[key] = bucket
}

func (s *Store) refreshProjectionLocked() {
	s.currentDayTasks = copyBucket(s.tasksByDate[s.currentDay])
	s.totalMinutes = bucketMinutes(s.currentDayTasks)
}

func (s *Store) persistLocked() {
	if b, err := json.Marshal(persistedBuckets{TasksByDate: s.tasksByDate}); err != nil {
		s.logger.Printf("[agenda] marshal tasks: %v", err)
	} else if err := s.storage.Set(storageKeyTasks, b); err != nil {
		s.logger.Printf("[agenda] persist tasks: %v", err)
	}
	s.persistDeletedLocked()
}

func (s *Store) persistDeletedLocked() {
	if len(s.deleted) == 0 {
		if err := s.storage.Remove(storageKeyDeleted); err != nil {
			s.logger.Printf("[agenda] clear deleted buffer: %v", err)
		}
		return
	}
	if b, err := json.Marshal(persistedDeleted{DeletedTasks: s.deleted}); err != nil {
		s.logger.Printf("[agenda] marshal deleted buffer: %v", err)
	} else if err := s.storage.Set(storageKeyDeleted, b); err != nil {
		s.logger.Printf("[agenda] persist deleted buffer: %v", err)
	}
}

func (s *Store) signalDirty() {
	select {
	case s.dirtySignal <- struct{}{}:
	default:
	}
}

func indexOf(bucket []model.Task, id model.TaskID) int {
	for i := range bucket {
		if bucket[i].ID == id {
			return i
		}
	}
	return -1
}

func removeID(ids []model.TaskID, id model.TaskID) []model.TaskID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func copyBucket(bucket []model.Task) []model.Task {
	out := make([]model.Task, len(bucket))
	copy(out, bucket)
	return out
}
