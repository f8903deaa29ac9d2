package agenda

import (
	"context"
	"encoding/json"
	"time"

	"dayparty/internal/daykey"
	"dayparty/internal/model"
)

// Remote is the server-side task store the agenda reconciles against.
// Implementations must enforce user identity themselves; the agenda never
// sends an authoritative userId.
type Remote interface {
	// FetchTasks returns every task for the authenticated user.
	FetchTasks(ctx context.Context) ([]model.Task, error)
	// PushBatch upserts the dirty tasks and deletes the soft-deleted ones.
	PushBatch(ctx context.Context, upserts []model.Task, deletes []model.Task) error
}

// Initialize loads persisted local state and, when a remote is configured,
// pushes offline edits before pulling the authoritative snapshot. A corrupt
// local blob falls back to an empty agenda; remote failures are logged and
// leave the local state untouched. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	s.loadLocked()

	now := s.now()
	for key, bucket := range s.tasksByDate {
		sortByOrder(bucket)
		healSingleOngoing(bucket, now)
		s.tasksByDate[key] = bucket
	}
	s.refreshProjectionLocked()
	s.persistLocked()
	s.mu.Unlock()

	if s.remote == nil {
		return
	}
	if err := s.ForceSync(ctx); err != nil {
		s.logger.Printf("[agenda] boot push failed: %v", err)
	}
	s.pull(ctx)
}

// ForceSync pushes every dirty task plus the soft-delete buffer in one
// batch. On success it clears dirty flags, but only on tasks whose
// revision is unchanged since the batch was captured, so an edit made while
// the push was in flight stays dirty for the next cycle. The returned error
// is informational; local state is never rolled back.
func (s *Store) ForceSync(ctx context.Context) error {
	if s.remote == nil {
		return nil
	}

	s.mu.Lock()
	var upserts []model.Task
	revs := map[model.TaskID]int64{}
	for _, bucket := range s.tasksByDate {
		for _, t := range bucket {
			if t.IsDirty {
				upserts = append(upserts, t)
				revs[t.ID] = t.Revision
			}
		}
	}
	deletes := make([]model.Task, 0, len(s.deleted))
	for _, t := range s.deleted {
		deletes = append(deletes, t)
	}
	s.mu.Unlock()

	if len(upserts) == 0 && len(deletes) == 0 {
		return nil
	}

	if err := s.remote.PushBatch(ctx, upserts, deletes); err != nil {
		s.logger.Printf("[agenda] push failed (%d upserts, %d deletes): %v", len(upserts), len(deletes), err)
		return err
	}

	now := s.now()
	s.mu.Lock()
	for _, pushed := range upserts {
		// Match back by id and day key; a task that moved buckets or was
		// deleted again since capture is skipped, not forced.
		bucket := s.tasksByDate[daykey.For(pushed.ScheduledAt)]
		i := indexOf(bucket, pushed.ID)
		if i < 0 || bucket[i].Revision != revs[pushed.ID] {
			continue
		}
		syncedAt := now
		bucket[i].IsDirty = false
		bucket[i].IsSynced = true
		bucket[i].LastSyncedAt = &syncedAt
	}
	for _, pushed := range deletes {
		delete(s.deleted, pushed.ID)
	}
	s.persistLocked()
	s.mu.Unlock()
	return nil
}

// pull replaces local buckets with the remote snapshot. Tasks that are
// still locally dirty (a failed push, or an edit made while the pull was in
// flight) are preserved over their remote copies, and tasks sitting in the
// soft-delete buffer are not resurrected by their remote copies.
func (s *Store) pull(ctx context.Context) {
	remoteTasks, err := s.remote.FetchTasks(ctx)
	if err != nil {
		s.logger.Printf("[agenda] pull failed: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := map[string][]model.Task{}
	for _, t := range remoteTasks {
		if _, gone := s.deleted[t.ID]; gone {
			continue
		}
		t.IsDirty = false
		t.IsSynced = true
		t.Revision = s.nextRevisionLocked()
		key := daykey.For(t.ScheduledAt)
		next[key] = append(next[key], t)
	}
	for _, bucket := range s.tasksByDate {
		for _, t := range bucket {
			if !t.IsDirty {
				continue
			}
			key := daykey.For(t.ScheduledAt)
			if i := indexOf(next[key], t.ID); i >= 0 {
				next[key][i] = t
			} else {
				next[key] = append(next[key], t)
			}
		}
	}
	now := s.now()
	for key, bucket := range next {
		sortByOrder(bucket)
		normalizeOrders(bucket)
		healSingleOngoing(bucket, now)
		next[key] = bucket
	}

	s.tasksByDate = next
	s.refreshProjectionLocked()
	s.persistLocked()
}

// StartAutoSync runs ForceSync on the given interval and whenever a
// mutation signals unsynced changes, until ctx is done. Overlap-safe:
// each cycle recomputes its dirty set from scratch.
func (s *Store) StartAutoSync(ctx context.Context, interval time.Duration) {
	if s.remote == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-s.dirtySignal:
			}
			if err := s.ForceSync(ctx); err != nil {
				s.logger.Printf("[agenda] background sync: %v", err)
			}
		}
	}()
}

func (s *Store) loadLocked() {
	s.tasksByDate = map[string][]model.Task{}
	s.deleted = map[model.TaskID]model.Task{}

	if b, err := s.storage.Get(storageKeyTasks); err != nil {
		s.logger.Printf("[agenda] read tasks blob: %v", err)
	} else if len(b) > 0 {
		var loaded persistedBuckets
		if err := json.Unmarshal(b, &loaded); err != nil {
			s.logger.Printf("[agenda] corrupt tasks blob, starting empty: %v", err)
		} else if loaded.TasksByDate != nil {
			s.tasksByDate = loaded.TasksByDate
		}
	}

	if b, err := s.storage.Get(storageKeyDeleted); err != nil {
		s.logger.Printf("[agenda] read deleted blob: %v", err)
	} else if len(b) > 0 {
		var loaded persistedDeleted
		if err := json.Unmarshal(b, &loaded); err != nil {
			s.logger.Printf("[agenda] corrupt deleted blob, starting empty: %v", err)
		} else if loaded.DeletedTasks != nil {
			s.deleted = loaded.DeletedTasks
		}
	}

	// Revisions restart at the highest persisted value so the monotonic
	// guarantee survives a reload.
	for _, bucket := range s.tasksByDate {
		for _, t := range bucket {
			if t.Revision > s.revision {
				s.revision = t.Revision
			}
		}
	}
}
