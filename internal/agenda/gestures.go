package agenda

import (
	"github.com/google/uuid"

	"dayparty/internal/model"
)

// Gesture outcomes from the planner UI translated into store mutations.
// Every operation here is a silent no-op when a referenced task id cannot
// be found; no partial state change is ever committed.

// MoveTask drops the active task at the over task's position within their
// shared day. A plain reorder: orders are assigned from the new positions
// directly, without reapplying the status comparator.
func (s *Store) MoveTask(activeID, overID model.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, from, ok := s.findTaskLocked(activeID)
	if !ok {
		return false
	}
	bucket := s.tasksByDate[key]
	to := indexOf(bucket, overID)
	if to < 0 || from == to {
		return false
	}
	if !bucket[from].TopLevel() || !bucket[to].TopLevel() {
		return false
	}

	before := orderSnapshot(bucket)
	moved := arrayMove(bucket, from, to)
	normalizeOrders(moved)
	s.markOrderChangesLocked(moved, before)
	s.tasksByDate[key] = moved

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return true
}

// GroupTasks drops the active task onto the target, creating a synthetic
// group cloned from the target's scheduling attributes with both tasks as
// members. Dropping onto an existing group appends instead.
func (s *Store) GroupTasks(activeID, targetID model.TaskID) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ai, ok := s.findTaskLocked(activeID)
	if !ok {
		return model.Task{}, false
	}
	bucket := s.tasksByDate[key]
	ti := indexOf(bucket, targetID)
	if ti < 0 || ai == ti {
		return model.Task{}, false
	}
	if bucket[ti].IsGroup {
		if !s.addToGroupLocked(key, activeID, targetID) {
			return model.Task{}, false
		}
		return s.tasksByDate[key][indexOf(s.tasksByDate[key], targetID)], true
	}
	if !bucket[ai].TopLevel() || !bucket[ti].TopLevel() {
		return model.Task{}, false
	}

	now := s.now()
	target := bucket[ti]
	group := model.Task{
		ID:          model.TaskID(uuid.NewString()),
		Title:       target.Title,
		TagKey:      target.TagKey,
		ScheduledAt: target.ScheduledAt,
		Order:       target.Order,
		Size:        target.Size + bucket[ai].Size,
		Duration:    target.Duration + bucket[ai].Duration,
		Status:      model.StatusPending,
		IsGroup:     true,
		Subtasks:    []model.TaskID{target.ID, activeID},
		IsDirty:     true,
		Revision:    s.nextRevisionLocked(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for i, id := range []model.TaskID{targetID, activeID} {
		idx := indexOf(bucket, id)
		bucket[idx].ParentID = group.ID
		bucket[idx].Order = i
		bucket[idx].UpdatedAt = now
		bucket[idx].IsDirty = true
		bucket[idx].IsSynced = false
		bucket[idx].Revision = s.nextRevisionLocked()
	}

	bucket = append(bucket, group)
	sortByOrder(bucket)
	normalizeOrders(bucket)
	s.tasksByDate[key] = bucket

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return group, true
}

// AddToGroup appends the active task to an existing group's members.
func (s *Store) AddToGroup(activeID, groupID model.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, _, ok := s.findTaskLocked(activeID)
	if !ok {
		return false
	}
	if !s.addToGroupLocked(key, activeID, groupID) {
		return false
	}
	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return true
}

func (s *Store) addToGroupLocked(key string, activeID, groupID model.TaskID) bool {
	bucket := s.tasksByDate[key]
	gi := indexOf(bucket, groupID)
	ai := indexOf(bucket, activeID)
	if gi < 0 || ai < 0 || !bucket[gi].IsGroup || bucket[gi].HasSubtask(activeID) {
		return false
	}
	if !bucket[ai].TopLevel() {
		return false
	}

	now := s.now()
	bucket[gi].Subtasks = append(bucket[gi].Subtasks, activeID)
	bucket[gi].Size += bucket[ai].Size
	bucket[gi].Duration += bucket[ai].Duration
	bucket[gi].UpdatedAt = now
	bucket[gi].IsDirty = true
	bucket[gi].IsSynced = false
	bucket[gi].Revision = s.nextRevisionLocked()

	bucket[ai].ParentID = groupID
	bucket[ai].Order = len(bucket[gi].Subtasks) - 1
	bucket[ai].UpdatedAt = now
	bucket[ai].IsDirty = true
	bucket[ai].IsSynced = false
	bucket[ai].Revision = s.nextRevisionLocked()

	normalizeOrders(bucket)
	s.tasksByDate[key] = bucket
	return true
}

// Ungroup detaches a member from its parent group and reinserts it at the
// end of the day's top-level list.
func (s *Store) Ungroup(subtaskID model.TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, si, ok := s.findTaskLocked(subtaskID)
	if !ok {
		return false
	}
	bucket := s.tasksByDate[key]
	if bucket[si].ParentID == "" {
		return false
	}
	pi := indexOf(bucket, bucket[si].ParentID)
	if pi < 0 {
		return false
	}

	now := s.now()
	bucket[pi].Subtasks = removeID(bucket[pi].Subtasks, subtaskID)
	bucket[pi].Size -= bucket[si].Size
	bucket[pi].Duration -= bucket[si].Duration
	bucket[pi].UpdatedAt = now
	bucket[pi].IsDirty = true
	bucket[pi].IsSynced = false
	bucket[pi].Revision = s.nextRevisionLocked()

	bucket[si].ParentID = ""
	bucket[si].Order = maxOrder(bucket) + 1
	bucket[si].UpdatedAt = now
	bucket[si].IsDirty = true
	bucket[si].IsSynced = false
	bucket[si].Revision = s.nextRevisionLocked()

	sortByOrder(bucket)
	normalizeOrders(bucket)
	s.tasksByDate[key] = bucket

	s.refreshProjectionLocked()
	s.persistLocked()
	s.signalDirty()
	return true
}

func arrayMove(bucket []model.Task, from, to int) []model.Task {
	out := make([]model.Task, 0, len(bucket))
	out = append(out, bucket[:from]...)
	out = append(out, bucket[from+1:]...)
	if to > len(out) {
		to = len(out)
	}
	out = append(out[:to], append([]model.Task{bucket[from]}, out[to:]...)...)
	return out
}

func orderSnapshot(bucket []model.Task) map[model.TaskID]int {
	snap := make(map[model.TaskID]int, len(bucket))
	for _, t := range bucket {
		snap[t.ID] = t.Order
	}
	return snap
}

func (s *Store) markOrderChangesLocked(bucket []model.Task, before map[model.TaskID]int) {
	now := s.now()
	for i := range bucket {
		if prev, ok := before[bucket[i].ID]; ok && prev == bucket[i].Order {
			continue
		}
		bucket[i].UpdatedAt = now
		bucket[i].IsDirty = true
		bucket[i].IsSynced = false
		bucket[i].Revision = s.nextRevisionLocked()
	}
}
