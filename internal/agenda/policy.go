package agenda

import (
	"sort"
	"time"

	"dayparty/internal/model"
)

// statusRank orders buckets after a status-affecting mutation:
// ongoing first, then paused, pending, done.
func statusRank(s model.Status) int {
	switch s {
	case model.StatusOngoing:
		return 0
	case model.StatusPaused:
		return 1
	case model.StatusPending:
		return 2
	case model.StatusDone:
		return 3
	}
	return 2
}

// sortByStatus applies the status-priority comparator, keeping prior
// relative order inside each status group, then renormalizes orders.
func sortByStatus(bucket []model.Task) {
	sort.SliceStable(bucket, func(i, j int) bool {
		ri, rj := statusRank(bucket[i].Status), statusRank(bucket[j].Status)
		if ri != rj {
			return ri < rj
		}
		return bucket[i].Order < bucket[j].Order
	})
	normalizeOrders(bucket)
}

// sortByOrder restores plain positional order (used for loaded and pulled
// buckets, and after direct reorders).
func sortByOrder(bucket []model.Task) {
	sort.SliceStable(bucket, func(i, j int) bool {
		return bucket[i].Order < bucket[j].Order
	})
}

// normalizeOrders reassigns Order so top-level tasks form the dense
// sequence [0..n-1] matching their slice positions. Subtasks keep their
// position within the parent group instead.
func normalizeOrders(bucket []model.Task) {
	next := 0
	for i := range bucket {
		if !bucket[i].TopLevel() {
			continue
		}
		bucket[i].Order = next
		next++
	}
}

// maxOrder returns the highest top-level order in the bucket, or -1.
func maxOrder(bucket []model.Task) int {
	max := -1
	for i := range bucket {
		if bucket[i].TopLevel() && bucket[i].Order > max {
			max = bucket[i].Order
		}
	}
	return max
}

// bucketMinutes sums scheduled durations for a bucket. Group entries are
// containers; their members carry the minutes.
func bucketMinutes(bucket []model.Task) int {
	total := 0
	for i := range bucket {
		if bucket[i].IsGroup {
			continue
		}
		total += bucket[i].Duration
	}
	return total
}

// demoteOtherOngoing pauses every ongoing task in the bucket except keep.
// Returns the ids that were demoted.
func demoteOtherOngoing(bucket []model.Task, keep model.TaskID, now time.Time) []model.TaskID {
	var demoted []model.TaskID
	for i := range bucket {
		if bucket[i].ID == keep || bucket[i].Status != model.StatusOngoing {
			continue
		}
		bucket[i].Status = model.StatusPaused
		bucket[i].UpdatedAt = now
		bucket[i].IsDirty = true
		bucket[i].IsSynced = false
		demoted = append(demoted, bucket[i].ID)
	}
	return demoted
}

// healSingleOngoing demotes all but the most-recently-updated ongoing task
// to paused. Used on load to self-heal state left by a partial failure.
func healSingleOngoing(bucket []model.Task, now time.Time) bool {
	latest := -1
	for i := range bucket {
		if bucket[i].Status != model.StatusOngoing {
			continue
		}
		if latest < 0 || bucket[i].UpdatedAt.After(bucket[latest].UpdatedAt) {
			latest = i
		}
	}
	if latest < 0 {
		return false
	}
	changed := false
	for i := range bucket {
		if i == latest || bucket[i].Status != model.StatusOngoing {
			continue
		}
		bucket[i].Status = model.StatusPaused
		bucket[i].UpdatedAt = now
		bucket[i].IsDirty = true
		bucket[i].IsSynced = false
		changed = true
	}
	return changed
}
