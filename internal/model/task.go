package model

import (
	"time"
)

type TaskID string

// Status is a task's execution lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusOngoing Status = "ongoing"
	StatusPaused  Status = "paused"
	StatusDone    Status = "done"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOngoing, StatusPaused, StatusDone:
		return true
	}
	return false
}

// SlotMinutes is the scheduling unit: one size block is 15 minutes.
const SlotMinutes = 15

type Task struct {
	ID     TaskID `json:"id"`
	UserID string `json:"userId,omitempty"`

	Title  string `json:"title"`
	TagKey string `json:"tagKey,omitempty"`

	ScheduledAt time.Time `json:"scheduledAt"`
	Order       int       `json:"order"`
	Size        int       `json:"size"`     // 15-minute blocks
	Duration    int       `json:"duration"` // minutes; defaults to Size*SlotMinutes
	Status      Status    `json:"status"`

	IsGroup  bool     `json:"isGroup,omitempty"`
	ParentID TaskID   `json:"parentId,omitempty"`
	Subtasks []TaskID `json:"subtasks,omitempty"`

	IsDirty      bool       `json:"isDirty"`
	IsSynced     bool       `json:"isSynced"`
	Revision     int64      `json:"revision,omitempty"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TopLevel reports whether the task participates in its day bucket's
// ordering. Subtasks live inside their parent group instead.
func (t *Task) TopLevel() bool {
	return t.ParentID == ""
}

func (t *Task) HasSubtask(id TaskID) bool {
	for _, s := range t.Subtasks {
		if s == id {
			return true
		}
	}
	return false
}
