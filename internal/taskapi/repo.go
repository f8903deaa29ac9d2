// Package taskapi is the server-side task store: the authoritative copy a
// client agenda syncs against. Tasks are scoped per user; a task's userId
// always comes from the authenticated session, never from client input.
package taskapi

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dayparty/internal/model"
)

var ErrNotFound = errors.New("task not found")

type Repo interface {
	// List returns every task for the scoped user, ordered by scheduledAt
	// then order.
	List() ([]model.Task, error)
	// UpsertBatch stores the tasks, forcing UserID to the scoped user and
	// marking each copy synced.
	UpsertBatch(tasks []model.Task, now time.Time) (int, error)
	// DeleteBatch removes tasks by id; unknown ids are skipped.
	DeleteBatch(ids []model.TaskID) (int, error)
}

type fileState struct {
	Users map[string]userTaskState `json:"users"`
}

type userTaskState struct {
	Tasks map[model.TaskID]model.Task `json:"tasks"`
}

type fileStore struct {
	mu   sync.RWMutex
	path string
	s    fileState
}

// FileRepo is a persistent, user-scoped task repository. Call
// ForUser(userID) to get a scoped view sharing the same backing file.
type FileRepo struct {
	store  *fileStore
	userID string
}

func NewFileRepo(dataDir string) (*FileRepo, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	st := &fileStore{
		path: filepath.Join(dataDir, "tasks.json"),
		s:    fileState{Users: map[string]userTaskState{}},
	}
	if err := st.load(); err != nil {
		return nil, err
	}
	return &FileRepo{store: st, userID: "default"}, nil
}

func (s *fileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.s = fileState{Users: map[string]userTaskState{}}
			return nil
		}
		return err
	}
	var loaded fileState
	if err := json.Unmarshal(b, &loaded); err != nil {
		return err
	}
	if loaded.Users == nil {
		loaded.Users = map[string]userTaskState{}
	}
	for uid, us := range loaded.Users {
		if us.Tasks == nil {
			us.Tasks = map[model.TaskID]model.Task{}
			loaded.Users[uid] = us
		}
	}
	s.s = loaded
	return nil
}

func (s *fileStore) saveLocked() error {
	b, err := json.MarshalIndent(s.s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}

func (r *FileRepo) ForUser(userID string) *FileRepo {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = "default"
	}
	return &FileRepo{store: r.store, userID: userID}
}

func (r *FileRepo) userStateLocked() userTaskState {
	us, ok := r.store.s.Users[r.userID]
	if !ok || us.Tasks == nil {
		us = userTaskState{Tasks: map[model.TaskID]model.Task{}}
		r.store.s.Users[r.userID] = us
	}
	return us
}

func (r *FileRepo) List() ([]model.Task, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	us, ok := r.store.s.Users[r.userID]
	if !ok || us.Tasks == nil {
		return []model.Task{}, nil
	}
	out := make([]model.Task, 0, len(us.Tasks))
	for _, t := range us.Tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

func (r *FileRepo) UpsertBatch(tasks []model.Task, now time.Time) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	us := r.userStateLocked()
	stored := 0
	for _, t := range tasks {
		if strings.TrimSpace(string(t.ID)) == "" {
			continue
		}
		t.UserID = r.userID
		t.IsDirty = false
		t.IsSynced = true
		syncedAt := now
		t.LastSyncedAt = &syncedAt
		t.DeletedAt = nil
		us.Tasks[t.ID] = t
		stored++
	}
	r.store.s.Users[r.userID] = us
	if err := r.store.saveLocked(); err != nil {
		return 0, err
	}
	return stored, nil
}

func (r *FileRepo) DeleteBatch(ids []model.TaskID) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	us := r.userStateLocked()
	removed := 0
	for _, id := range ids {
		if _, ok := us.Tasks[id]; ok {
			delete(us.Tasks, id)
			removed++
		}
	}
	r.store.s.Users[r.userID] = us
	if err := r.store.saveLocked(); err != nil {
		return 0, err
	}
	return removed, nil
}
