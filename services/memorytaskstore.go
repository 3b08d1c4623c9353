package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartplanr/model"
)

// MemoryTaskStore keeps tasks in process memory. It backs local
// development and tests, and behaves like the Firestore store.
type MemoryTaskStore struct {
	mu     sync.Mutex
	tasks  map[string][]model.Task // userID -> tasks in insertion order
	subs   map[string]map[int]chan []model.Task
	nextID int

	// Now is the clock used for validation and creation stamps.
	Now func() time.Time
}

func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[string][]model.Task),
		subs:  make(map[string]map[int]chan []model.Task),
		Now:   time.Now,
	}
}

// Put stores a task as-is, bypassing validation. Useful for seeding.
func (m *MemoryTaskStore) Put(userID string, task model.Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task.Category = model.NormalizeCategory(task.Category)
	for i, t := range m.tasks[userID] {
		if t.ID == task.ID {
			m.tasks[userID][i] = task
			m.broadcastLocked(userID)
			return
		}
	}
	m.tasks[userID] = append(m.tasks[userID], task)
	m.broadcastLocked(userID)
}

func (m *MemoryTaskStore) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, error) {
	ch := make(chan []model.Task, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.subs[userID] == nil {
		m.subs[userID] = make(map[int]chan []model.Task)
	}
	m.subs[userID][id] = ch
	publishLatest(ch, m.snapshotLocked(userID))
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[userID], id)
		close(ch)
	}()
	return ch, nil
}

func (m *MemoryTaskStore) List(ctx context.Context, userID string) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(userID), nil
}

func (m *MemoryTaskStore) Create(ctx context.Context, userID, title string, due time.Time, category string) (model.Task, error) {
	task, err := newTask(uuid.New().String(), title, due, m.Now(), category)
	if err != nil {
		return model.Task{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[userID] = append(m.tasks[userID], task)
	m.broadcastLocked(userID)
	return task, nil
}

func (m *MemoryTaskStore) SetDone(ctx context.Context, userID, taskID string, done bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks[userID] {
		if t.ID == taskID {
			m.tasks[userID][i].IsDone = done
			m.broadcastLocked(userID)
			return nil
		}
	}
	return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
}

func (m *MemoryTaskStore) Delete(ctx context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := m.tasks[userID]
	for i, t := range tasks {
		if t.ID == taskID {
			m.tasks[userID] = append(tasks[:i:i], tasks[i+1:]...)
			m.broadcastLocked(userID)
			return nil
		}
	}
	return fmt.Errorf("%w: task %s", ErrNotFound, taskID)
}

func (m *MemoryTaskStore) snapshotLocked(userID string) []model.Task {
	out := make([]model.Task, len(m.tasks[userID]))
	copy(out, m.tasks[userID])
	return out
}

func (m *MemoryTaskStore) broadcastLocked(userID string) {
	for _, ch := range m.subs[userID] {
		publishLatest(ch, m.snapshotLocked(userID))
	}
}
