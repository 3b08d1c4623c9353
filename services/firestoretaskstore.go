package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"smartplanr/model"
)

const (
	usersCollection = "users"
	todosCollection = "todos"
)

// FirestoreTaskStore keeps tasks in users/{userId}/todos. Concurrent writers
// are resolved by Firestore per field, last write wins.
type FirestoreTaskStore struct {
	client *firestore.Client
	logger *log.Logger
	now    func() time.Time
}

func NewFirestoreTaskStore(client *firestore.Client, logger *log.Logger) *FirestoreTaskStore {
	return &FirestoreTaskStore{client: client, logger: logger, now: time.Now}
}

func (s *FirestoreTaskStore) todos(userID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(todosCollection)
}

func (s *FirestoreTaskStore) Subscribe(ctx context.Context, userID string) (<-chan []model.Task, error) {
	it := s.todos(userID).Snapshots(ctx)
	ch := make(chan []model.Task, 1)

	go func() {
		defer close(ch)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && status.Code(err) != codes.Canceled {
					s.logger.Error("task subscription ended", "user", userID, "err", err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				s.logger.Error("reading task snapshot", "user", userID, "err", err)
				return
			}
			publishLatest(ch, decodeTasks(docs, s.logger))
		}
	}()
	return ch, nil
}

func (s *FirestoreTaskStore) List(ctx context.Context, userID string) ([]model.Task, error) {
	iter := s.todos(userID).Documents(ctx)
	defer iter.Stop()

	var docs []*firestore.DocumentSnapshot
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing tasks: %w", err)
		}
		docs = append(docs, doc)
	}
	return decodeTasks(docs, s.logger), nil
}

func (s *FirestoreTaskStore) Create(ctx context.Context, userID, title string, due time.Time, category string) (model.Task, error) {
	task, err := newTask(uuid.New().String(), title, due, s.now(), category)
	if err != nil {
		return model.Task{}, err
	}
	if _, err := s.todos(userID).Doc(task.ID).Set(ctx, task); err != nil {
		return model.Task{}, fmt.Errorf("creating task: %w", err)
	}
	return task, nil
}

func (s *FirestoreTaskStore) SetDone(ctx context.Context, userID, taskID string, done bool) error {
	_, err := s.todos(userID).Doc(taskID).Update(ctx, []firestore.Update{
		{Path: "isDone", Value: done},
	})
	return notFoundOr(err, "task "+taskID)
}

func (s *FirestoreTaskStore) Delete(ctx context.Context, userID, taskID string) error {
	_, err := s.todos(userID).Doc(taskID).Delete(ctx, firestore.Exists)
	return notFoundOr(err, "task "+taskID)
}

func decodeTasks(docs []*firestore.DocumentSnapshot, logger *log.Logger) []model.Task {
	tasks := make([]model.Task, 0, len(docs))
	for _, doc := range docs {
		var t model.Task
		if err := doc.DataTo(&t); err != nil {
			logger.Warn("skipping undecodable task", "doc", doc.Ref.Path, "err", err)
			continue
		}
		if t.ID == "" {
			t.ID = doc.Ref.ID
		}
		t.Category = model.NormalizeCategory(t.Category)
		tasks = append(tasks, t)
	}
	return tasks
}
