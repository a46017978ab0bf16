package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"primetrade/internal/apperr"
	"primetrade/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var errTaskNotFound = apperr.NotFound("Task not found")

// TaskStore persists task records in MongoDB.
type TaskStore struct {
	col *mongo.Collection
	now func() time.Time
}

func NewTaskStore(col *mongo.Collection) *TaskStore {
	return &TaskStore{col: col, now: func() time.Time { return time.Now().UTC() }}
}

func (s *TaskStore) Insert(ctx context.Context, t *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	res, err := s.col.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = id
	}
	return nil
}

// FindByID returns the task with the given hex id. A malformed id is
// reported as not found.
func (s *TaskStore) FindByID(ctx context.Context, id string) (*models.Task, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errTaskNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var task models.Task
	if err := s.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&task); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return &task, nil
}

// ListByEmail returns the owner's tasks, newest first.
func (s *TaskStore) ListByEmail(ctx context.Context, email string) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := s.col.Find(ctx, bson.M{"email": email}, opts)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	tasks := []models.Task{}
	if err := cur.All(ctx, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// Update writes the editable fields of t.
func (s *TaskStore) Update(ctx context.Context, t *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	t.UpdatedAt = s.now()
	set := bson.M{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"dueDate":     t.DueDate,
		"updatedAt":   t.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if t.Image != "" {
		set["image"] = t.Image
	} else {
		update["$unset"] = bson.M{"image": ""}
	}
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": t.ID}, update)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return errTaskNotFound
	}
	return nil
}

func (s *TaskStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := s.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.DeletedCount == 0 {
		return errTaskNotFound
	}
	return nil
}
