package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"primetrade/internal/apperr"
	"primetrade/internal/models"
	"primetrade/internal/util"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store persists task records.
type Store interface {
	Insert(ctx context.Context, t *models.Task) error
	FindByID(ctx context.Context, id string) (*models.Task, error)
	ListByEmail(ctx context.Context, email string) ([]models.Task, error)
	Update(ctx context.Context, t *models.Task) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// Images stores uploaded files by name.
type Images interface {
	Save(originalName string, r io.Reader) (string, error)
	Remove(name string) error
}

// Upload is an image file received with a request.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	store  Store
	images Images
	logger *slog.Logger
}

func NewService(store Store, images Images, logger *slog.Logger) *Service {
	return &Service{store: store, images: images, logger: logger}
}

type CreateRequest struct {
	Title       string
	Description string
	Status      string
	DueDate     string
	Email       string
	Image       *Upload
}

// Create validates req, stores its image if any, then inserts the task.
// Due dates in the past are accepted.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Task, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Validation("Title is required")
	}
	email := util.NormalizeEmail(req.Email)
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	if strings.TrimSpace(req.DueDate) == "" {
		return nil, apperr.Validation("Due date is required")
	}
	due, err := util.ParseDate(req.DueDate)
	if err != nil {
		return nil, apperr.Validation("Invalid dueDate")
	}
	status := models.StatusPending
	if req.Status != "" {
		status = models.TaskStatus(req.Status)
		if !status.Valid() {
			return nil, apperr.Validation("Invalid status")
		}
	}

	task := &models.Task{
		Title:       title,
		Description: req.Description,
		Status:      status,
		DueDate:     due,
		Email:       email,
	}
	if req.Image != nil {
		name, err := s.images.Save(req.Image.Filename, req.Image.Body)
		if err != nil {
			return nil, fmt.Errorf("save image: %w", err)
		}
		task.Image = name
	}
	if err := s.store.Insert(ctx, task); err != nil {
		s.discard(task.Image)
		return nil, err
	}
	s.logger.Info("task created", slog.String("id", task.ID.Hex()), slog.String("email", email))
	return task, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	return s.store.FindByID(ctx, id)
}

// ListByEmail returns the owner's tasks newest first; having none is NotFound.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]models.Task, error) {
	email = util.NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Validation("Email is required")
	}
	tasks, err := s.store.ListByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, apperr.NotFound("No tasks found for this email")
	}
	return tasks, nil
}

type UpdateRequest struct {
	Title       string
	Description string
	Status      string
	DueDate     string
	Image       *Upload
}

// Update replaces the non-empty fields of the task. A new image replaces
// the stored one, whose file is removed once the record points elsewhere.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*models.Task, error) {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		task.Title = title
	}
	if req.Description != "" {
		task.Description = req.Description
	}
	if req.Status != "" {
		status := models.TaskStatus(req.Status)
		if !status.Valid() {
			return nil, apperr.Validation("Invalid status")
		}
		task.Status = status
	}
	if strings.TrimSpace(req.DueDate) != "" {
		due, err := util.ParseDate(req.DueDate)
		if err != nil {
			return nil, apperr.Validation("Invalid dueDate")
		}
		task.DueDate = due
	}

	oldImage := task.Image
	if req.Image != nil {
		name, err := s.images.Save(req.Image.Filename, req.Image.Body)
		if err != nil {
			return nil, fmt.Errorf("save image: %w", err)
		}
		task.Image = name
	}
	if err := s.store.Update(ctx, task); err != nil {
		if task.Image != oldImage {
			s.discard(task.Image)
		}
		return nil, err
	}
	if task.Image != oldImage {
		s.discard(oldImage)
	}
	return task, nil
}

// Delete removes the task and its stored image.
func (s *Service) Delete(ctx context.Context, id string) error {
	task, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, task.ID); err != nil {
		return err
	}
	s.discard(task.Image)
	s.logger.Info("task deleted", slog.String("id", task.ID.Hex()))
	return nil
}

func (s *Service) discard(name string) {
	if name == "" {
		return
	}
	if err := s.images.Remove(name); err != nil {
		s.logger.Warn("remove image failed", slog.String("image", name), slog.String("error", err.Error()))
	}
}
