package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"path"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"todo-api/internal/domain"
	"todo-api/internal/repository"
	"todo-api/internal/storage"
)

var (
	// ErrTodoNotFound is returned when the to-do id does not resolve.
	ErrTodoNotFound = errors.New("todo not found")
	// ErrNotOwner is returned when the caller does not own the to-do.
	ErrNotOwner = errors.New("todo belongs to another user")
	// ErrExportDisabled is returned when no export storage is configured.
	ErrExportDisabled = errors.New("export storage not configured")
)

const (
	exportURLTTL    = 15 * time.Minute
	listReadTimeout = 10 * time.Second
	listGenStripes  = 64
)

// TodoService coordinates the caller-scoped to-do operations.
type TodoService interface {
	ListMine(ctx context.Context, userID string) ([]domain.Todo, error)
	Create(ctx context.Context, userID, title, description string) (*domain.Todo, error)
	UpdateMine(ctx context.Context, userID, id, title, description string) (*domain.Todo, error)
	DeleteMine(ctx context.Context, userID, id string) error
	ExportMine(ctx context.Context, userID string) (*Export, error)
	ListExports(ctx context.Context, userID string) ([]storage.ObjectInfo, error)
}

// ListCache holds list-mine results per owner. Implementations swallow their own failures.
type ListCache interface {
	Get(ctx context.Context, owner string) ([]domain.Todo, bool)
	Set(ctx context.Context, owner string, todos []domain.Todo)
	Invalidate(ctx context.Context, owner string)
}

// EventPublisher receives committed to-do changes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.TodoEvent) error
}

// Export points at an uploaded snapshot of a user's to-dos.
type Export struct {
	Location string
	URL      string
	Count    int
}

// TodoConfig carries the optional collaborators of the to-do service.
type TodoConfig struct {
	Cache   ListCache
	Events  EventPublisher
	Storage storage.Service
	Export  storage.UploadOptions
	Logger  logrus.FieldLogger
}

type todoService struct {
	todos  repository.TodoRepository
	cfg    TodoConfig
	logger logrus.FieldLogger
	now    func() time.Time
	lists  singleflight.Group
	// bumped on every write, striped by owner
	gens [listGenStripes]atomic.Uint64
}

func NewTodoService(todos repository.TodoRepository, cfg TodoConfig) TodoService {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &todoService{
		todos:  todos,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

func (s *todoService) ListMine(ctx context.Context, userID string) ([]domain.Todo, error) {
	if s.cfg.Cache != nil {
		if todos, ok := s.cfg.Cache.Get(ctx, userID); ok {
			return todos, nil
		}
	}

	// concurrent misses for the same owner share one store read
	ch := s.lists.DoChan(userID, func() (interface{}, error) {
		return s.loadList(ctx, userID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.Todo)), nil
	}
}

// loadList reads the owner's items for every caller joined on the flight, so
// it runs without the first caller's cancellation. The cache is filled only
// when no write for the owner landed during the read.
func (s *todoService) loadList(ctx context.Context, userID string) ([]domain.Todo, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listReadTimeout)
	defer cancel()

	gen := s.listGen(userID)
	start := gen.Load()

	todos, err := s.todos.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []domain.Todo{}
	}

	if s.cfg.Cache != nil && gen.Load() == start {
		s.cfg.Cache.Set(ctx, userID, todos)
		// a write may have invalidated before the Set landed
		if gen.Load() != start {
			s.cfg.Cache.Invalidate(ctx, userID)
		}
	}
	return todos, nil
}

func (s *todoService) listGen(owner string) *atomic.Uint64 {
	h := fnv.New32a()
	h.Write([]byte(owner))
	return &s.gens[h.Sum32()%listGenStripes]
}

func (s *todoService) Create(ctx context.Context, userID, title, description string) (*domain.Todo, error) {
	if userID == "" {
		return nil, errors.New("owner is required")
	}

	todo := &domain.Todo{
		Title:       title,
		Description: description,
		Owner:       userID,
	}
	if _, err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}

	s.afterWrite(ctx, domain.TodoCreated, *todo)
	return todo, nil
}

func (s *todoService) UpdateMine(ctx context.Context, userID, id, title, description string) (*domain.Todo, error) {
	if err := s.checkOwner(ctx, userID, id); err != nil {
		return nil, err
	}

	updated, err := s.todos.Update(ctx, id, userID, title, description)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}

	s.afterWrite(ctx, domain.TodoUpdated, *updated)
	return updated, nil
}

func (s *todoService) DeleteMine(ctx context.Context, userID, id string) error {
	if err := s.checkOwner(ctx, userID, id); err != nil {
		return err
	}

	if err := s.todos.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTodoNotFound
		}
		return err
	}

	s.afterWrite(ctx, domain.TodoDeleted, domain.Todo{ID: id, Owner: userID})
	return nil
}

func (s *todoService) ExportMine(ctx context.Context, userID string) (*Export, error) {
	if s.cfg.Storage == nil || s.cfg.Export.Bucket == "" {
		return nil, ErrExportDisabled
	}

	todos, err := s.todos.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	body, err := json.MarshalIndent(newExportDocument(userID, now, todos), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := path.Join(s.exportPrefix(userID), now.Format("20060102T150405Z")+".json")
	location, err := s.cfg.Storage.PutObject(ctx, key, body, s.cfg.Export)
	if err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}

	url, err := s.cfg.Storage.GetObjectURL(ctx, s.cfg.Export.Bucket, key, exportURLTTL)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}

	return &Export{Location: location, URL: url, Count: len(todos)}, nil
}

func (s *todoService) ListExports(ctx context.Context, userID string) ([]storage.ObjectInfo, error) {
	if s.cfg.Storage == nil || s.cfg.Export.Bucket == "" {
		return nil, ErrExportDisabled
	}
	return s.cfg.Storage.ListObjects(ctx, s.cfg.Export.Bucket, s.exportPrefix(userID)+"/")
}

func (s *todoService) exportPrefix(userID string) string {
	return path.Join(strings.Trim(s.cfg.Export.KeyPrefix, "/"), userID)
}

func (s *todoService) checkOwner(ctx context.Context, userID, id string) error {
	todo, err := s.todos.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrTodoNotFound
		}
		return err
	}
	if todo.Owner != userID {
		return ErrNotOwner
	}
	return nil
}

func (s *todoService) afterWrite(ctx context.Context, kind domain.TodoEventType, todo domain.Todo) {
	s.listGen(todo.Owner).Add(1)
	s.lists.Forget(todo.Owner)
	if s.cfg.Cache != nil {
		s.cfg.Cache.Invalidate(ctx, todo.Owner)
	}
	if s.cfg.Events != nil {
		event := domain.TodoEvent{Type: kind, Todo: todo, OccurredAt: s.now().UTC()}
		if err := s.cfg.Events.Publish(ctx, event); err != nil {
			s.logger.WithError(err).WithField("todo_id", todo.ID).Warnf("publish todo %s event", kind)
		}
	}
}

type exportDocument struct {
	UserID     string       `json:"userId"`
	ExportedAt time.Time    `json:"exportedAt"`
	Todos      []exportTodo `json:"todos"`
}

type exportTodo struct {
	ID          string    `json:"_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func newExportDocument(userID string, at time.Time, todos []domain.Todo) exportDocument {
	doc := exportDocument{
		UserID:     userID,
		ExportedAt: at,
		Todos:      make([]exportTodo, len(todos)),
	}
	for i, todo := range todos {
		doc.Todos[i] = exportTodo{
			ID:          todo.ID,
			Title:       todo.Title,
			Description: todo.Description,
			CreatedAt:   todo.CreatedAt,
			UpdatedAt:   todo.UpdatedAt,
		}
	}
	return doc
}
