package repository

import (
	"context"
	"errors"

	"todo-api/internal/domain"
)

var (
	// ErrNotFound is returned when no document matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("duplicate key")
)

// TodoRepository exposes persistence operations for Todo items.
//
// Update and Delete match on both id and owner; a mismatch on either is
// reported as ErrNotFound.
type TodoRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, todo *domain.Todo) (string, error)
	Get(ctx context.Context, id string) (*domain.Todo, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Todo, error)
	Update(ctx context.Context, id, owner, title, description string) (*domain.Todo, error)
	Delete(ctx context.Context, id, owner string) error
}
