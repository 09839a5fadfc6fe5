package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"todo-api/internal/domain"
	"todo-api/internal/repository"
)

const createTodosTable = `
CREATE TABLE IF NOT EXISTS todos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	owner TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const createTodosOwnerIndex = `CREATE INDEX IF NOT EXISTS idx_todos_owner ON todos (owner);`

type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) repository.TodoRepository {
	return &TodoRepository{db: db}
}

func (r *TodoRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTodosTable); err != nil {
		return fmt.Errorf("create todos table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createTodosOwnerIndex); err != nil {
		return fmt.Errorf("create todos owner index: %w", err)
	}
	return nil
}

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) (string, error) {
	now := time.Now().UTC()
	todo.ID = uuid.NewString()
	todo.CreatedAt = now
	todo.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO todos (id, title, description, owner, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.Title,
		todo.Description,
		todo.Owner,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		todo.ID = ""
		return "", fmt.Errorf("insert todo: %w", err)
	}
	return todo.ID, nil
}

func (r *TodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, description, owner, created_at, updated_at
FROM todos
WHERE id = ?`,
		id,
	)
	return scanTodo(row)
}

func (r *TodoRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, description, owner, created_at, updated_at
FROM todos
WHERE owner = ?
ORDER BY rowid ASC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		todo, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, *todo)
	}

	return todos, rows.Err()
}

func (r *TodoRepository) Update(ctx context.Context, id, owner, title, description string) (*domain.Todo, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE todos
SET title=?, description=?, updated_at=?
WHERE id=? AND owner=?`,
		title,
		description,
		time.Now().UTC(),
		id,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("update todo: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("todo update rows affected: %w", err)
	}
	if aff == 0 {
		return nil, fmt.Errorf("todo %s: %w", id, repository.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *TodoRepository) Delete(ctx context.Context, id, owner string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id=? AND owner=?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("todo delete rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("todo %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func scanTodo(scanner interface {
	Scan(dest ...any) error
}) (*domain.Todo, error) {
	var (
		todo      domain.Todo
		createdAt time.Time
		updatedAt time.Time
	)

	if err := scanner.Scan(
		&todo.ID,
		&todo.Title,
		&todo.Description,
		&todo.Owner,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("todo: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan todo: %w", err)
	}

	todo.CreatedAt = createdAt.UTC()
	todo.UpdatedAt = updatedAt.UTC()
	return &todo, nil
}
