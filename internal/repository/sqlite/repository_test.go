package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todo-api/internal/domain"
	"todo-api/internal/repository"
)

func openTestDB(t *testing.T) (repository.TodoRepository, repository.UserRepository) {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "todo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	todos := NewTodoRepository(db)
	users := NewUserRepository(db)
	require.NoError(t, todos.Init(context.Background()))
	require.NoError(t, users.Init(context.Background()))
	return todos, users
}

func TestTodoRepositoryCreateAndGet(t *testing.T) {
	todos, _ := openTestDB(t)
	ctx := context.Background()

	todo := &domain.Todo{Title: "Buy milk", Description: "2% lowfat", Owner: "alice"}
	id, err := todos.Create(ctx, todo)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, id, todo.ID)

	got, err := todos.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2% lowfat", got.Description)
	assert.Equal(t, "alice", got.Owner)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestTodoRepositoryGetMissing(t *testing.T) {
	todos, _ := openTestDB(t)

	_, err := todos.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestTodoRepositoryListByOwnerOnlyReturnsOwnItems(t *testing.T) {
	todos, _ := openTestDB(t)
	ctx := context.Background()

	for _, todo := range []domain.Todo{
		{Title: "first", Description: "alice one", Owner: "alice"},
		{Title: "other", Description: "bob one", Owner: "bob"},
		{Title: "second", Description: "alice two", Owner: "alice"},
	} {
		todo := todo
		_, err := todos.Create(ctx, &todo)
		require.NoError(t, err)
	}

	list, err := todos.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Title)
	assert.Equal(t, "second", list[1].Title)
	for _, todo := range list {
		assert.Equal(t, "alice", todo.Owner)
	}

	empty, err := todos.ListByOwner(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestTodoRepositoryUpdateRequiresOwner(t *testing.T) {
	todos, _ := openTestDB(t)
	ctx := context.Background()

	todo := &domain.Todo{Title: "Buy milk", Description: "2% lowfat", Owner: "alice"}
	_, err := todos.Create(ctx, todo)
	require.NoError(t, err)

	_, err = todos.Update(ctx, todo.ID, "bob", "hijacked", "hijacked")
	assert.True(t, errors.Is(err, repository.ErrNotFound))

	updated, err := todos.Update(ctx, todo.ID, "alice", "Buy bread", "whole grain")
	require.NoError(t, err)
	assert.Equal(t, "Buy bread", updated.Title)
	assert.Equal(t, "whole grain", updated.Description)
	assert.Equal(t, "alice", updated.Owner)
}

func TestTodoRepositoryDelete(t *testing.T) {
	todos, _ := openTestDB(t)
	ctx := context.Background()

	todo := &domain.Todo{Title: "Buy milk", Description: "2% lowfat", Owner: "alice"}
	_, err := todos.Create(ctx, todo)
	require.NoError(t, err)

	assert.True(t, errors.Is(todos.Delete(ctx, todo.ID, "bob"), repository.ErrNotFound))
	require.NoError(t, todos.Delete(ctx, todo.ID, "alice"))
	assert.True(t, errors.Is(todos.Delete(ctx, todo.ID, "alice"), repository.ErrNotFound))

	_, err = todos.Get(ctx, todo.ID)
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	_, users := openTestDB(t)
	ctx := context.Background()

	_, err := users.Create(ctx, &domain.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	_, err = users.Create(ctx, &domain.User{Name: "Other", Email: "alice@example.com", PasswordHash: "y"})
	assert.True(t, errors.Is(err, repository.ErrDuplicate))
}

func TestUserRepositoryLookups(t *testing.T) {
	_, users := openTestDB(t)
	ctx := context.Background()

	user := &domain.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"}
	id, err := users.Create(ctx, user)
	require.NoError(t, err)

	byEmail, err := users.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	_, err = users.GetByID(ctx, "nope")
	assert.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestIsUniqueViolation(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "constraints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE items (code TEXT UNIQUE, label TEXT NOT NULL)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO items (code, label) VALUES ('a', 'first')`)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO items (code, label) VALUES ('a', 'second')`)
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", err)))

	_, err = db.ExecContext(ctx, `INSERT INTO items (code, label) VALUES ('b', NULL)`)
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err))

	assert.False(t, isUniqueViolation(errors.New("UNIQUE constraint failed: fake")))
	assert.False(t, isUniqueViolation(nil))
}
