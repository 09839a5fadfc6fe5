package domain

import "time"

// Todo is a single to-do item owned by exactly one user.
type Todo struct {
	ID          string
	Title       string
	Description string
	Owner       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TodoEventType names the mutation a TodoEvent reports.
type TodoEventType string

const (
	TodoCreated TodoEventType = "created"
	TodoUpdated TodoEventType = "updated"
	TodoDeleted TodoEventType = "deleted"
)

// TodoEvent describes a committed change to a to-do item.
type TodoEvent struct {
	Type       TodoEventType
	Todo       Todo
	OccurredAt time.Time
}
