package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"todo-api/internal/domain"
	"todo-api/internal/repository"
)

type todoDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	User        primitive.ObjectID `bson:"user"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d todoDocument) toDomain() domain.Todo {
	return domain.Todo{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Owner:       d.User.Hex(),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type TodoRepository struct {
	coll *mongo.Collection
}

func NewTodoRepository(db *mongo.Database) repository.TodoRepository {
	return &TodoRepository{coll: db.Collection(todosCollection)}
}

func (r *TodoRepository) Init(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create todos owner index: %w", err)
	}
	return nil
}

func (r *TodoRepository) Create(ctx context.Context, todo *domain.Todo) (string, error) {
	owner, err := primitive.ObjectIDFromHex(todo.Owner)
	if err != nil {
		return "", fmt.Errorf("todo owner %q: %w", todo.Owner, err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	doc := todoDocument{
		ID:          primitive.NewObjectID(),
		Title:       todo.Title,
		Description: todo.Description,
		User:        owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert todo: %w", err)
	}

	todo.ID = doc.ID.Hex()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	return todo.ID, nil
}

func (r *TodoRepository) Get(ctx context.Context, id string) (*domain.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("todo %q: %w", id, repository.ErrNotFound)
	}

	var doc todoDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateErr("find todo", err)
	}
	todo := doc.toDomain()
	return &todo, nil
}

func (r *TodoRepository) ListByOwner(ctx context.Context, owner string) ([]domain.Todo, error) {
	oid, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return []domain.Todo{}, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"user": oid}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []todoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode todos: %w", err)
	}

	todos := make([]domain.Todo, len(docs))
	for i := range docs {
		todos[i] = docs[i].toDomain()
	}
	return todos, nil
}

func (r *TodoRepository) Update(ctx context.Context, id, owner, title, description string) (*domain.Todo, error) {
	filter, err := ownedFilter(id, owner)
	if err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{
		"title":       title,
		"description": description,
		"updatedAt":   time.Now().UTC().Truncate(time.Millisecond),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc todoDocument
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		return nil, translateErr("update todo", err)
	}
	todo := doc.toDomain()
	return &todo, nil
}

func (r *TodoRepository) Delete(ctx context.Context, id, owner string) error {
	filter, err := ownedFilter(id, owner)
	if err != nil {
		return err
	}

	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("todo %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func ownedFilter(id, owner string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("todo %q: %w", id, repository.ErrNotFound)
	}
	ownerID, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return nil, fmt.Errorf("todo %q owner %q: %w", id, owner, repository.ErrNotFound)
	}
	return bson.M{"_id": oid, "user": ownerID}, nil
}

func translateErr(op string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
