// Package audit records authentication and recipe activity. Recording is
// best effort and never influences the HTTP response.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

type Kind string

const (
	KindSignup        Kind = "signup"
	KindLogin         Kind = "login"
	KindLoginFailed   Kind = "login_failed"
	KindLogout        Kind = "logout"
	KindRecipeCreated Kind = "recipe_created"
)

type Event struct {
	ID         string    `bson:"_id"`
	Kind       Kind      `bson:"kind"`
	UserID     *int64    `bson:"user_id,omitempty"`
	Username   string    `bson:"username,omitempty"`
	RecipeID   *int64    `bson:"recipe_id,omitempty"`
	ClientIP   string    `bson:"client_ip,omitempty"`
	OccurredAt time.Time `bson:"occurred_at"`
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

type MongoRecorder struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRecorder(collection *mongo.Collection) *MongoRecorder {
	return &MongoRecorder{collection: collection, now: time.Now}
}

func (r *MongoRecorder) Record(ctx context.Context, event Event) error {
	stamp(&event, r.now)
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("audit: insert %s event: %w", event.Kind, err)
	}
	return nil
}

// Memory keeps events in a slice; used by tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(_ context.Context, event Event) error {
	stamp(&event, time.Now)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func stamp(event *Event, now func() time.Time) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now().UTC()
	}
}
