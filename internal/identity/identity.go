// Package identity is the read-only view of the profile service.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "campusreg/pkg/domain"
	"campusreg/pkg/platform/sentinel"
)

// User is a profile as supplied by the identity service. The registration core
// reads it to fill registration metadata and never writes it.
type User struct {
	ID    id.UserID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone string    `json:"phone,omitempty"`
	Guest bool      `json:"guest"`
}

// Directory looks up users.
type Directory interface {
	FindUser(ctx context.Context, userID id.UserID) (*User, error)
}

// InMemory is a seeded directory for tests and local runs.
type InMemory struct {
	mu    sync.RWMutex
	users map[id.UserID]*User
}

func NewInMemory(users ...*User) *InMemory {
	d := &InMemory{users: make(map[id.UserID]*User)}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

func (d *InMemory) Put(u *User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *u
	d.users[u.ID] = &cp
}

func (d *InMemory) FindUser(_ context.Context, userID id.UserID) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// PostgresStore reads profiles from the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindUser(ctx context.Context, userID id.UserID) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT name, email, phone, guest FROM users WHERE id = $1`, uuid.UUID(userID),
	).Scan(&u.Name, &u.Email, &u.Phone, &u.Guest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.ID = userID
	return &u, nil
}
