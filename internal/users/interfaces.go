package users

import (
	"context"
	"time"
)

// UserStore defines the interface for user storage operations. Every
// implementation keys records by uid and reports database failures as
// *StoreError without retrying.
type UserStore interface {
	// Save persists the user. Document stores overwrite an existing record
	// with the same uid; the relational store inserts a new row.
	Save(ctx context.Context, user *User) error
	// FindAll returns every stored user, or an empty slice.
	FindAll(ctx context.Context) ([]*User, error)
	// FindByUID returns the user or a *NotFoundError.
	FindByUID(ctx context.Context, uid string) (*User, error)
	ExistsByUID(ctx context.Context, uid string) (bool, error)
	// Delete removes the user and returns the store's write time, or the
	// zero time when the store does not report one.
	Delete(ctx context.Context, uid string) (time.Time, error)
	// Update applies a partial update of the named fields.
	Update(ctx context.Context, uid string, update UserUpdate) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Backend() string
}

// UserManager defines the interface for user service operations
type UserManager interface {
	CreateUser(ctx context.Context, user *User) error
	ListUsers(ctx context.Context) ([]*User, error)
	GetUser(ctx context.Context, uid string) (*User, error)
	UpdateUser(ctx context.Context, uid string, update UserUpdate) error
	DeleteUser(ctx context.Context, uid string) (time.Time, error)
	ResetPassword(ctx context.Context, uid, email string) error
}
