package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// UserSchema represents the users table schema. ID is a surrogate key
// generated by the database; uid carries a unique index (see CreateSchema).
type UserSchema struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement"`
	UID         string    `bun:"uid,notnull"`
	Username    string    `bun:"username"`
	Email       string    `bun:"email"`
	DateOfBirth string    `bun:"date_of_birth"`
	Gender      string    `bun:"gender"`
	Region      string    `bun:"region"`
	Photo       string    `bun:"photo"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// SQLStore implements UserStore on a relational database through bun. It
// works with both the Postgres and the SQLite dialect.
type SQLStore struct {
	db *bun.DB
}

// NewSQLStore creates a new relational user store
func NewSQLStore(db *bun.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Backend returns the bun dialect name, "pg" or "sqlite"
func (s *SQLStore) Backend() string {
	return s.db.Dialect().Name().String()
}

// Save inserts a new row for the user
func (s *SQLStore) Save(ctx context.Context, user *User) error {
	if err := requireUID(user.UID); err != nil {
		return err
	}

	now := time.Now().UTC()
	row := UserToUserSchema(user)
	row.CreatedAt = now
	row.UpdatedAt = now

	_, err := s.db.NewInsert().
		Model(&row).
		Exec(ctx)
	if err != nil {
		return s.classify("save", err)
	}
	return nil
}

// FindAll returns every user ordered by insertion
func (s *SQLStore) FindAll(ctx context.Context) ([]*User, error) {
	var rows []UserSchema
	err := s.db.NewSelect().
		Model(&rows).
		Order("id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, s.classify("find_all", err)
	}

	result := make([]*User, 0, len(rows))
	for _, row := range rows {
		result = append(result, UserSchemaToUser(row))
	}
	return result, nil
}

// FindByUID retrieves a user by uid
func (s *SQLStore) FindByUID(ctx context.Context, uid string) (*User, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}

	var row UserSchema
	err := s.db.NewSelect().
		Model(&row).
		Where("uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError(uid)
		}
		return nil, s.classify("find_by_uid", err)
	}
	return UserSchemaToUser(row), nil
}

// ExistsByUID checks if a user with the uid is stored
func (s *SQLStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	if err := requireUID(uid); err != nil {
		return false, err
	}

	exists, err := s.db.NewSelect().
		Model((*UserSchema)(nil)).
		Where("uid = ?", uid).
		Exists(ctx)
	if err != nil {
		return false, s.classify("exists_by_uid", err)
	}
	return exists, nil
}

// Delete removes the user row. The relational store reports no write time.
func (s *SQLStore) Delete(ctx context.Context, uid string) (time.Time, error) {
	if err := requireUID(uid); err != nil {
		return time.Time{}, err
	}

	result, err := s.db.NewDelete().
		Model((*UserSchema)(nil)).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		return time.Time{}, s.classify("delete", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return time.Time{}, s.classify("delete", err)
	}
	if rowsAffected == 0 {
		return time.Time{}, NewNotFoundError(uid)
	}
	return time.Time{}, nil
}

// Update sets the given columns on the user row
func (s *SQLStore) Update(ctx context.Context, uid string, update UserUpdate) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	fields, err := update.Fields()
	if err != nil {
		return err
	}

	query := s.db.NewUpdate().
		Model((*UserSchema)(nil)).
		Where("uid = ?", uid)
	for _, name := range sortedFieldNames(fields) {
		query = query.Set("? = ?", bun.Ident(updatableFields[name]), fields[name])
	}
	query = query.Set("updated_at = ?", time.Now().UTC())

	result, err := query.Exec(ctx)
	if err != nil {
		return s.classify("update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return s.classify("update", err)
	}
	if rowsAffected == 0 {
		return NewNotFoundError(uid)
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreConnectionError("ping", s.Backend(), err)
	}
	return nil
}

// Close closes the database handle
func (s *SQLStore) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *SQLStore) classify(operation string, err error) error {
	switch {
	case isUniqueViolation(err):
		return NewStoreConstraintError(operation, s.Backend(), err)
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, context.DeadlineExceeded):
		return NewStoreConnectionError(operation, s.Backend(), err)
	default:
		return NewStoreQueryError(operation, s.Backend(), err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}

	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE, sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT:
			return true
		}
	}
	return false
}

// Helper conversion functions
func UserSchemaToUser(schema UserSchema) *User {
	return &User{
		UID:         schema.UID,
		Username:    schema.Username,
		Email:       schema.Email,
		DateOfBirth: schema.DateOfBirth,
		Gender:      schema.Gender,
		Region:      schema.Region,
		Photo:       schema.Photo,
	}
}

func UserToUserSchema(user *User) UserSchema {
	return UserSchema{
		UID:         user.UID,
		Username:    user.Username,
		Email:       user.Email,
		DateOfBirth: user.DateOfBirth,
		Gender:      user.Gender,
		Region:      user.Region,
		Photo:       user.Photo,
	}
}
