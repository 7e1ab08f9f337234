package users

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Service implements the UserManager interface
type Service struct {
	store  UserStore
	logger *zap.Logger
}

// NewService creates a new user service instance
func NewService(store UserStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
	}
}

// CreateUser stores a new user, rejecting a uid that already exists.
//
// The existence check and the write are not atomic. Two concurrent creates
// for the same uid can both pass the check; the relational and Neo4j stores
// then reject the second write through their unique index, which is reported
// here as a duplicate. Firestore keeps the last write.
func (s *Service) CreateUser(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	exists, err := s.store.ExistsByUID(ctx, user.UID)
	if err != nil {
		return err
	}
	if exists {
		return NewDuplicateUserError(user.UID)
	}

	if err := s.store.Save(ctx, user); err != nil {
		if IsConstraintViolation(err) {
			s.logger.Warn("Concurrent create lost the race on uid",
				zap.String("uid", user.UID),
				zap.Error(err))
			return NewDuplicateUserError(user.UID)
		}
		return err
	}

	s.logger.Debug("User created", zap.String("uid", user.UID))
	return nil
}

// ListUsers returns every stored user
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.FindAll(ctx)
}

// GetUser returns the user with the given uid. A missing user is reported as
// (nil, nil) rather than as an error.
func (s *Service) GetUser(ctx context.Context, uid string) (*User, error) {
	user, err := s.store.FindByUID(ctx, uid)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// UpdateUser applies a partial update
func (s *Service) UpdateUser(ctx context.Context, uid string, update UserUpdate) error {
	return s.store.Update(ctx, uid, update)
}

// DeleteUser deletes a user
func (s *Service) DeleteUser(ctx context.Context, uid string) (time.Time, error) {
	return s.store.Delete(ctx, uid)
}

// ResetPassword accepts a reset request and does nothing.
func (s *Service) ResetPassword(ctx context.Context, uid, email string) error {
	s.logger.Debug("Password reset requested",
		zap.String("uid", uid),
		zap.String("email", email))
	return nil
}
