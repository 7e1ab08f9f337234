package mocks

import (
	"context"
	"time"

	"github.com/eion/accounts/internal/users"
	"github.com/stretchr/testify/mock"
)

type UserManager struct{ mock.Mock }

func (m *UserManager) CreateUser(ctx context.Context, u *users.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *UserManager) ListUsers(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *UserManager) GetUser(ctx context.Context, uid string) (*users.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *UserManager) UpdateUser(ctx context.Context, uid string, update users.UserUpdate) error {
	return m.Called(ctx, uid, update).Error(0)
}

func (m *UserManager) DeleteUser(ctx context.Context, uid string) (time.Time, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *UserManager) ResetPassword(ctx context.Context, uid, email string) error {
	return m.Called(ctx, uid, email).Error(0)
}
