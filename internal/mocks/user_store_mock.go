package mocks

import (
	"context"
	"time"

	"github.com/eion/accounts/internal/users"
	"github.com/stretchr/testify/mock"
)

type UserStore struct{ mock.Mock }

func (m *UserStore) Save(ctx context.Context, u *users.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *UserStore) FindAll(ctx context.Context) ([]*users.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*users.User), args.Error(1)
}

func (m *UserStore) FindByUID(ctx context.Context, uid string) (*users.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.User), args.Error(1)
}

func (m *UserStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	args := m.Called(ctx, uid)
	return args.Bool(0), args.Error(1)
}

func (m *UserStore) Delete(ctx context.Context, uid string) (time.Time, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *UserStore) Update(ctx context.Context, uid string, update users.UserUpdate) error {
	return m.Called(ctx, uid, update).Error(0)
}

func (m *UserStore) Ping(ctx context.Context) error  { return m.Called(ctx).Error(0) }
func (m *UserStore) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *UserStore) Backend() string { return m.Called().String(0) }
