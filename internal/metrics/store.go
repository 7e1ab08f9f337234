package metrics

import (
	"context"
	"time"

	"github.com/eion/accounts/internal/users"
)

// InstrumentedStore wraps a UserStore and records the duration and failures
// of every operation.
type InstrumentedStore struct {
	next    users.UserStore
	backend string
}

// InstrumentStore wraps store with operation metrics
func InstrumentStore(store users.UserStore) *InstrumentedStore {
	return &InstrumentedStore{
		next:    store,
		backend: store.Backend(),
	}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	StoreOperationDurationSeconds.WithLabelValues(operation, s.backend).Observe(time.Since(start).Seconds())
	// A miss is an expected answer, not a failed operation.
	if err != nil && !users.IsNotFound(err) {
		StoreOperationErrors.WithLabelValues(operation, s.backend, users.ErrorKind(err)).Inc()
	}
}

func (s *InstrumentedStore) Save(ctx context.Context, user *users.User) (err error) {
	defer func(start time.Time) { s.observe("save", start, err) }(time.Now())
	return s.next.Save(ctx, user)
}

func (s *InstrumentedStore) FindAll(ctx context.Context) (result []*users.User, err error) {
	defer func(start time.Time) { s.observe("find_all", start, err) }(time.Now())
	return s.next.FindAll(ctx)
}

func (s *InstrumentedStore) FindByUID(ctx context.Context, uid string) (user *users.User, err error) {
	defer func(start time.Time) { s.observe("find_by_uid", start, err) }(time.Now())
	return s.next.FindByUID(ctx, uid)
}

func (s *InstrumentedStore) ExistsByUID(ctx context.Context, uid string) (exists bool, err error) {
	defer func(start time.Time) { s.observe("exists_by_uid", start, err) }(time.Now())
	return s.next.ExistsByUID(ctx, uid)
}

func (s *InstrumentedStore) Delete(ctx context.Context, uid string) (ts time.Time, err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())
	return s.next.Delete(ctx, uid)
}

func (s *InstrumentedStore) Update(ctx context.Context, uid string, update users.UserUpdate) (err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())
	return s.next.Update(ctx, uid, update)
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *InstrumentedStore) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}

func (s *InstrumentedStore) Backend() string {
	return s.backend
}
