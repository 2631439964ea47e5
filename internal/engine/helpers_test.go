package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cacheflow/cacheflow/internal/cache"
	"github.com/cacheflow/cacheflow/internal/config"
	"github.com/cacheflow/cacheflow/internal/models"
)

var errStoreDown = errors.New("database unavailable")

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testCacheConfig() *config.CacheConfig {
	return &config.CacheConfig{
		TTL:              60 * time.Second,
		RefreshInterval:  10 * time.Second,
		RefreshThreshold: 0.75,
		AccessThreshold:  3,
		FlushInterval:    5 * time.Second,
		FlushBatchSize:   10,
	}
}

func setupCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewRedisWithClient(client)

	t.Cleanup(func() {
		_ = store.Close()
		mr.Close()
	})

	return store, mr
}

// fakeUserStore is an in-memory UserStore with failure injection, used in
// place of the Postgres repository.
type fakeUserStore struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	nextID int64

	// applied update payloads, in apply order
	updates []models.User

	failUpserts int
	failUpdates int
	failLookups bool
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[int64]*models.User)}
}

func (s *fakeUserStore) seed(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[u.ID] = &u
	if u.ID > s.nextID {
		s.nextID = u.ID
	}
}

func (s *fakeUserStore) get(id int64) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *fakeUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLookups {
		return nil, errStoreDown
	}
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUserStore) Insert(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cp := *user
	cp.ID = s.nextID
	s.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *fakeUserStore) Upsert(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpserts > 0 {
		s.failUpserts--
		return errStoreDown
	}
	for _, existing := range s.users {
		if existing.Email == user.Email {
			existing.Name = user.Name
			existing.Age = user.Age
			return nil
		}
	}
	s.nextID++
	cp := *user
	cp.ID = s.nextID
	s.users[cp.ID] = &cp
	return nil
}

func (s *fakeUserStore) Update(ctx context.Context, id int64, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdates > 0 {
		s.failUpdates--
		return nil, errStoreDown
	}
	existing, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	existing.Name = user.Name
	existing.Email = user.Email
	existing.Age = user.Age
	s.updates = append(s.updates, *existing)
	cp := *existing
	return &cp, nil
}

func (s *fakeUserStore) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	delete(s.users, id)
	return ok, nil
}
