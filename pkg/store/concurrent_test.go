package store_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/identity"
	"github.com/aquasense/identity/pkg/store"
)

func TestMemoryUsers_ConcurrentCASExactlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))

	const writers = 16
	var successes, conflicts atomic.Int64
	var wg sync.WaitGroup

	// Every writer observed version 1; only one mutation may land.
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Users().Update(ctx, user.ID, 1, func(u *identity.User) error {
				u.AddRole(uuid.New())
				return nil
			})
			switch {
			case err == nil:
				successes.Add(1)
			case assert.ErrorIs(t, err, store.ErrVersionConflict):
				conflicts.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
	assert.Equal(t, int64(writers-1), conflicts.Load())

	got, err := s.Users().Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.Roles, 1)
}

func TestMemoryUsers_ConcurrentRetryLoopAllLand(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	user := newUser(t, "ada@example.com", uuid.New())
	require.NoError(t, s.Users().Create(ctx, user))

	const writers = 8
	var wg sync.WaitGroup

	// Each writer re-reads and retries on conflict, the recovery path the
	// CAS contract prescribes. All role additions must eventually land.
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			roleID := uuid.New()
			for {
				current, err := s.Users().Get(ctx, user.ID)
				require.NoError(t, err)
				_, err = s.Users().Update(ctx, user.ID, current.Version, func(u *identity.User) error {
					u.AddRole(roleID)
					return nil
				})
				if err == nil {
					return
				}
				require.ErrorIs(t, err, store.ErrVersionConflict)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Users().Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, got.Roles, writers)
	assert.Equal(t, int64(1+writers), got.Version)
}

func TestMemory_ConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	const users = 32
	var wg sync.WaitGroup
	ids := make([]uuid.UUID, users)

	for i := 0; i < users; i++ {
		user := newUser(t, fmt.Sprintf("user%d@example.com", i), uuid.New())
		ids[i] = user.ID
		require.NoError(t, s.Users().Create(ctx, user))
	}

	for i := 0; i < users; i++ {
		wg.Add(2)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := s.Users().Update(ctx, id, 1, func(u *identity.User) error {
				u.Profile.GivenName = "updated"
				return nil
			})
			assert.NoError(t, err)
		}(ids[i])
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := s.Users().Get(ctx, id)
			assert.NoError(t, err)
		}(ids[i])
	}
	wg.Wait()
}
