package permcache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aquasense/identity/pkg/permcache"
)

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := permcache.NewMemoryWithSize(64)
	defer c.Close()

	roleID := uuid.New()
	keys := make([]permcache.Key, 32)
	for i := range keys {
		keys[i] = testKey(1)
	}

	var wg sync.WaitGroup
	for i := range keys {
		key := keys[i]
		wg.Add(4)
		go func() {
			defer wg.Done()
			c.Set(ctx, key, permcache.Entry{Permissions: []string{"read"}, Roles: []uuid.UUID{roleID}}, time.Minute)
		}()
		go func() {
			defer wg.Done()
			c.Get(ctx, key)
		}()
		go func() {
			defer wg.Done()
			c.Invalidate(ctx, key.UserID)
		}()
		go func() {
			defer wg.Done()
			c.InvalidateByRole(ctx, roleID)
		}()
	}
	wg.Wait()

	// Cache must remain consistent and usable after the churn.
	probe := testKey(1)
	c.Set(ctx, probe, permcache.Entry{Permissions: []string{"read"}}, time.Minute)
	if _, ok := c.Get(ctx, probe); !ok {
		t.Fatal("cache unusable after concurrent churn")
	}
}
