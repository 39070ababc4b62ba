package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/audit"
)

func TestLogger_Record(t *testing.T) {
	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage)

	err := logger.Record(ctx, audit.ActionRoleAssigned,
		audit.WithTenant("t1"),
		audit.WithActor("admin-1"),
		audit.WithTarget("user", "u1"),
		audit.WithChange([]string{"viewer"}, []string{"viewer", "editor"}),
		audit.WithMetadata("role", "editor"),
	)
	require.NoError(t, err)

	events := storage.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, audit.ActionRoleAssigned, e.Action)
	assert.Equal(t, "t1", e.TenantID)
	assert.Equal(t, "admin-1", e.ActorID)
	assert.Equal(t, "user", e.TargetKind)
	assert.Equal(t, "u1", e.TargetID)
	assert.Equal(t, []string{"viewer"}, e.Before)
	assert.Equal(t, []string{"viewer", "editor"}, e.After)
	assert.Equal(t, "editor", e.Metadata["role"])
	assert.False(t, e.OccurredAt.IsZero())
}

func TestLogger_ContextExtractors(t *testing.T) {
	type actorKey struct{}
	ctx := context.WithValue(context.Background(), actorKey{}, "ops-7")

	storage := audit.NewMemoryStorage()
	logger := audit.NewLogger(storage,
		audit.WithActorExtractor(func(ctx context.Context) (string, bool) {
			v, ok := ctx.Value(actorKey{}).(string)
			return v, ok
		}),
	)

	require.NoError(t, logger.Record(ctx, audit.ActionUserCreated))

	events := storage.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "ops-7", events[0].ActorID)
}

func TestLogger_ValidationFailure(t *testing.T) {
	logger := audit.NewLogger(audit.NewMemoryStorage())
	err := logger.Record(context.Background(), "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)
}

// blockingStorage parks every write until released.
type blockingStorage struct {
	release chan struct{}
}

func (b *blockingStorage) Store(ctx context.Context, event audit.Event) error {
	<-b.release
	return nil
}

func TestAsyncStorage_NeverBlocksCaller(t *testing.T) {
	backend := &blockingStorage{release: make(chan struct{})}
	s := audit.NewAsyncStorage(backend, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Far more events than buffer capacity; Store must return immediately
	// either by queueing or by dropping.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 0; n < 64; n++ {
			_ = s.Store(context.Background(), audit.Event{Action: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async store blocked the caller")
	}

	assert.Positive(t, s.Dropped())
	close(backend.release)
}

func TestAsyncStorage_DrainsOnClose(t *testing.T) {
	backend := audit.NewMemoryStorage()
	s := audit.NewAsyncStorage(backend, 16, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for n2 := 0; n2 < 5; n2++ {
		require.NoError(t, s.Store(context.Background(), audit.Event{Action: "x"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	assert.Len(t, backend.Events(), 5)

	err := s.Store(context.Background(), audit.Event{Action: "x"})
	assert.True(t, errors.Is(err, audit.ErrStorageClosed))
}

func TestMemoryStorage_ByAction(t *testing.T) {
	ctx := context.Background()
	s := audit.NewMemoryStorage()
	require.NoError(t, s.Store(ctx, audit.Event{Action: "a"}))
	require.NoError(t, s.Store(ctx, audit.Event{Action: "b"}))
	require.NoError(t, s.Store(ctx, audit.Event{Action: "a"}))

	assert.Len(t, s.ByAction("a"), 2)
	assert.Len(t, s.ByAction("b"), 1)
	assert.Empty(t, s.ByAction("c"))
}
