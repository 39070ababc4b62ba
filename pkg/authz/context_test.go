package authz_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/identity/pkg/authz"
)

func TestActorContext(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		actor := uuid.New()
		ctx := authz.WithActor(context.Background(), actor)

		got, ok := authz.ActorFromContext(ctx)
		require.True(t, ok)
		assert.Equal(t, actor, got)
	})

	t.Run("absent actor", func(t *testing.T) {
		t.Parallel()

		_, ok := authz.ActorFromContext(context.Background())
		assert.False(t, ok)

		s, ok := authz.ActorExtractor(context.Background())
		assert.False(t, ok)
		assert.Empty(t, s)
	})

	t.Run("extractor formats the id", func(t *testing.T) {
		t.Parallel()

		actor := uuid.New()
		ctx := authz.WithActor(context.Background(), actor)

		s, ok := authz.ActorExtractor(ctx)
		require.True(t, ok)
		assert.Equal(t, actor.String(), s)
	})
}
