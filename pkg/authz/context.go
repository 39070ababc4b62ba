package authz

import (
	"context"

	"github.com/google/uuid"
)

// actorCtxKey is the context key for the acting principal.
type actorCtxKey struct{}

// WithActor stores the acting principal's id in the context. Mutation
// operations pass the context to the audit logger, which attributes the
// event to this actor.
func WithActor(ctx context.Context, actorID uuid.UUID) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actorID)
}

// ActorFromContext retrieves the acting principal's id from the context.
func ActorFromContext(ctx context.Context) (uuid.UUID, bool) {
	actorID, ok := ctx.Value(actorCtxKey{}).(uuid.UUID)
	return actorID, ok
}

// ActorExtractor adapts ActorFromContext to the audit logger's extractor
// shape:
//
//	audit.NewLogger(storage, audit.WithActorExtractor(authz.ActorExtractor))
func ActorExtractor(ctx context.Context) (string, bool) {
	actorID, ok := ActorFromContext(ctx)
	if !ok {
		return "", false
	}
	return actorID.String(), true
}
