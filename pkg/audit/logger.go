package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextExtractor pulls a string value out of a context, returning whether
// extraction succeeded.
type contextExtractor func(context.Context) (string, bool)

type logger struct {
	storage         Storage
	actorExtractor  contextExtractor
	tenantExtractor contextExtractor
}

// Option configures the logger.
type Option func(*logger)

// WithActorExtractor registers a function that resolves the acting principal
// from the context, typically the engine's ActorFromContext.
func WithActorExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) {
		l.actorExtractor = fn
	}
}

// WithTenantExtractor registers a function that resolves the tenant from the
// context.
func WithTenantExtractor(fn func(context.Context) (string, bool)) Option {
	return func(l *logger) {
		l.tenantExtractor = fn
	}
}

// NewLogger creates an audit logger writing to storage.
func NewLogger(storage Storage, opts ...Option) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}

	l := &logger{storage: storage}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *logger) Record(ctx context.Context, action string, opts ...EventOption) error {
	event := Event{
		ID:         uuid.New().String(),
		Action:     action,
		OccurredAt: time.Now().UTC(),
	}

	if l.actorExtractor != nil {
		if actor, ok := l.actorExtractor(ctx); ok {
			event.ActorID = actor
		}
	}
	if l.tenantExtractor != nil {
		if tenant, ok := l.tenantExtractor(ctx); ok {
			event.TenantID = tenant
		}
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.storage.Store(ctx, event)
}
