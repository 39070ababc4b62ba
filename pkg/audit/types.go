package audit

import (
	"context"
	"fmt"
	"time"
)

// Actions recorded by the authorization engine.
const (
	ActionUserCreated       = "identity.user_created"
	ActionUserDisabled      = "identity.user_disabled"
	ActionUserEnabled       = "identity.user_enabled"
	ActionProfileUpdated    = "identity.profile_updated"
	ActionLoginRecorded     = "identity.login_recorded"
	ActionRoleAssigned      = "identity.role_assigned"
	ActionRoleRevoked       = "identity.role_revoked"
	ActionRoleCreated       = "identity.role_created"
	ActionRoleDeleted       = "identity.role_deleted"
	ActionPermissionGranted = "identity.permission_granted"
	ActionPermissionRevoked = "identity.permission_revoked"
	ActionPermissionCreated = "identity.permission_created"
	ActionPermissionDeleted = "identity.permission_deleted"
)

// Event is a single audit entry.
type Event struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	TargetKind string         `json:"target_kind,omitempty"`
	TargetID   string         `json:"target_id,omitempty"`
	Before     []string       `json:"before,omitempty"`
	After      []string       `json:"after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Validate checks required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// Storage persists audit events. Implementations must be safe for concurrent
// use and should treat events as append-only.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Logger records audit events.
type Logger interface {
	// Record writes an event for the action. Errors are returned for the
	// caller's benefit only; engine callers ignore them by contract.
	Record(ctx context.Context, action string, opts ...EventOption) error
}

// EventOption customizes an event at record time.
type EventOption func(*Event)

// WithTarget sets the target entity kind and id.
func WithTarget(kind, id string) EventOption {
	return func(e *Event) {
		e.TargetKind = kind
		e.TargetID = id
	}
}

// WithTenant sets the tenant the event occurred in.
func WithTenant(tenantID string) EventOption {
	return func(e *Event) {
		e.TenantID = tenantID
	}
}

// WithActor sets the acting principal explicitly, overriding any context
// extractor.
func WithActor(actorID string) EventOption {
	return func(e *Event) {
		e.ActorID = actorID
	}
}

// WithChange records the before and after states of the mutated set.
func WithChange(before, after []string) EventOption {
	return func(e *Event) {
		e.Before = before
		e.After = after
	}
}

// WithMetadata attaches a key/value pair to the event.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}
