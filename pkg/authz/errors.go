package authz

import "errors"

var (
	// ErrInvalidCatalog reports a malformed role catalog document.
	ErrInvalidCatalog = errors.New("invalid role catalog")
)

// errCrossTenant signals a tenant scope violation. It never leaves the
// package; the guard collapses it into store.ErrNotFound so callers cannot
// probe for users in other tenants.
var errCrossTenant = errors.New("cross-tenant reference")

// errNoChange aborts a compare-and-swap mutation whose mutator found nothing
// to do, leaving the version untouched.
var errNoChange = errors.New("no change")
