// Package pg provides the PostgreSQL backing for the identity store: pooled
// connections with startup retry, goose schema migrations, health checks and
// an implementation of the store contract.
//
// The store maps the compare-and-swap update contract onto row-level locking:
// updates run in a transaction that selects the row FOR UPDATE, compares the
// stored version with the caller's expected version, applies the mutator and
// writes back with the version incremented. Unique-constraint violations
// (SQLSTATE 23505) are translated to the store's duplicate errors.
//
// # Usage
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		// Handle error
//	}
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		// Handle error
//	}
//
//	s := pg.NewStore(pool)
//	engine := authz.New(s, authz.WithCache(cache))
package pg
