// Package store defines the aggregate persistence interface. Each subsystem
// (scope, rule, assignment, role, module) defines its own store interface.
// The composite Store composes them all. Backends: Postgres, SQLite, Mongo,
// and Memory.
package store

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/module"
	"github.com/xraph/bastion/role"
	"github.com/xraph/bastion/rule"
	"github.com/xraph/bastion/scope"
)

// Store is the aggregate persistence interface.
// Each subsystem store is a composable interface. A single backend
// (postgres, sqlite, mongo, memory) implements all of them.
type Store interface {
	scope.Store
	rule.Store
	assignment.Store
	role.Store
	module.Store

	// Snapshot loads a point-in-time copy of a tenant's policy state.
	// Evaluation and conflict detection run against the snapshot so a
	// decision never mixes data from two different writes.
	Snapshot(ctx context.Context, tenantID string) (*Snapshot, error)

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
