package bastion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/bastion/plugin"
	"github.com/xraph/bastion/predicate"
	"github.com/xraph/bastion/store"
)

// Engine is the central policy engine. It coordinates the scope tree, the
// access rule registry, user assignments, conflict detection, evaluation,
// and scenario simulation, and fires extension hooks.
//
// Evaluation is read-heavy and lock-free: every evaluation runs against an
// immutable tenant snapshot taken at call start. Writes are serialized per
// tenant; writes for different tenants proceed in parallel.
type Engine struct {
	store   store.Store
	cache   Cache
	plugins *plugin.Registry
	logger  *slog.Logger
	config  Config
	funcs   map[string]predicate.Func

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

// NewEngine creates a new Bastion engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:      slog.Default(),
		config:      DefaultConfig(),
		tenantLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("bastion: store is required")
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Functions returns the whitelisted predicate helper names.
func (e *Engine) Functions() map[string]bool {
	allowed := make(map[string]bool, len(e.funcs))
	for name := range e.funcs {
		allowed[name] = true
	}
	return allowed
}

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop performs graceful shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// tenantLock returns the write mutex for a tenant, creating it on first use.
func (e *Engine) tenantLock(tenantID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.tenantLocks[tenantID]
	if !ok {
		l = &sync.Mutex{}
		e.tenantLocks[tenantID] = l
	}
	return l
}

// snapshot loads the tenant's point-in-time state.
func (e *Engine) snapshot(ctx context.Context, tenantID string) (*store.Snapshot, error) {
	snap, err := e.store.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("bastion snapshot: %w", err)
	}
	return snap, nil
}

// invalidateTenant drops every cached decision for the tenant.
func (e *Engine) invalidateTenant(ctx context.Context, tenantID string) {
	if e.cache != nil {
		e.cache.InvalidateTenant(ctx, tenantID)
	}
}

// invalidateUser drops cached decisions for one user.
func (e *Engine) invalidateUser(ctx context.Context, tenantID, userID string) {
	if e.cache != nil {
		e.cache.InvalidateUser(ctx, tenantID, userID)
	}
}
