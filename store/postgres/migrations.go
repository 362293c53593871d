package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bastion store (PostgreSQL).
var Migrations = migrate.NewGroup("bastion")

const ddlScopes = `
CREATE TABLE IF NOT EXISTS bastion_scopes (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    kind            TEXT NOT NULL,
    parent_id       TEXT,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    seq             INTEGER NOT NULL DEFAULT 0,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bastion_scopes_tenant ON bastion_scopes (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_scopes_parent ON bastion_scopes (parent_id);
CREATE INDEX IF NOT EXISTS idx_bastion_scopes_kind ON bastion_scopes (tenant_id, kind);
`

const ddlScopeRules = `
CREATE TABLE IF NOT EXISTS bastion_scope_rules (
    id               TEXT PRIMARY KEY,
    scope_id         TEXT NOT NULL REFERENCES bastion_scopes(id) ON DELETE CASCADE,
    module_code      TEXT NOT NULL,
    resource         TEXT NOT NULL,
    filter_kind      TEXT NOT NULL,
    filter_value     TEXT NOT NULL DEFAULT '',
    custom_predicate JSONB,
    active           BOOLEAN NOT NULL DEFAULT TRUE,
    position         INTEGER NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bastion_srules_scope ON bastion_scope_rules (scope_id, position);
CREATE INDEX IF NOT EXISTS idx_bastion_srules_module ON bastion_scope_rules (module_code, resource);
`

const ddlAccessRules = `
CREATE TABLE IF NOT EXISTS bastion_access_rules (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    module_code     TEXT NOT NULL,
    resource        TEXT NOT NULL,
    actions         JSONB NOT NULL DEFAULT '[]',
    conditions      JSONB NOT NULL DEFAULT '[]',
    priority        INTEGER NOT NULL DEFAULT 0,
    seq             INTEGER NOT NULL DEFAULT 0,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    description     TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bastion_arules_tenant ON bastion_access_rules (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_arules_active ON bastion_access_rules (tenant_id, active, priority, seq);
CREATE INDEX IF NOT EXISTS idx_bastion_arules_module ON bastion_access_rules (tenant_id, module_code, resource);
`

const ddlAssignments = `
CREATE TABLE IF NOT EXISTS bastion_assignments (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    user_id         TEXT NOT NULL,
    scope_id        TEXT NOT NULL DEFAULT '',
    role_id         TEXT NOT NULL DEFAULT '',
    effective_at    TIMESTAMPTZ,
    expires_at      TIMESTAMPTZ,
    assigned_by     TEXT NOT NULL DEFAULT '',
    reason          TEXT NOT NULL DEFAULT '',
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    deactivated_at  TIMESTAMPTZ,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_bastion_assign_user ON bastion_assignments (tenant_id, user_id, active);
CREATE INDEX IF NOT EXISTS idx_bastion_assign_scope ON bastion_assignments (scope_id);
CREATE INDEX IF NOT EXISTS idx_bastion_assign_role ON bastion_assignments (role_id);
CREATE INDEX IF NOT EXISTS idx_bastion_assign_expires ON bastion_assignments (expires_at);
`

const ddlRoles = `
CREATE TABLE IF NOT EXISTS bastion_roles (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    slug            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    module_family   TEXT NOT NULL DEFAULT '',
    privilege_level INTEGER NOT NULL DEFAULT 0,
    location        TEXT NOT NULL DEFAULT '',
    is_system       BOOLEAN NOT NULL DEFAULT FALSE,
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    UNIQUE(tenant_id, slug)
);

CREATE INDEX IF NOT EXISTS idx_bastion_roles_tenant ON bastion_roles (tenant_id);
CREATE INDEX IF NOT EXISTS idx_bastion_roles_family ON bastion_roles (tenant_id, module_family);
`

const ddlModules = `
CREATE TABLE IF NOT EXISTS bastion_modules (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    code            TEXT NOT NULL,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    resources       JSONB NOT NULL DEFAULT '[]',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),

    UNIQUE(tenant_id, code)
);

CREATE INDEX IF NOT EXISTS idx_bastion_modules_tenant ON bastion_modules (tenant_id);
`

const ddlCounters = `
CREATE TABLE IF NOT EXISTS bastion_counters (
    tenant_id       TEXT NOT NULL,
    name            TEXT NOT NULL,
    value           INTEGER NOT NULL DEFAULT 0,

    PRIMARY KEY (tenant_id, name)
);
`

// schema lists the DDL in dependency order.
var schema = []string{
	ddlScopes,
	ddlScopeRules,
	ddlAccessRules,
	ddlAssignments,
	ddlRoles,
	ddlModules,
	ddlCounters,
}

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_scopes",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlScopes)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_scopes`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_scope_rules",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlScopeRules)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_scope_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_access_rules",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlAccessRules)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_access_rules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlAssignments)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20240101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlRoles)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_modules",
			Version: "20240101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlModules)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_modules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_counters",
			Version: "20240101000007",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, ddlCounters)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_counters`)
				return err
			},
		},
	)
}
