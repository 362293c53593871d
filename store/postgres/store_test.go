package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// startPostgres spins up a disposable PostgreSQL container and applies the
// Bastion schema. Tests are skipped when no container runtime is available.
func startPostgres(t *testing.T) *pgx.Conn {
	t.Helper()

	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("bastion"),
		tcpostgres.WithUsername("bastion"),
		tcpostgres.WithPassword("bastion"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("container runtime unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(ctr)
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close(ctx)
	})

	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

func TestSchemaUniqueRoleSlug(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	conn := startPostgres(t)
	ctx := context.Background()

	const insertRole = `
		INSERT INTO bastion_roles (id, tenant_id, name, slug)
		VALUES ($1, $2, $3, $4)`

	if _, err := conn.Exec(ctx, insertRole, "role_1", "t1", "Nurse", "nurse"); err != nil {
		t.Fatalf("insert role: %v", err)
	}

	_, err := conn.Exec(ctx, insertRole, "role_2", "t1", "Nurse Again", "nurse")
	if err == nil {
		t.Fatal("expected unique violation for duplicate slug")
	}
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// Slug uniqueness is per tenant.
	if _, err := conn.Exec(ctx, insertRole, "role_3", "t2", "Nurse", "nurse"); err != nil {
		t.Fatalf("insert role in second tenant: %v", err)
	}
}

func TestSchemaUniqueModuleCode(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	conn := startPostgres(t)
	ctx := context.Background()

	const insertModule = `
		INSERT INTO bastion_modules (id, tenant_id, code, name)
		VALUES ($1, $2, $3, $4)`

	if _, err := conn.Exec(ctx, insertModule, "mod_1", "t1", "emr", "Medical Records"); err != nil {
		t.Fatalf("insert module: %v", err)
	}

	_, err := conn.Exec(ctx, insertModule, "mod_2", "t1", "emr", "Duplicate")
	if !isUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestSchemaScopeRuleCascade(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	conn := startPostgres(t)
	ctx := context.Background()

	if _, err := conn.Exec(ctx, `
		INSERT INTO bastion_scopes (id, tenant_id, name, kind)
		VALUES ($1, $2, $3, $4)`,
		"scope_1", "t1", "Cardiology", "department"); err != nil {
		t.Fatalf("insert scope: %v", err)
	}
	if _, err := conn.Exec(ctx, `
		INSERT INTO bastion_scope_rules (id, scope_id, module_code, resource, filter_kind)
		VALUES ($1, $2, $3, $4, $5)`,
		"srule_1", "scope_1", "emr", "patient", "department"); err != nil {
		t.Fatalf("insert scope rule: %v", err)
	}

	if _, err := conn.Exec(ctx, `DELETE FROM bastion_scopes WHERE id = $1`, "scope_1"); err != nil {
		t.Fatalf("delete scope: %v", err)
	}

	var n int
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM bastion_scope_rules`).Scan(&n); err != nil {
		t.Fatalf("count scope rules: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected scope rules to cascade, %d left", n)
	}
}

func TestSchemaAssignmentWindows(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	conn := startPostgres(t)
	ctx := context.Background()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	const insert = `
		INSERT INTO bastion_assignments (id, tenant_id, user_id, scope_id, role_id, effective_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	rows := []struct {
		id             string
		effective, exp *time.Time
	}{
		{"as_current", &past, &future},
		{"as_expired", &past, &past},
		{"as_pending", &future, nil},
		{"as_open", nil, nil},
	}
	for _, r := range rows {
		if _, err := conn.Exec(ctx, insert, r.id, "t1", "u1", "scope_1", "role_1", r.effective, r.exp); err != nil {
			t.Fatalf("insert %s: %v", r.id, err)
		}
	}

	// The window clause used by ListActiveForUser.
	rs, err := conn.Query(ctx, `
		SELECT id FROM bastion_assignments
		WHERE tenant_id = $1 AND user_id = $2 AND active
		  AND (effective_at IS NULL OR effective_at <= $3)
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY id`, "t1", "u1", now)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rs.Close()

	var got []string
	for rs.Next() {
		var id string
		if err := rs.Scan(&id); err != nil {
			t.Fatalf("scan: %v", err)
		}
		got = append(got, id)
	}
	if len(got) != 2 || got[0] != "as_current" || got[1] != "as_open" {
		t.Fatalf("expected [as_current as_open], got %v", got)
	}
}
