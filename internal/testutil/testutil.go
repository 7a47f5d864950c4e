// Package testutil holds fixtures shared by the unit and integration suites.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/migrations"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// Key of the session advisory lock that serializes database suites across
// packages sharing one DATABASE_URL.
const dbLockKey int64 = 0x7a5f10

// PrepareDatabase takes the suite lock for the rest of the test and rebuilds
// the schema from the embedded migrations, leaving empty tables.
func PrepareDatabase(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", dbLockKey); err != nil {
		conn.Release()
		t.Fatalf("acquire advisory lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", dbLockKey)
		conn.Release()
	})

	if err := resetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
}

// resetSchema runs every down migration newest first, then every up
// migration oldest first.
func resetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	downs, err := fs.Glob(migrations.FS, "*.down.sql")
	if err != nil {
		return err
	}
	ups, err := fs.Glob(migrations.FS, "*.up.sql")
	if err != nil {
		return err
	}
	slices.Sort(downs)
	slices.Reverse(downs)
	slices.Sort(ups)

	if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS schema_migrations"); err != nil {
		return fmt.Errorf("drop schema_migrations: %w", err)
	}
	for _, name := range append(downs, ups...) {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return err
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// placeholderHash parses as argon2id but matches no password. Tests that
// log in must hash a real one.
const placeholderHash = "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo"

// NewTestUser returns an active user with a unique id and email.
func NewTestUser(t testing.TB, name string, role model.Role) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := ulid.Make().String()
	return &model.User{
		ID:           id,
		Name:         name,
		Email:        model.NormalizeEmail(fmt.Sprintf("%s-%s@example.com", name, id[len(id)-8:])),
		PasswordHash: placeholderHash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestTask returns a pending, medium-priority task owned by ownerID.
func NewTestTask(t testing.TB, ownerID, title string) *model.Task {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Task{
		ID:        ulid.Make().String(),
		Title:     title,
		Status:    model.TaskStatusPending,
		Priority:  model.TaskPriorityMedium,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
