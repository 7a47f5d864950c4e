package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/taskflow/taskflow/internal/model"
)

// Common errors for user repository operations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, name, email, password_hash, role, is_active, created_at, updated_at`

// UserFilter narrows ListUsers.
type UserFilter struct {
	Search   string // name or email, case-insensitive
	Roles    []model.Role
	IsActive *bool
	Page
}

// CreateUser inserts a new user. The email must already be normalized.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUserByID retrieves a user by their ID.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// UserPatch names the columns one write may change. Nil fields keep their
// stored value; UpdatedAt defaults to now.
type UserPatch struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *model.Role
	IsActive     *bool
	UpdatedAt    time.Time
}

// UpdateUserProfile sets the self-service fields: name and email.
func (r *Repository) UpdateUserProfile(ctx context.Context, id string, name, email *string) (*model.User, error) {
	return r.PatchUser(ctx, id, UserPatch{Name: name, Email: email})
}

// UpdateUserPassword sets the password hash only.
func (r *Repository) UpdateUserPassword(ctx context.Context, id, passwordHash string) (*model.User, error) {
	return r.PatchUser(ctx, id, UserPatch{PasswordHash: &passwordHash})
}

// PatchUser writes the fields set in patch and returns the stored row.
// Columns outside the patch are never rewritten, so concurrent writers
// touching other columns do not undo each other.
func (r *Repository) PatchUser(ctx context.Context, id string, patch UserPatch) (*model.User, error) {
	if patch.UpdatedAt.IsZero() {
		patch.UpdatedAt = time.Now().UTC()
	}

	args := []any{id}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Email != nil {
		set("email", model.NormalizeEmail(*patch.Email))
	}
	if patch.PasswordHash != nil {
		set("password_hash", *patch.PasswordHash)
	}
	if patch.Role != nil {
		set("role", *patch.Role)
	}
	if patch.IsActive != nil {
		set("is_active", *patch.IsActive)
	}
	set("updated_at", patch.UpdatedAt)

	query := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id = $1 RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrUserNotFound
		case isUniqueViolation(err):
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// DeleteUser removes a user and every task they own in one transaction.
// It returns the number of tasks removed.
func (r *Repository) DeleteUser(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM tasks WHERE user_id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete tasks: %w", err)
		}
		removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to delete user: %w", err)
	}
	return removed, nil
}

// ListUsers returns one page of users, newest first, and the total match count.
func (r *Repository) ListUsers(ctx context.Context, filter UserFilter) ([]*model.User, int64, error) {
	var where whereClause
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		where.add("role = ANY(?)", pq.Array(roles))
	}
	if filter.IsActive != nil {
		where.add("is_active = ?", *filter.IsActive)
	}

	var (
		users []*model.User
		total int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.pool.QueryRow(gctx, `SELECT COUNT(*) FROM users`+where.String(), where.args...).Scan(&total)
	})
	g.Go(func() error {
		page := where
		page.args = append([]any(nil), where.args...)
		limit := page.next(filter.Limit)
		offset := page.next(filter.Offset())

		query := `SELECT ` + userColumns + ` FROM users` + page.String() +
			` ORDER BY created_at DESC, id DESC LIMIT ` + limit + ` OFFSET ` + offset

		rows, err := r.pool.Query(gctx, query, page.args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			user, err := scanUser(rows)
			if err != nil {
				return err
			}
			users = append(users, user)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// UserStats counts all, active and admin users in one pass.
func (r *Repository) UserStats(ctx context.Context) (*model.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE role = 'admin')
		FROM users
	`

	var stats model.UserStats
	if err := r.pool.QueryRow(ctx, query).Scan(&stats.TotalUsers, &stats.ActiveUsers, &stats.AdminUsers); err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}
	return &stats, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
