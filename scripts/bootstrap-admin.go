package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/taskflow/taskflow/internal/auth"
	"github.com/taskflow/taskflow/internal/config"
	"github.com/taskflow/taskflow/internal/model"
	"github.com/taskflow/taskflow/internal/repository"
)

type output struct {
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	Created   bool       `json:"created"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		name        = flag.String("name", "Administrator", "Display name for a new admin")
		email       = flag.String("email", "", "Admin email (required)")
		jwtSecret   = flag.String("jwt-secret", os.Getenv("JWT_SECRET"), "Signing secret; when set, a token is printed")
		jwtIssuer   = flag.String("jwt-issuer", envOr("JWT_ISSUER", "taskflow"), "Token issuer")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	// The password is read from the environment so it stays out of shell history.
	password := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")

	if *databaseURL == "" {
		fail("DATABASE_URL is required")
	}
	if strings.TrimSpace(*email) == "" {
		fail("-email is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.PoolOptions{MaxConns: 2})
	if err != nil {
		fail("connect database:", err)
	}
	defer repo.Close()

	hasher := auth.NewPasswordHasher(auth.DefaultParams, 1)
	user, created, err := ensureAdmin(ctx, repo, hasher, *name, model.NormalizeEmail(*email), password)
	if err != nil {
		fail(err)
	}

	out := output{UserID: user.ID, Email: user.Email, Role: user.Role, Created: created}
	if len(*jwtSecret) >= config.MinJWTSecretLength {
		tokens := auth.NewTokenService([]byte(*jwtSecret), 24*time.Hour, *jwtIssuer)
		token, exp, err := tokens.Issue(user.ID, user.Role)
		if err != nil {
			fail("issue token:", err)
		}
		out.Token = token
		out.ExpiresAt = &exp
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.UserID)
		if out.Token != "" {
			fmt.Println(out.Token)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fail("invalid format; use plain or json")
	}
}

// ensureAdmin promotes and reactivates an existing account, or creates a
// new admin when the email is unknown. A new admin needs a password.
func ensureAdmin(ctx context.Context, repo *repository.Repository, hasher *auth.PasswordHasher, name, email, password string) (*model.User, bool, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	if err == nil {
		role, active := model.RoleAdmin, true
		promoted, err := repo.PatchUser(ctx, existing.ID, repository.UserPatch{Role: &role, IsActive: &active})
		if err != nil {
			return nil, false, fmt.Errorf("promote user: %w", err)
		}
		return promoted, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, fmt.Errorf("look up user: %w", err)
	}

	if len(password) < 6 {
		return nil, false, errors.New("BOOTSTRAP_ADMIN_PASSWORD must be at least 6 characters")
	}
	hash, err := hasher.Hash(ctx, password)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &model.User{
		ID:           model.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return user, true, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(args ...any) {
	fmt.Fprintln(os.Stderr, args...)
	os.Exit(1)
}
