package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamhub-io/streamhub/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for profile persistence.
type UserRepo interface {
	// GetUserByID retrieves a user's profile by their unique ID.
	// Returns types.ErrNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// GetUserByUsername retrieves a public profile by username.
	GetUserByUsername(ctx context.Context, username string) (*types.User, error)

	// UpdateProfile updates mutable fields on a user's profile. Only the
	// non-nil fields of params are written. Duplicate username/email map
	// to the corresponding sentinel errors.
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error)

	// UpdateAvatar replaces the avatar URL.
	UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error

	// ClearEmailVerification marks the account unverified again after an
	// email change.
	ClearEmailVerification(ctx context.Context, userID uuid.UUID) error

	// DeleteUser removes the account. Videos and likes cascade via FK.
	DeleteUser(ctx context.Context, userID uuid.UUID) error

	// --- Admin operations ---

	ListUsers(ctx context.Context, limit, offset int) ([]types.User, error)
	UpdateRole(ctx context.Context, userID uuid.UUID, role string) error
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

// PgxPool is the subset of pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresUserRepo(pgpool PgxPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const profileColumns = `id, username, email, avatar, role, is_email_verified,
       bio, website, location, last_login, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Role, &u.IsEmailVerified,
		&u.Bio, &u.Website, &u.Location, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	u, err := scanProfile(r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	u, err := scanProfile(r.pgpool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM users WHERE lower(username) = lower($1)`, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	return u, nil
}

// UpdateProfile builds the SET clause from the non-nil fields so a partial
// update never clobbers columns the caller did not send.
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateProfile", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	setClauses := []string{}
	args := []any{userID}
	addSet := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Username != nil {
		addSet("username", *params.Username)
	}
	if params.Email != nil {
		addSet("email", strings.ToLower(*params.Email))
	}
	if params.Bio != nil {
		addSet("bio", *params.Bio)
	}
	if params.Website != nil {
		addSet("website", *params.Website)
	}
	if params.Location != nil {
		addSet("location", *params.Location)
	}
	if len(setClauses) == 0 {
		return r.GetUserByID(ctx, userID)
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(setClauses, ", "), profileColumns)

	u, err := scanProfile(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, types.ErrEmailExists
			}
			return nil, types.ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET avatar = $2, updated_at = now() WHERE id = $1", userID, avatarURL)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) ClearEmailVerification(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx, `
		UPDATE users SET is_email_verified = FALSE,
			email_verification_token_hash = NULL, email_verification_expire = NULL,
			updated_at = now()
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear email verification: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "DeleteUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, "DELETE FROM users WHERE id = $1", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]types.User, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM users ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		u, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepo) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET role = $2, updated_at = now() WHERE id = $1", userID, role)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
