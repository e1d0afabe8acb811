package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamhub-io/streamhub/internal/types"
)

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential store contract. Reads exclude the password
// hash and one-time token state unless the method explicitly exists to
// fetch them; mutations are whole state transitions, never field pokes.
type AuthRepo interface {
	// CreateUser inserts a new user with an already-hashed password.
	// Returns types.ErrUsernameExists or types.ErrEmailExists when the
	// corresponding unique constraint is violated.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error)

	// GetUserByEmail fetches a user for credential comparison; the result
	// includes the password hash and the security counters.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)

	// GetUserByID fetches a user without the password hash.
	GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error)

	// GetUserPasswordHash fetches only the stored hash for the
	// authenticated password-change flow.
	GetUserPasswordHash(ctx context.Context, userID uuid.UUID) (string, error)

	// RecordLoginFailure applies the lockout failure transition as one
	// atomic UPDATE: an expired lock resets the counter to 1 and clears
	// the lock; otherwise the counter increments and the account locks
	// until now+lockFor once the post-increment count reaches maxAttempts.
	// Returns whether this failure left the row locked.
	RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockFor time.Duration) (bool, error)

	// RecordLoginSuccess resets the attempt counter, clears any lock and
	// stamps last_login.
	RecordLoginSuccess(ctx context.Context, userID uuid.UUID) error

	// UpdatePassword replaces the stored hash wholesale.
	UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error

	// SetResetToken stores the hash+expiry pair of a freshly minted reset
	// token; ClearResetToken removes the pair (rollback path).
	SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ClearResetToken(ctx context.Context, userID uuid.UUID) error

	// GetUserByResetToken resolves an unexpired reset token hash to its
	// user, including the stored hash for constant-time re-comparison.
	// Returns types.ErrTokenInvalidOrExpired when nothing matches.
	GetUserByResetToken(ctx context.Context, tokenHash string) (*types.User, error)

	// CompletePasswordReset replaces the password and clears the reset
	// token pair in one guarded UPDATE, making the token single-use.
	CompletePasswordReset(ctx context.Context, userID uuid.UUID, tokenHash, newPasswordHash string) error

	// SetVerificationToken and friends mirror the reset token lifecycle
	// for email verification.
	SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	GetUserByVerificationToken(ctx context.Context, tokenHash string) (*types.User, error)
	CompleteEmailVerification(ctx context.Context, userID uuid.UUID, tokenHash string) error
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

// PgxPool is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresAuthRepo(pgpool PgxPool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userSecurityColumns = `id, username, email, avatar, role, is_email_verified,
       bio, website, location, last_login, login_attempts, lock_until,
       created_at, updated_at`

func scanUser(row pgx.Row, u *types.User) error {
	return row.Scan(&u.ID, &u.Username, &u.Email, &u.Avatar, &u.Role, &u.IsEmailVerified,
		&u.Bio, &u.Website, &u.Location, &u.LastLogin, &u.LoginAttempts, &u.LockUntil,
		&u.CreatedAt, &u.UpdatedAt)
}

func (r *PostgresAuthRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var user types.User
	err := scanUser(r.pgpool.QueryRow(ctx, `
		INSERT INTO users (id, username, email, password_hash)
		VALUES ($1, $2, lower($3), $4)
		RETURNING `+userSecurityColumns,
		uuid.New(), username, email, passwordHash), &user)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "email") {
				return nil, types.ErrEmailExists
			}
			return nil, types.ErrUsernameExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	var user types.User
	err := r.pgpool.QueryRow(ctx, `
		SELECT `+userSecurityColumns+`, password_hash
		FROM users WHERE email = lower($1)`,
		email).Scan(&user.ID, &user.Username, &user.Email, &user.Avatar, &user.Role, &user.IsEmailVerified,
		&user.Bio, &user.Website, &user.Location, &user.LastLogin, &user.LoginAttempts, &user.LockUntil,
		&user.CreatedAt, &user.UpdatedAt, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user by email: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	var user types.User
	err := scanUser(r.pgpool.QueryRow(ctx, `
		SELECT `+userSecurityColumns+`
		FROM users WHERE id = $1`, userID), &user)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) GetUserPasswordHash(ctx context.Context, userID uuid.UUID) (string, error) {
	var hash string
	err := r.pgpool.QueryRow(ctx,
		"SELECT password_hash FROM users WHERE id = $1", userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", types.ErrNotFound
		}
		return "", fmt.Errorf("failed to query password hash: %w", err)
	}
	return hash, nil
}

// RecordLoginFailure is deliberately a single UPDATE so concurrent failed
// logins serialize on the row instead of losing increments to a
// load-then-save race. The RETURNING clause reports the post-update lock
// state; callers only invoke this on unlocked rows, so a true result is
// exactly the unlocked-to-locked transition.
func (r *PostgresAuthRepo) RecordLoginFailure(ctx context.Context, userID uuid.UUID, maxAttempts int, lockFor time.Duration) (bool, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "RecordLoginFailure", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	var locked bool
	err := r.pgpool.QueryRow(ctx, `
		UPDATE users SET
			login_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= now() THEN 1
				ELSE login_attempts + 1
			END,
			lock_until = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= now() THEN NULL
				WHEN lock_until IS NOT NULL THEN lock_until
				WHEN login_attempts + 1 >= $2 THEN $3
				ELSE NULL
			END,
			updated_at = now()
		WHERE id = $1
		RETURNING lock_until IS NOT NULL AND lock_until > now()`,
		userID, maxAttempts, time.Now().Add(lockFor)).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, types.ErrNotFound
		}
		return false, fmt.Errorf("failed to record login failure: %w", err)
	}
	return locked, nil
}

func (r *PostgresAuthRepo) RecordLoginSuccess(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET login_attempts = 0, lock_until = NULL,
			last_login = now(), updated_at = now()
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to record login success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, newPasswordHash string) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		userID, newPasswordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) SetResetToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET reset_password_token_hash = $2, reset_password_expire = $3,
			updated_at = now()
		WHERE id = $1`, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) ClearResetToken(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx, `
		UPDATE users SET reset_password_token_hash = NULL, reset_password_expire = NULL,
			updated_at = now()
		WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear reset token: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) GetUserByResetToken(ctx context.Context, tokenHash string) (*types.User, error) {
	var user types.User
	err := r.pgpool.QueryRow(ctx, `
		SELECT `+userSecurityColumns+`, reset_password_token_hash
		FROM users
		WHERE reset_password_token_hash = $1 AND reset_password_expire > now()`,
		tokenHash).Scan(&user.ID, &user.Username, &user.Email, &user.Avatar, &user.Role, &user.IsEmailVerified,
		&user.Bio, &user.Website, &user.Location, &user.LastLogin, &user.LoginAttempts, &user.LockUntil,
		&user.CreatedAt, &user.UpdatedAt, &user.ResetPasswordTokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTokenInvalidOrExpired
		}
		return nil, fmt.Errorf("failed to query reset token: %w", err)
	}
	return &user, nil
}

// CompletePasswordReset guards on the token hash so the token is consumed
// exactly once; a concurrent or repeated reset sees zero rows and fails.
func (r *PostgresAuthRepo) CompletePasswordReset(ctx context.Context, userID uuid.UUID, tokenHash, newPasswordHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "CompletePasswordReset", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET password_hash = $3,
			reset_password_token_hash = NULL, reset_password_expire = NULL,
			updated_at = now()
		WHERE id = $1 AND reset_password_token_hash = $2
		  AND reset_password_expire > now()`,
		userID, tokenHash, newPasswordHash)
	if err != nil {
		return fmt.Errorf("failed to complete password reset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrTokenInvalidOrExpired
	}
	return nil
}

func (r *PostgresAuthRepo) SetVerificationToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET email_verification_token_hash = $2, email_verification_expire = $3,
			updated_at = now()
		WHERE id = $1`, userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresAuthRepo) GetUserByVerificationToken(ctx context.Context, tokenHash string) (*types.User, error) {
	var user types.User
	err := r.pgpool.QueryRow(ctx, `
		SELECT `+userSecurityColumns+`, email_verification_token_hash
		FROM users
		WHERE email_verification_token_hash = $1 AND email_verification_expire > now()`,
		tokenHash).Scan(&user.ID, &user.Username, &user.Email, &user.Avatar, &user.Role, &user.IsEmailVerified,
		&user.Bio, &user.Website, &user.Location, &user.LastLogin, &user.LoginAttempts, &user.LockUntil,
		&user.CreatedAt, &user.UpdatedAt, &user.EmailVerificationTokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTokenInvalidOrExpired
		}
		return nil, fmt.Errorf("failed to query verification token: %w", err)
	}
	return &user, nil
}

func (r *PostgresAuthRepo) CompleteEmailVerification(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE users SET is_email_verified = TRUE,
			email_verification_token_hash = NULL, email_verification_expire = NULL,
			updated_at = now()
		WHERE id = $1 AND email_verification_token_hash = $2
		  AND email_verification_expire > now()`,
		userID, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to complete email verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrTokenInvalidOrExpired
	}
	return nil
}
