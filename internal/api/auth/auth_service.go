package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/streamhub-io/streamhub/app/observability/metrics"
	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// Mailer delivers account-security emails. The notification package
// provides the SMTP implementation; tests substitute a mock.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, username, verifyURL string) error
	SendPasswordResetEmail(ctx context.Context, to, username, resetURL string) error
	SendPasswordChangedEmail(ctx context.Context, to, username string) error
}

// AuthService defines the account-security operations: registration,
// login with lockout, session issuance and the one-time token flows.
type AuthService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*types.User, string, error)
	Login(ctx context.Context, req types.LoginRequest) (*types.User, string, error)
	GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error
	ValidateToken(tokenString string) (*types.Claims, error)
}

type AuthServiceImpl struct {
	logger        *slog.Logger
	repo          AuthRepo
	mailer        Mailer
	jwtCfg        config.JWTConfig
	cfg           config.AuthConfig
	clientBaseURL string

	// metrics may be nil (tests); count is nil-safe.
	metrics *metrics.AppMetrics
}

func NewAuthService(repo AuthRepo, mailer Mailer, jwtCfg config.JWTConfig, cfg config.AuthConfig, clientBaseURL string, m *metrics.AppMetrics, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger:        logger,
		repo:          repo,
		mailer:        mailer,
		jwtCfg:        jwtCfg,
		cfg:           cfg,
		clientBaseURL: clientBaseURL,
		metrics:       m,
	}
}

func (s *AuthServiceImpl) count(ctx context.Context, pick func(*metrics.AppMetrics) metric.Int64Counter) {
	if s.metrics == nil {
		return
	}
	if counter := pick(s.metrics); counter != nil {
		counter.Add(ctx, 1)
	}
}

// Register creates the account and hashes the password. Without email
// verification the session token is returned alongside the user so
// registration logs the caller in; with verification enabled a
// verification link is dispatched instead and the returned token is empty.
// The account gets no session until the email is verified and Login
// succeeds.
func (s *AuthServiceImpl) Register(ctx context.Context, req types.RegisterRequest) (*types.User, string, error) {
	l := s.logger.With(slog.String("method", "Register"), slog.String("username", req.Username))

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, types.ErrUsernameExists) || errors.Is(err, types.ErrEmailExists) {
			l.WarnContext(ctx, "Registration rejected, duplicate identity", slog.Any("error", err))
			return nil, "", err
		}
		l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
		return nil, "", err
	}

	if s.cfg.RequireEmailVerification {
		if err := s.dispatchVerification(ctx, user); err != nil {
			// Account creation already succeeded; the user can request a
			// fresh link via resend-verification.
			l.ErrorContext(ctx, "Failed to send verification email", slog.Any("error", err))
		}
		s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.RegistrationsTotal })
		l.InfoContext(ctx, "User registered, verification pending", slog.String("user_id", user.ID.String()))
		return user, "", nil
	}

	token, err := GenerateSessionToken(s.jwtCfg, user.ID.String(), user.Username, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.RegistrationsTotal })
	l.InfoContext(ctx, "User registered", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

// Login verifies credentials under the lockout policy. A locked account
// short-circuits before the password is checked; a wrong password on an
// unlocked account records a failure; nonexistent accounts and wrong
// passwords produce the identical ErrUnauthenticated.
func (s *AuthServiceImpl) Login(ctx context.Context, req types.LoginRequest) (*types.User, string, error) {
	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, "", types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to look up user", slog.Any("error", err))
		return nil, "", err
	}

	now := time.Now()
	if IsLocked(user, now) {
		l.WarnContext(ctx, "Login attempt on locked account", slog.String("user_id", user.ID.String()))
		return nil, "", &types.AccountLockedError{RemainingMinutes: RemainingLockMinutes(user, now)}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		// The repo reports whether this failure locked the row, so the
		// lockout counter tracks actual transitions rather than a stale
		// pre-read attempt count.
		locked, recErr := s.repo.RecordLoginFailure(ctx, user.ID, s.cfg.MaxLoginAttempts, s.cfg.LockDuration)
		if recErr != nil {
			l.ErrorContext(ctx, "Failed to record login failure", slog.Any("error", recErr))
		}
		s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.LoginFailureTotal })
		if locked {
			s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.AccountLockoutsTotal })
		}
		return nil, "", types.ErrUnauthenticated
	}

	if s.cfg.RequireEmailVerification && !user.IsEmailVerified {
		return nil, "", types.ErrEmailNotVerified
	}

	if err := s.repo.RecordLoginSuccess(ctx, user.ID); err != nil {
		l.ErrorContext(ctx, "Failed to record login success", slog.Any("error", err))
	}

	token, err := GenerateSessionToken(s.jwtCfg, user.ID.String(), user.Username, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.LoginSuccessTotal })
	l.InfoContext(ctx, "User logged in", slog.String("user_id", user.ID.String()))
	return user, token, nil
}

func (s *AuthServiceImpl) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// ForgotPassword mints a reset token, stores its hash and emails the
// plaintext link. If the email cannot be dispatched the stored token is
// rolled back so no orphaned credential lingers in the database.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	l := s.logger.With(slog.String("method", "ForgotPassword"))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	plaintext, hash, err := GenerateOneTimeToken()
	if err != nil {
		return err
	}

	if err := s.repo.SetResetToken(ctx, user.ID, hash, time.Now().Add(s.cfg.ResetTokenTTL)); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.clientBaseURL, plaintext)
	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Username, resetURL); err != nil {
		l.ErrorContext(ctx, "Failed to send reset email, rolling back token", slog.Any("error", err))
		if clearErr := s.repo.ClearResetToken(ctx, user.ID); clearErr != nil {
			l.ErrorContext(ctx, "Failed to roll back reset token", slog.Any("error", clearErr))
		}
		return fmt.Errorf("failed to send reset email: %w", err)
	}

	l.InfoContext(ctx, "Password reset email sent", slog.String("user_id", user.ID.String()))
	return nil
}

// ResetPassword consumes a reset token: the caller's plaintext is hashed,
// matched in constant time against the stored hash, and the password swap
// plus token clear happen in one guarded statement.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, token, newPassword string) error {
	l := s.logger.With(slog.String("method", "ResetPassword"))

	tokenHash := HashOneTimeToken(token)
	user, err := s.repo.GetUserByResetToken(ctx, tokenHash)
	if err != nil {
		return err
	}
	if user.ResetPasswordTokenHash == nil || !TokenHashEqual(*user.ResetPasswordTokenHash, tokenHash) {
		return types.ErrTokenInvalidOrExpired
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.repo.CompletePasswordReset(ctx, user.ID, tokenHash, string(newHash)); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordChangedEmail(ctx, user.Email, user.Username); err != nil {
		// Notification only; the reset itself already succeeded.
		l.WarnContext(ctx, "Failed to send password-changed email", slog.Any("error", err))
	}

	s.count(ctx, func(m *metrics.AppMetrics) metric.Int64Counter { return m.PasswordResetsTotal })
	l.InfoContext(ctx, "Password reset completed", slog.String("user_id", user.ID.String()))
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthServiceImpl) VerifyEmail(ctx context.Context, token string) error {
	tokenHash := HashOneTimeToken(token)
	user, err := s.repo.GetUserByVerificationToken(ctx, tokenHash)
	if err != nil {
		return err
	}
	if user.EmailVerificationTokenHash == nil || !TokenHashEqual(*user.EmailVerificationTokenHash, tokenHash) {
		return types.ErrTokenInvalidOrExpired
	}
	if err := s.repo.CompleteEmailVerification(ctx, user.ID, tokenHash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Email verified", slog.String("user_id", user.ID.String()))
	return nil
}

// ResendVerification issues a fresh verification token for an account that
// has not verified yet. Keyed by email because unverified accounts hold no
// session. Replacing the stored hash invalidates any earlier link still in
// the user's inbox.
func (s *AuthServiceImpl) ResendVerification(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.IsEmailVerified {
		return types.ErrValidation
	}
	return s.dispatchVerification(ctx, user)
}

// UpdatePassword changes the password of an authenticated user after
// re-proving the current one.
func (s *AuthServiceImpl) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	l := s.logger.With(slog.String("method", "UpdatePassword"), slog.String("user_id", userID.String()))

	storedHash, err := s.repo.GetUserPasswordHash(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(currentPassword)); err != nil {
		return types.ErrUnauthenticated
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(newHash)); err != nil {
		return err
	}

	l.InfoContext(ctx, "Password updated")
	return nil
}

func (s *AuthServiceImpl) ValidateToken(tokenString string) (*types.Claims, error) {
	return ValidateSessionToken(s.jwtCfg, tokenString)
}

func (s *AuthServiceImpl) dispatchVerification(ctx context.Context, user *types.User) error {
	plaintext, hash, err := GenerateOneTimeToken()
	if err != nil {
		return err
	}
	if err := s.repo.SetVerificationToken(ctx, user.ID, hash, time.Now().Add(s.cfg.VerificationTokenTTL)); err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	verifyURL := fmt.Sprintf("%s/verify-email/%s", s.clientBaseURL, plaintext)
	return s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, verifyURL)
}
