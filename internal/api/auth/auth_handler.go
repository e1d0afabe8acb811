package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/streamhub-io/streamhub/config"
	"github.com/streamhub-io/streamhub/internal/api"
	"github.com/streamhub-io/streamhub/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	Register(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	GetMe(w http.ResponseWriter, r *http.Request)
	ForgotPassword(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	VerifyEmail(w http.ResponseWriter, r *http.Request)
	ResendVerification(w http.ResponseWriter, r *http.Request)
	UpdatePassword(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	authService AuthService
	logger      *slog.Logger
	jwtCfg      config.JWTConfig
	authCfg     config.AuthConfig
}

// NewHandlerImpl creates a new auth HandlerImpl instance.
func NewHandlerImpl(authService AuthService, jwtCfg config.JWTConfig, authCfg config.AuthConfig, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		authService: authService,
		logger:      logger,
		jwtCfg:      jwtCfg,
		authCfg:     authCfg,
	}
}

// setSessionCookie attaches the session token as an HttpOnly cookie with
// the same lifetime as the token itself.
func (h *HandlerImpl) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.jwtCfg.SessionTokenTTL),
		HttpOnly: true,
		Secure:   h.authCfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearSessionCookie expires the session cookie immediately.
func (h *HandlerImpl) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.authCfg.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

// Register godoc
// @Summary      Register a new account
// @Description  Creates a user. When email verification is enabled a
// @Description  verification link is sent and no session is issued until the
// @Description  address is verified; otherwise the response logs the user in.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.RegisterRequest true "Registration payload"
// @Success      201 {object} types.LoginResponse "Account created"
// @Failure      400 {object} types.Response "Invalid input or duplicate identity"
// @Failure      500 {object} types.Response "Internal Server Error"
// @Router       /auth/register [post]
func (h *HandlerImpl) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Register"))

	var req types.RegisterRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid registration payload", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.authService.Register(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUsernameExists):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, types.ErrEmailExists):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email already exists")
		default:
			l.ErrorContext(ctx, "Registration failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	// An empty token means verification is pending; the account must not
	// receive a session until the email is confirmed.
	if token == "" {
		api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
			"success": true,
			"message": "Registration successful. Please check your email to verify your account",
			"user":    user.Summary(),
		})
		return
	}

	h.setSessionCookie(w, token)
	api.WriteJSONResponse(w, r, http.StatusCreated, types.LoginResponse{
		Success: true,
		Token:   token,
		User:    user.Summary(),
	})
}

// Login godoc
// @Summary      Log in
// @Description  Verifies credentials and issues a session token. Repeated
// @Description  failures lock the account temporarily.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.LoginRequest true "Credentials"
// @Success      200 {object} types.LoginResponse "Logged in"
// @Failure      400 {object} types.Response "Invalid input"
// @Failure      401 {object} types.Response "Invalid credentials or email not verified"
// @Failure      423 {object} types.Response "Account locked"
// @Router       /auth/login [post]
func (h *HandlerImpl) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Login"))

	var req types.LoginRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, token, err := h.authService.Login(ctx, req)
	if err != nil {
		var locked *types.AccountLockedError
		switch {
		case errors.As(err, &locked):
			api.ErrorResponse(w, r, http.StatusLocked, locked.Error())
		case errors.Is(err, types.ErrUnauthenticated):
			// Identical message for unknown email and wrong password.
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, types.ErrEmailNotVerified):
			// 401 like bad credentials, but flagged so the client can offer
			// a resend-verification prompt.
			api.WriteJSONResponse(w, r, http.StatusUnauthorized, map[string]interface{}{
				"success":          false,
				"message":          "Please verify your email address before logging in",
				"emailNotVerified": true,
			})
		default:
			l.ErrorContext(ctx, "Login failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to log in")
		}
		return
	}

	h.setSessionCookie(w, token)
	api.WriteJSONResponse(w, r, http.StatusOK, types.LoginResponse{
		Success: true,
		Token:   token,
		User:    user.Summary(),
	})
}

// Logout godoc
// @Summary      Log out
// @Description  Clears the session cookie. The token itself stays valid
// @Description  until expiry; clients must also discard their copy.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.Response "Logged out"
// @Router       /auth/logout [post]
func (h *HandlerImpl) Logout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Logged out successfully",
	})
}

// GetMe godoc
// @Summary      Current user
// @Description  Returns the authenticated user's profile.
// @Tags         Auth
// @Produce      json
// @Success      200 {object} types.UserSummary "Current user"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *HandlerImpl) GetMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetMe"))

	userID, ok := RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.authService.GetCurrentUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to fetch current user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user.Summary(),
	})
}

// ForgotPassword godoc
// @Summary      Request a password reset
// @Description  Emails a one-time reset link valid for a short window.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.ForgotPasswordRequest true "Account email"
// @Success      200 {object} types.Response "Reset email sent"
// @Failure      404 {object} types.Response "No account with that email"
// @Failure      500 {object} types.Response "Email could not be sent"
// @Router       /auth/forgot-password [post]
func (h *HandlerImpl) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ForgotPassword"))

	var req types.ForgotPasswordRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ForgotPassword(ctx, req.Email); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "There is no user with that email")
			return
		}
		l.ErrorContext(ctx, "Forgot-password flow failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Email could not be sent")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Email sent",
	})
}

// ResetPassword godoc
// @Summary      Reset password with a one-time token
// @Description  Consumes the emailed token and sets a new password. The
// @Description  token is single-use and expires quickly.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        token path string true "Reset token"
// @Param        body body types.ResetPasswordRequest true "New password"
// @Success      200 {object} types.Response "Password reset"
// @Failure      400 {object} types.Response "Invalid or expired token"
// @Router       /auth/reset-password/{token} [put]
func (h *HandlerImpl) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ResetPassword"))

	token := chi.URLParam(r, "token")
	if token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Reset token is required")
		return
	}

	var req types.ResetPasswordRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ResetPassword(ctx, token, req.Password); err != nil {
		if errors.Is(err, types.ErrTokenInvalidOrExpired) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired token")
			return
		}
		l.ErrorContext(ctx, "Password reset failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to reset password")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Password reset successful",
	})
}

// VerifyEmail godoc
// @Summary      Verify email address
// @Description  Consumes the emailed verification token.
// @Tags         Auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200 {object} types.Response "Email verified"
// @Failure      400 {object} types.Response "Invalid or expired token"
// @Router       /auth/verify-email/{token} [get]
func (h *HandlerImpl) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "VerifyEmail"))

	token := chi.URLParam(r, "token")
	if token == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.authService.VerifyEmail(ctx, token); err != nil {
		if errors.Is(err, types.ErrTokenInvalidOrExpired) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid or expired token")
			return
		}
		l.ErrorContext(ctx, "Email verification failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to verify email")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Email verified successfully",
	})
}

// ResendVerification godoc
// @Summary      Resend the verification email
// @Description  Issues a fresh verification token for an unverified account.
// @Description  Keyed by email since unverified accounts cannot log in.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.ResendVerificationRequest true "Account email"
// @Success      200 {object} types.Response "Verification email sent"
// @Failure      400 {object} types.Response "Account already verified"
// @Failure      404 {object} types.Response "No account with that email"
// @Router       /auth/resend-verification [post]
func (h *HandlerImpl) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ResendVerification"))

	var req types.ResendVerificationRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ResendVerification(ctx, req.Email); err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email is already verified")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "There is no user with that email")
		default:
			l.ErrorContext(ctx, "Failed to resend verification email", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Email could not be sent")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Verification email sent",
	})
}

// UpdatePassword godoc
// @Summary      Change password
// @Description  Changes the authenticated user's password after re-proving
// @Description  the current one.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body body types.UpdatePasswordRequest true "Current and new password"
// @Success      200 {object} types.Response "Password updated"
// @Failure      401 {object} types.Response "Current password incorrect"
// @Security     BearerAuth
// @Router       /auth/update-password [put]
func (h *HandlerImpl) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdatePassword"))

	userID, ok := RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req types.UpdatePasswordRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.UpdatePassword(ctx, userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, types.ErrUnauthenticated):
			api.ErrorResponse(w, r, http.StatusUnauthorized, "Current password is incorrect")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			l.ErrorContext(ctx, "Password update failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update password")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Password updated successfully",
	})
}
