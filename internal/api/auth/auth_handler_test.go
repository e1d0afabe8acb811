package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/streamhub-io/streamhub/internal/types"
)

// MockAuthService is a mock implementation of the AuthService interface
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Register(ctx context.Context, req types.RegisterRequest) (*types.User, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*types.User), args.String(1), args.Error(2)
}

func (m *MockAuthService) Login(ctx context.Context, req types.LoginRequest) (*types.User, string, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*types.User), args.String(1), args.Error(2)
}

func (m *MockAuthService) GetCurrentUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) VerifyEmail(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockAuthService) ResendVerification(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAuthService) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	args := m.Called(ctx, userID, currentPassword, newPassword)
	return args.Error(0)
}

func (m *MockAuthService) ValidateToken(tokenString string) (*types.Claims, error) {
	args := m.Called(tokenString)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Claims), args.Error(1)
}

func newTestHandler(service AuthService) *HandlerImpl {
	return NewHandlerImpl(service, testJWTConfig(), testAuthConfig(), slog.Default())
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func TestRegisterHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		user := &types.User{ID: uuid.New(), Username: "newuser", Email: "new@example.com", Role: types.RoleUser}
		mockService.On("Register", mock.Anything, types.RegisterRequest{
			Username: "newuser", Email: "new@example.com", Password: "password123",
		}).Return(user, "signed-token", nil).Once()

		body := bytes.NewBufferString(`{"username":"newuser","email":"new@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp types.LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "signed-token", resp.Token)
		assert.Equal(t, "newuser", resp.User.Username)

		cookie := sessionCookie(rec)
		require.NotNil(t, cookie)
		assert.Equal(t, "signed-token", cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		mockService.AssertExpectations(t)
	})

	t.Run("VerificationPendingIssuesNoSession", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		user := &types.User{ID: uuid.New(), Username: "newuser", Email: "new@example.com", Role: types.RoleUser}
		// An empty token from the service means verification is pending.
		mockService.On("Register", mock.Anything, mock.AnythingOfType("types.RegisterRequest")).
			Return(user, "", nil).Once()

		body := bytes.NewBufferString(`{"username":"newuser","email":"new@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), `"token"`)
		assert.Contains(t, rec.Body.String(), "verify your account")
		assert.Nil(t, sessionCookie(rec))
		mockService.AssertExpectations(t)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("Register", mock.Anything, mock.AnythingOfType("types.RegisterRequest")).
			Return(nil, "", types.ErrEmailExists).Once()

		body := bytes.NewBufferString(`{"username":"newuser","email":"taken@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Email already exists")
		mockService.AssertExpectations(t)
	})

	t.Run("ShortPasswordRejectedBeforeService", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		body := bytes.NewBufferString(`{"username":"newuser","email":"new@example.com","password":"123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", body)
		rec := httptest.NewRecorder()

		handler.Register(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertNotCalled(t, "Register", mock.Anything, mock.Anything)
	})
}

func TestLoginHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		user := &types.User{ID: uuid.New(), Username: "testuser", Email: "test@example.com", Role: types.RoleUser}
		mockService.On("Login", mock.Anything, types.LoginRequest{
			Email: "test@example.com", Password: "password123",
		}).Return(user, "signed-token", nil).Once()

		body := bytes.NewBufferString(`{"email":"test@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, sessionCookie(rec))
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidCredentials", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("Login", mock.Anything, mock.AnythingOfType("types.LoginRequest")).
			Return(nil, "", types.ErrUnauthenticated).Once()

		body := bytes.NewBufferString(`{"email":"test@example.com","password":"wrong"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid credentials")
		assert.Nil(t, sessionCookie(rec))
		mockService.AssertExpectations(t)
	})

	t.Run("LockedAccount", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("Login", mock.Anything, mock.AnythingOfType("types.LoginRequest")).
			Return(nil, "", &types.AccountLockedError{RemainingMinutes: 30}).Once()

		body := bytes.NewBufferString(`{"email":"test@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusLocked, rec.Code)
		assert.Contains(t, rec.Body.String(), "30 minutes")
		mockService.AssertExpectations(t)
	})

	t.Run("UnverifiedEmail", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("Login", mock.Anything, mock.AnythingOfType("types.LoginRequest")).
			Return(nil, "", types.ErrEmailNotVerified).Once()

		body := bytes.NewBufferString(`{"email":"test@example.com","password":"password123"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
		rec := httptest.NewRecorder()

		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), `"emailNotVerified":true`)
		mockService.AssertExpectations(t)
	})
}

func TestLogoutHandler(t *testing.T) {
	handler := newTestHandler(new(MockAuthService))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()

	handler.Logout(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestGetMeHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		user := &types.User{ID: uuid.New(), Username: "testuser", Email: "test@example.com", Role: types.RoleUser}
		mockService.On("GetCurrentUser", mock.Anything, user.ID).Return(user, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		ctx := context.WithValue(req.Context(), UserIDKey, user.ID.String())
		rec := httptest.NewRecorder()

		handler.GetMe(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "testuser")
		mockService.AssertExpectations(t)
	})

	t.Run("NoContextUserID", func(t *testing.T) {
		handler := newTestHandler(new(MockAuthService))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		rec := httptest.NewRecorder()

		handler.GetMe(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestForgotPasswordHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ForgotPassword", mock.Anything, "test@example.com").Return(nil).Once()

		body := bytes.NewBufferString(`{"email":"test@example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", body)
		rec := httptest.NewRecorder()

		handler.ForgotPassword(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("UnknownEmail", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ForgotPassword", mock.Anything, "nobody@example.com").Return(types.ErrNotFound).Once()

		body := bytes.NewBufferString(`{"email":"nobody@example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/forgot-password", body)
		rec := httptest.NewRecorder()

		handler.ForgotPassword(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestResetPasswordHandler(t *testing.T) {
	newRequest := func(token, body string) *http.Request {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/reset-password/"+token, bytes.NewBufferString(body))
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("token", token)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ResetPassword", mock.Anything, "goodtoken", "newpassword123").Return(nil).Once()

		rec := httptest.NewRecorder()
		handler.ResetPassword(rec, newRequest("goodtoken", `{"password":"newpassword123"}`))

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ResetPassword", mock.Anything, "stale", "newpassword123").
			Return(types.ErrTokenInvalidOrExpired).Once()

		rec := httptest.NewRecorder()
		handler.ResetPassword(rec, newRequest("stale", `{"password":"newpassword123"}`))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid or expired token")
		mockService.AssertExpectations(t)
	})
}

func TestVerifyEmailHandler(t *testing.T) {
	newRequest := func(token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email/"+token, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("token", token)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("VerifyEmail", mock.Anything, "goodtoken").Return(nil).Once()

		rec := httptest.NewRecorder()
		handler.VerifyEmail(rec, newRequest("goodtoken"))

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidToken", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("VerifyEmail", mock.Anything, "stale").Return(types.ErrTokenInvalidOrExpired).Once()

		rec := httptest.NewRecorder()
		handler.VerifyEmail(rec, newRequest("stale"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockService.AssertExpectations(t)
	})
}

func TestResendVerificationHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ResendVerification", mock.Anything, "new@example.com").Return(nil).Once()

		body := bytes.NewBufferString(`{"email":"new@example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/resend-verification", body)
		rec := httptest.NewRecorder()

		handler.ResendVerification(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("AlreadyVerified", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)

		mockService.On("ResendVerification", mock.Anything, "done@example.com").
			Return(types.ErrValidation).Once()

		body := bytes.NewBufferString(`{"email":"done@example.com"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/resend-verification", body)
		rec := httptest.NewRecorder()

		handler.ResendVerification(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "already verified")
		mockService.AssertExpectations(t)
	})
}

func TestUpdatePasswordHandler(t *testing.T) {
	t.Run("WrongCurrentPassword", func(t *testing.T) {
		mockService := new(MockAuthService)
		handler := newTestHandler(mockService)
		userID := uuid.New()

		mockService.On("UpdatePassword", mock.Anything, userID, "wrong", "newpassword123").
			Return(types.ErrUnauthenticated).Once()

		body := bytes.NewBufferString(`{"currentPassword":"wrong","newPassword":"newpassword123"}`)
		req := httptest.NewRequest(http.MethodPut, "/api/v1/auth/update-password", body)
		ctx := context.WithValue(req.Context(), UserIDKey, userID.String())
		rec := httptest.NewRecorder()

		handler.UpdatePassword(rec, req.WithContext(ctx))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Current password is incorrect")
		mockService.AssertExpectations(t)
	})
}
