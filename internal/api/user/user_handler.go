package user

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/streamhub-io/streamhub/internal/api"
	"github.com/streamhub-io/streamhub/internal/api/auth"
	"github.com/streamhub-io/streamhub/internal/types"
)

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	GetProfile(w http.ResponseWriter, r *http.Request)
	GetPublicProfile(w http.ResponseWriter, r *http.Request)
	GetActivity(w http.ResponseWriter, r *http.Request)
	UpdateProfile(w http.ResponseWriter, r *http.Request)
	UploadAvatar(w http.ResponseWriter, r *http.Request)
	DeleteAccount(w http.ResponseWriter, r *http.Request)

	ListUsers(w http.ResponseWriter, r *http.Request)
	GetUser(w http.ResponseWriter, r *http.Request)
	UpdateRole(w http.ResponseWriter, r *http.Request)
	DeleteUser(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	userService UserService
	logger      *slog.Logger
}

// NewHandlerImpl creates a new user HandlerImpl instance.
func NewHandlerImpl(userService UserService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		userService: userService,
		logger:      logger,
	}
}

// GetProfile godoc
// @Summary      Get own profile
// @Description  Returns the authenticated user's profile with video stats.
// @Tags         User
// @Produce      json
// @Success      200 {object} Profile "Profile"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/profile [get]
func (h *HandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetProfile"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get profile", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// GetActivity godoc
// @Summary      Get own activity
// @Description  Returns the authenticated user's activity: stats, latest
// @Description  uploads and latest liked videos.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.UserActivity "Activity"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/activity [get]
func (h *HandlerImpl) GetActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetActivity"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	activity, err := h.userService.GetActivity(ctx, userID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to get activity", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve activity")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success":  true,
		"activity": activity,
	})
}

// GetPublicProfile godoc
// @Summary      Get a profile by username
// @Description  Returns a user's public profile and video stats.
// @Tags         User
// @Produce      json
// @Param        username path string true "Username"
// @Success      200 {object} Profile "Profile"
// @Failure      404 {object} types.Response "User not found"
// @Router       /users/{username} [get]
func (h *HandlerImpl) GetPublicProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetPublicProfile"))

	username := chi.URLParam(r, "username")
	profile, err := h.userService.GetPublicProfile(ctx, username)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get public profile", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve profile")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"profile": profile,
	})
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Description  Applies a partial profile update. Changing the email
// @Description  re-triggers verification.
// @Tags         User
// @Accept       json
// @Produce      json
// @Param        body body types.UpdateProfileParams true "Fields to update"
// @Success      200 {object} types.UserSummary "Updated profile"
// @Failure      400 {object} types.Response "Invalid input or duplicate identity"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/profile [put]
func (h *HandlerImpl) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateProfile"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var params types.UpdateProfileParams
	if err := api.DecodeAndValidate(w, r, &params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(ctx, userID, params)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrUsernameExists):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Username already exists")
		case errors.Is(err, types.ErrEmailExists):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Email already exists")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			l.ErrorContext(ctx, "Failed to update profile", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user.Summary(),
	})
}

// UploadAvatar godoc
// @Summary      Upload an avatar
// @Description  Replaces the authenticated user's avatar image.
// @Tags         User
// @Accept       multipart/form-data
// @Produce      json
// @Param        avatar formData file true "Avatar image"
// @Success      200 {object} types.Response "Avatar updated"
// @Failure      400 {object} types.Response "Invalid image"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/avatar [put]
func (h *HandlerImpl) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UploadAvatar"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxAvatarSize)
	if err := r.ParseMultipartForm(MaxAvatarSize); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Avatar file is required")
		return
	}
	defer file.Close()

	avatarURL, err := h.userService.UploadAvatar(ctx, userID, AvatarUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Unsupported image format")
			return
		}
		l.ErrorContext(ctx, "Failed to upload avatar", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to upload avatar")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"avatar":  avatarURL,
	})
}

// DeleteAccount godoc
// @Summary      Delete own account
// @Description  Removes the account, its videos and their stored files.
// @Tags         User
// @Produce      json
// @Success      200 {object} types.Response "Account deleted"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /users/profile [delete]
func (h *HandlerImpl) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "DeleteAccount"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.userService.DeleteAccount(ctx, userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to delete account", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Account deleted",
	})
}

// ListUsers godoc
// @Summary      List users (admin)
// @Tags         Admin
// @Produce      json
// @Param        limit query int false "Page size (default 20, max 100)"
// @Param        offset query int false "Offset"
// @Success      200 {array} types.UserSummary "Users"
// @Failure      403 {object} types.Response "Forbidden"
// @Security     BearerAuth
// @Router       /admin/users [get]
func (h *HandlerImpl) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ListUsers"))

	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 100)
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	users, err := h.userService.ListUsers(ctx, limit, offset)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list users")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(users),
		"users":   users,
	})
}

// GetUser godoc
// @Summary      Get a user (admin)
// @Tags         Admin
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} types.UserSummary "User"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /admin/users/{userID} [get]
func (h *HandlerImpl) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetUser"))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	user, err := h.userService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to get user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to retrieve user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

// UpdateRole godoc
// @Summary      Change a user's role (admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        userID path string true "User ID"
// @Param        body body types.UpdateRoleRequest true "New role"
// @Success      200 {object} types.Response "Role updated"
// @Failure      400 {object} types.Response "Invalid role"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /admin/users/{userID}/role [put]
func (h *HandlerImpl) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdateRole"))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	var req types.UpdateRoleRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.UpdateRole(ctx, userID, req.Role); err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid role")
		case errors.Is(err, types.ErrNotFound):
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
		default:
			l.ErrorContext(ctx, "Failed to update role", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update role")
		}
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Role updated",
	})
}

// DeleteUser godoc
// @Summary      Delete a user (admin)
// @Tags         Admin
// @Produce      json
// @Param        userID path string true "User ID"
// @Success      200 {object} types.Response "User deleted"
// @Failure      404 {object} types.Response "User not found"
// @Security     BearerAuth
// @Router       /admin/users/{userID} [delete]
func (h *HandlerImpl) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "DeleteUser"))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid user ID format")
		return
	}

	if err := h.userService.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "User not found")
			return
		}
		l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "User deleted",
	})
}
