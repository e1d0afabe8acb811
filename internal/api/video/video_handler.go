package video

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
	Upload(w http.ResponseWriter, r *http.Request)
	GetFeed(w http.ResponseWriter, r *http.Request)
	GetMyVideos(w http.ResponseWriter, r *http.Request)
	GetVideo(w http.ResponseWriter, r *http.Request)
	UpdatePrivacy(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)
	ToggleLike(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	videoService VideoService
	logger       *slog.Logger
}

// NewHandlerImpl creates a new video HandlerImpl instance.
func NewHandlerImpl(videoService VideoService, logger *slog.Logger) *HandlerImpl {
	if logger == nil {
		panic("PANIC: Attempting to create HandlerImpl with nil logger!")
	}
	return &HandlerImpl{
		videoService: videoService,
		logger:       logger,
	}
}

func videoIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "videoID"))
}

// viewerID returns the optional authenticated viewer. nil means anonymous.
func viewerID(r *http.Request) *uuid.UUID {
	if id, ok := auth.RequireUserID(r.Context()); ok {
		return &id
	}
	return nil
}

// Upload godoc
// @Summary      Upload a video
// @Description  Accepts a multipart form with the video file and metadata.
// @Tags         Videos
// @Accept       multipart/form-data
// @Produce      json
// @Param        video formData file true "Video file"
// @Param        title formData string true "Title"
// @Param        description formData string false "Description"
// @Param        privacy formData string false "public or private"
// @Success      201 {object} types.Video "Uploaded video"
// @Failure      400 {object} types.Response "Invalid input"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /videos [post]
func (h *HandlerImpl) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Upload"))

	ownerID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Video file is required")
		return
	}
	defer file.Close()

	params := types.UploadVideoParams{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Privacy:     types.VideoPrivacy(r.FormValue("privacy")),
	}
	if err := api.Validate.Struct(params); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video metadata")
		return
	}

	contentType := header.Header.Get("Content-Type")
	video, err := h.videoService.UploadVideo(ctx, ownerID, VideoUpload{
		Params:      params,
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Content:     file,
	})
	if err != nil {
		if errors.Is(err, types.ErrValidation) {
			api.ErrorResponse(w, r, http.StatusBadRequest, "Unsupported video format")
			return
		}
		l.ErrorContext(ctx, "Video upload failed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to upload video")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{
		"success": true,
		"video":   video,
	})
}

// GetFeed godoc
// @Summary      Public video feed
// @Description  Lists public videos, newest first.
// @Tags         Videos
// @Produce      json
// @Param        limit query int false "Page size (default 20, max 50)"
// @Param        offset query int false "Offset"
// @Success      200 {array} types.Video "Feed"
// @Router       /videos [get]
func (h *HandlerImpl) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetFeed"))

	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 50)
	}
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	videos, err := h.videoService.GetFeed(ctx, limit, offset)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch feed", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch videos")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(videos),
		"videos":  videos,
	})
}

// GetMyVideos godoc
// @Summary      Own videos
// @Description  Lists the authenticated user's videos including private ones.
// @Tags         Videos
// @Produce      json
// @Success      200 {array} types.Video "Videos"
// @Failure      401 {object} types.Response "Unauthorized"
// @Security     BearerAuth
// @Router       /videos/my [get]
func (h *HandlerImpl) GetMyVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetMyVideos"))

	ownerID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	videos, err := h.videoService.GetMyVideos(ctx, ownerID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch user's videos", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch videos")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(videos),
		"videos":  videos,
	})
}

// GetVideo godoc
// @Summary      Video detail
// @Description  Returns a video. Private videos are only visible to their
// @Description  owner; other viewers get 404.
// @Tags         Videos
// @Produce      json
// @Param        videoID path string true "Video ID"
// @Success      200 {object} types.Video "Video"
// @Failure      404 {object} types.Response "Not found"
// @Router       /videos/{videoID} [get]
func (h *HandlerImpl) GetVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "GetVideo"))

	videoID, err := videoIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	video, isLiked, err := h.videoService.GetVideo(ctx, videoID, viewerID(r))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Video not found")
			return
		}
		l.ErrorContext(ctx, "Failed to fetch video", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fetch video")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"video":   video,
		"isLiked": isLiked,
	})
}

// UpdatePrivacy godoc
// @Summary      Change video privacy
// @Description  Toggles a video between public and private. Owner only.
// @Tags         Videos
// @Accept       json
// @Produce      json
// @Param        videoID path string true "Video ID"
// @Param        body body types.UpdatePrivacyRequest true "New privacy"
// @Success      200 {object} types.Response "Updated"
// @Failure      404 {object} types.Response "Not found or not owned"
// @Security     BearerAuth
// @Router       /videos/{videoID}/privacy [put]
func (h *HandlerImpl) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "UpdatePrivacy"))

	ownerID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	videoID, err := videoIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	var req types.UpdatePrivacyRequest
	if err := api.DecodeAndValidate(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.videoService.UpdatePrivacy(ctx, videoID, ownerID, req.Privacy); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Video not found")
			return
		}
		l.ErrorContext(ctx, "Failed to update privacy", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update video")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Privacy updated",
	})
}

// Delete godoc
// @Summary      Delete a video
// @Description  Removes the video record and its stored file. Owner only.
// @Tags         Videos
// @Produce      json
// @Param        videoID path string true "Video ID"
// @Success      200 {object} types.Response "Deleted"
// @Failure      404 {object} types.Response "Not found or not owned"
// @Security     BearerAuth
// @Router       /videos/{videoID} [delete]
func (h *HandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "Delete"))

	ownerID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	videoID, err := videoIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	if err := h.videoService.DeleteVideo(ctx, videoID, ownerID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Video not found")
			return
		}
		l.ErrorContext(ctx, "Failed to delete video", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete video")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, types.Response{
		Success: true,
		Message: "Video deleted",
	})
}

// ToggleLike godoc
// @Summary      Like or unlike a video
// @Description  Flips the caller's like and returns the resulting count.
// @Tags         Videos
// @Produce      json
// @Param        videoID path string true "Video ID"
// @Success      200 {object} types.LikeResult "Like state"
// @Failure      404 {object} types.Response "Not found"
// @Security     BearerAuth
// @Router       /videos/{videoID}/like [post]
func (h *HandlerImpl) ToggleLike(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(slog.String("HandlerImpl", "ToggleLike"))

	userID, ok := auth.RequireUserID(ctx)
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	videoID, err := videoIDParam(r)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid video ID")
		return
	}

	result, err := h.videoService.ToggleLike(ctx, videoID, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Video not found")
			return
		}
		l.ErrorContext(ctx, "Failed to toggle like", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to toggle like")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"success": true,
		"likes":   result.Likes,
		"isLiked": result.IsLiked,
	})
}
