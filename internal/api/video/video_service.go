package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/streamhub-io/streamhub/app/media"
	"github.com/streamhub-io/streamhub/app/observability/metrics"
	"github.com/streamhub-io/streamhub/internal/types"
)

var _ VideoService = (*VideoServiceImpl)(nil)

const (
	feedCacheKey = "feed:public"
	feedCacheTTL = 30 * time.Second

	// MaxUploadSize caps a single video upload at 100MB.
	MaxUploadSize = 100 << 20
)

// VideoUpload bundles the metadata and content stream of a new upload.
type VideoUpload struct {
	Params      types.UploadVideoParams
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// VideoService implements the video catalog: uploads, the public feed,
// privacy-gated playback and like toggling.
type VideoService interface {
	UploadVideo(ctx context.Context, ownerID uuid.UUID, upload VideoUpload) (*types.Video, error)
	GetFeed(ctx context.Context, limit, offset int) ([]types.Video, error)
	GetMyVideos(ctx context.Context, ownerID uuid.UUID) ([]types.Video, error)
	GetVideo(ctx context.Context, videoID uuid.UUID, viewerID *uuid.UUID) (*types.Video, bool, error)
	UpdatePrivacy(ctx context.Context, videoID, ownerID uuid.UUID, privacy types.VideoPrivacy) error
	DeleteVideo(ctx context.Context, videoID, ownerID uuid.UUID) error
	ToggleLike(ctx context.Context, videoID, userID uuid.UUID) (*types.LikeResult, error)
}

type VideoServiceImpl struct {
	logger    *slog.Logger
	repo      VideoRepo
	store     media.ObjectStore
	feedCache *cache.Cache
	metrics   *metrics.AppMetrics // may be nil in tests
}

func NewVideoService(repo VideoRepo, store media.ObjectStore, m *metrics.AppMetrics, logger *slog.Logger) *VideoServiceImpl {
	return &VideoServiceImpl{
		logger:    logger,
		repo:      repo,
		store:     store,
		feedCache: cache.New(feedCacheTTL, 2*feedCacheTTL),
		metrics:   m,
	}
}

// UploadVideo streams the file to object storage and records the metadata
// row. If the insert fails the stored object is removed again.
func (s *VideoServiceImpl) UploadVideo(ctx context.Context, ownerID uuid.UUID, upload VideoUpload) (*types.Video, error) {
	l := s.logger.With(slog.String("method", "UploadVideo"), slog.String("user_id", ownerID.String()))

	if !media.IsVideoContentType(upload.ContentType) {
		return nil, fmt.Errorf("%w: unsupported content type %q", types.ErrValidation, upload.ContentType)
	}

	videoID := uuid.New()
	objectKey := fmt.Sprintf("%s/%s%s", ownerID, videoID, filepath.Ext(upload.Filename))

	videoURL, err := s.store.UploadVideo(ctx, objectKey, upload.Content, upload.Size, upload.ContentType)
	if err != nil {
		l.ErrorContext(ctx, "Failed to upload video object", slog.Any("error", err))
		return nil, fmt.Errorf("failed to store video: %w", err)
	}

	privacy := upload.Params.Privacy
	if privacy == "" {
		privacy = types.VideoPrivacyPublic
	}

	v := &types.Video{
		ID:          videoID,
		UserID:      ownerID,
		Title:       upload.Params.Title,
		Description: upload.Params.Description,
		VideoURL:    videoURL,
		ObjectKey:   objectKey,
		Privacy:     privacy,
	}
	if err := s.repo.CreateVideo(ctx, v); err != nil {
		l.ErrorContext(ctx, "Failed to record video, removing stored object", slog.Any("error", err))
		if delErr := s.store.DeleteVideo(ctx, objectKey); delErr != nil {
			l.ErrorContext(ctx, "Failed to remove orphaned object", slog.Any("error", delErr))
		}
		return nil, err
	}

	s.feedCache.Delete(feedCacheKey)
	if s.metrics != nil {
		s.metrics.VideoUploadsTotal.Add(ctx, 1)
		s.metrics.VideoUploadBytesTotal.Add(ctx, upload.Size)
	}
	l.InfoContext(ctx, "Video uploaded", slog.String("video_id", videoID.String()))
	return v, nil
}

// GetFeed returns the public feed. The first page is cached briefly since
// it is by far the hottest read.
func (s *VideoServiceImpl) GetFeed(ctx context.Context, limit, offset int) ([]types.Video, error) {
	if offset == 0 {
		if cached, found := s.feedCache.Get(feedCacheKey); found {
			if videos, ok := cached.([]types.Video); ok && len(videos) >= limit {
				return videos[:limit], nil
			}
		}
	}

	videos, err := s.repo.ListPublicVideos(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if offset == 0 {
		s.feedCache.Set(feedCacheKey, videos, cache.DefaultExpiration)
	}
	return videos, nil
}

func (s *VideoServiceImpl) GetMyVideos(ctx context.Context, ownerID uuid.UUID) ([]types.Video, error) {
	return s.repo.ListUserVideos(ctx, ownerID)
}

// GetVideo fetches a video, enforcing privacy: private videos are visible
// only to their owner, and 404 rather than 403 hides their existence.
// Views from anyone but the owner bump the counter.
func (s *VideoServiceImpl) GetVideo(ctx context.Context, videoID uuid.UUID, viewerID *uuid.UUID) (*types.Video, bool, error) {
	v, isLiked, err := s.repo.GetVideoByID(ctx, videoID, viewerID)
	if err != nil {
		return nil, false, err
	}

	isOwner := viewerID != nil && *viewerID == v.UserID
	if v.Privacy == types.VideoPrivacyPrivate && !isOwner {
		return nil, false, types.ErrNotFound
	}

	if !isOwner {
		if err := s.repo.IncrementViews(ctx, videoID); err != nil {
			s.logger.WarnContext(ctx, "Failed to increment views", slog.Any("error", err))
		} else {
			v.Views++
		}
	}
	return v, isLiked, nil
}

func (s *VideoServiceImpl) UpdatePrivacy(ctx context.Context, videoID, ownerID uuid.UUID, privacy types.VideoPrivacy) error {
	if err := s.repo.UpdatePrivacy(ctx, videoID, ownerID, privacy); err != nil {
		return err
	}
	s.feedCache.Delete(feedCacheKey)
	return nil
}

// DeleteVideo removes the metadata row and then the stored object. A
// failed object delete is logged but not surfaced; the record is gone and
// the orphan can be swept later.
func (s *VideoServiceImpl) DeleteVideo(ctx context.Context, videoID, ownerID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "DeleteVideo"), slog.String("video_id", videoID.String()))

	deleted, err := s.repo.DeleteVideo(ctx, videoID, ownerID)
	if err != nil {
		return err
	}

	if deleted.ObjectKey != "" {
		if err := s.store.DeleteVideo(ctx, deleted.ObjectKey); err != nil {
			l.ErrorContext(ctx, "Failed to delete video object", slog.Any("error", err))
		}
	}

	s.feedCache.Delete(feedCacheKey)
	l.InfoContext(ctx, "Video deleted")
	return nil
}

func (s *VideoServiceImpl) ToggleLike(ctx context.Context, videoID, userID uuid.UUID) (*types.LikeResult, error) {
	result, err := s.repo.ToggleLike(ctx, videoID, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return result, nil
}
