package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/streamhub-io/streamhub/app/media"
	"github.com/streamhub-io/streamhub/internal/types"
)

var _ UserService = (*UserServiceImpl)(nil)

// MaxAvatarSize caps avatar uploads at 5MB.
const MaxAvatarSize = 5 << 20

// VideoCatalog is the slice of the video store the profile service needs:
// activity stats for the profile page and object keys for account cleanup.
// The video repository satisfies it.
type VideoCatalog interface {
	GetUserStats(ctx context.Context, userID uuid.UUID) (*types.UserStats, error)
	ListUserVideos(ctx context.Context, userID uuid.UUID) ([]types.Video, error)
	ListLikedVideos(ctx context.Context, userID uuid.UUID, limit int) ([]types.Video, error)
}

// activityLimit caps the recent-uploads and recent-likes lists on the
// activity view.
const activityLimit = 10

// VerificationDispatcher re-sends the email verification link. The auth
// service satisfies it; used after an email change.
type VerificationDispatcher interface {
	ResendVerification(ctx context.Context, email string) error
}

// AvatarUpload bundles the content stream of a new avatar image.
type AvatarUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// Profile is a user plus their video activity stats.
type Profile struct {
	User  types.UserSummary `json:"user"`
	Stats types.UserStats   `json:"stats"`
}

// UserService implements profile management and the admin operations.
type UserService interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error)
	GetPublicProfile(ctx context.Context, username string) (*Profile, error)
	GetActivity(ctx context.Context, userID uuid.UUID) (*types.UserActivity, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error)
	UploadAvatar(ctx context.Context, userID uuid.UUID, upload AvatarUpload) (string, error)
	DeleteAccount(ctx context.Context, userID uuid.UUID) error

	ListUsers(ctx context.Context, limit, offset int) ([]types.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateRole(ctx context.Context, userID uuid.UUID, role string) error
	DeleteUser(ctx context.Context, userID uuid.UUID) error
}

type UserServiceImpl struct {
	logger   *slog.Logger
	repo     UserRepo
	videos   VideoCatalog
	store    media.ObjectStore
	verifier VerificationDispatcher
}

func NewUserService(repo UserRepo, videos VideoCatalog, store media.ObjectStore, verifier VerificationDispatcher, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger:   logger,
		repo:     repo,
		videos:   videos,
		store:    store,
		verifier: verifier,
	}
}

func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildProfile(ctx, user)
}

// GetPublicProfile resolves a profile by username. The email is stripped
// since the viewer is not the owner.
func (s *UserServiceImpl) GetPublicProfile(ctx context.Context, username string) (*Profile, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	profile, err := s.buildProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	profile.User.Email = ""
	return profile, nil
}

func (s *UserServiceImpl) buildProfile(ctx context.Context, user *types.User) (*Profile, error) {
	stats, err := s.videos.GetUserStats(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile stats: %w", err)
	}
	return &Profile{User: user.Summary(), Stats: *stats}, nil
}

// GetActivity assembles the profile activity view: aggregate stats plus
// the user's latest uploads and latest liked videos.
func (s *UserServiceImpl) GetActivity(ctx context.Context, userID uuid.UUID) (*types.UserActivity, error) {
	stats, err := s.videos.GetUserStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity stats: %w", err)
	}

	recent, err := s.videos.ListUserVideos(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent uploads: %w", err)
	}
	if len(recent) > activityLimit {
		recent = recent[:activityLimit]
	}

	liked, err := s.videos.ListLikedVideos(ctx, userID, activityLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load liked videos: %w", err)
	}

	return &types.UserActivity{
		Stats:        *stats,
		RecentVideos: recent,
		LikedVideos:  liked,
	}, nil
}

// UpdateProfile applies a partial profile update. Changing the email
// un-verifies the account and dispatches a fresh verification link.
func (s *UserServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	l := s.logger.With(slog.String("method", "UpdateProfile"), slog.String("user_id", userID.String()))

	emailChanged := false
	if params.Email != nil {
		current, err := s.repo.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		emailChanged = current.Email != *params.Email
	}

	user, err := s.repo.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	if emailChanged {
		if err := s.repo.ClearEmailVerification(ctx, userID); err != nil {
			l.ErrorContext(ctx, "Failed to clear verification after email change", slog.Any("error", err))
		} else {
			user.IsEmailVerified = false
			if err := s.verifier.ResendVerification(ctx, user.Email); err != nil {
				l.ErrorContext(ctx, "Failed to dispatch verification after email change", slog.Any("error", err))
			}
		}
	}

	l.InfoContext(ctx, "Profile updated")
	return user, nil
}

// UploadAvatar stores the image, points the profile at it and removes the
// replaced object. Object keys are derived from the user ID, so a stale
// object only exists when the file extension changed.
func (s *UserServiceImpl) UploadAvatar(ctx context.Context, userID uuid.UUID, upload AvatarUpload) (string, error) {
	l := s.logger.With(slog.String("method", "UploadAvatar"), slog.String("user_id", userID.String()))

	if !media.IsImageContentType(upload.ContentType) {
		return "", fmt.Errorf("%w: unsupported content type %q", types.ErrValidation, upload.ContentType)
	}

	current, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	objectKey := fmt.Sprintf("%s%s", userID, filepath.Ext(upload.Filename))
	avatarURL, err := s.store.UploadAvatar(ctx, objectKey, upload.Content, upload.Size, upload.ContentType)
	if err != nil {
		l.ErrorContext(ctx, "Failed to upload avatar object", slog.Any("error", err))
		return "", fmt.Errorf("failed to store avatar: %w", err)
	}

	if err := s.repo.UpdateAvatar(ctx, userID, avatarURL); err != nil {
		return "", err
	}

	if old := media.ObjectKeyFromURL(current.Avatar); old != "" && old != objectKey {
		if err := s.store.DeleteAvatar(ctx, old); err != nil {
			l.WarnContext(ctx, "Failed to delete replaced avatar object",
				slog.String("object_key", old), slog.Any("error", err))
		}
	}

	l.InfoContext(ctx, "Avatar updated")
	return avatarURL, nil
}

// DeleteAccount removes the user's stored video and avatar objects and then
// the account row; videos and likes cascade with it.
func (s *UserServiceImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	l := s.logger.With(slog.String("method", "DeleteAccount"), slog.String("user_id", userID.String()))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	videos, err := s.videos.ListUserVideos(ctx, userID)
	if err != nil {
		return err
	}
	for _, v := range videos {
		if v.ObjectKey == "" {
			continue
		}
		if err := s.store.DeleteVideo(ctx, v.ObjectKey); err != nil {
			// Orphaned objects are swept later; the account delete proceeds.
			l.WarnContext(ctx, "Failed to delete video object",
				slog.String("object_key", v.ObjectKey), slog.Any("error", err))
		}
	}

	if key := media.ObjectKeyFromURL(user.Avatar); key != "" {
		if err := s.store.DeleteAvatar(ctx, key); err != nil {
			l.WarnContext(ctx, "Failed to delete avatar object",
				slog.String("object_key", key), slog.Any("error", err))
		}
	}

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return err
	}

	l.InfoContext(ctx, "Account deleted")
	return nil
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, limit, offset int) ([]types.User, error) {
	return s.repo.ListUsers(ctx, limit, offset)
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *UserServiceImpl) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	if role != types.RoleUser && role != types.RoleAdmin {
		return fmt.Errorf("%w: unknown role %q", types.ErrValidation, role)
	}
	return s.repo.UpdateRole(ctx, userID, role)
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	err := s.DeleteAccount(ctx, userID)
	if errors.Is(err, types.ErrNotFound) {
		return types.ErrNotFound
	}
	return err
}
