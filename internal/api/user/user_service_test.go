package user

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/streamhub-io/streamhub/internal/types"
)

// MockUserRepo is a mock implementation of the UserRepo interface
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) GetUserByUsername(ctx context.Context, username string) (*types.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, params types.UpdateProfileParams) (*types.User, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.User), args.Error(1)
}

func (m *MockUserRepo) UpdateAvatar(ctx context.Context, userID uuid.UUID, avatarURL string) error {
	args := m.Called(ctx, userID, avatarURL)
	return args.Error(0)
}

func (m *MockUserRepo) ClearEmailVerification(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepo) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]types.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.User), args.Error(1)
}

func (m *MockUserRepo) UpdateRole(ctx context.Context, userID uuid.UUID, role string) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

// MockVideoCatalog is a mock implementation of the VideoCatalog interface
type MockVideoCatalog struct {
	mock.Mock
}

func (m *MockVideoCatalog) GetUserStats(ctx context.Context, userID uuid.UUID) (*types.UserStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.UserStats), args.Error(1)
}

func (m *MockVideoCatalog) ListUserVideos(ctx context.Context, userID uuid.UUID) ([]types.Video, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Video), args.Error(1)
}

func (m *MockVideoCatalog) ListLikedVideos(ctx context.Context, userID uuid.UUID, limit int) ([]types.Video, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Video), args.Error(1)
}

// MockObjectStore is a mock implementation of the media.ObjectStore interface
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) UploadVideo(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) UploadAvatar(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (string, error) {
	args := m.Called(ctx, objectName, reader, size, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStore) DeleteVideo(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

func (m *MockObjectStore) DeleteAvatar(ctx context.Context, objectName string) error {
	args := m.Called(ctx, objectName)
	return args.Error(0)
}

// MockVerifier is a mock implementation of the VerificationDispatcher interface
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) ResendVerification(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

type serviceMocks struct {
	repo     *MockUserRepo
	videos   *MockVideoCatalog
	store    *MockObjectStore
	verifier *MockVerifier
}

func newTestService() (*UserServiceImpl, serviceMocks) {
	m := serviceMocks{
		repo:     new(MockUserRepo),
		videos:   new(MockVideoCatalog),
		store:    new(MockObjectStore),
		verifier: new(MockVerifier),
	}
	return NewUserService(m.repo, m.videos, m.store, m.verifier, slog.Default()), m
}

func strPtr(s string) *string { return &s }

func TestGetProfile(t *testing.T) {
	t.Run("IncludesStats", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Username: "testuser", Email: "test@example.com"}, nil).Once()
		m.videos.On("GetUserStats", ctx, userID).
			Return(&types.UserStats{TotalVideos: 3, PublicVideos: 2, PrivateVideos: 1, TotalViews: 42}, nil).Once()

		profile, err := service.GetProfile(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, "testuser", profile.User.Username)
		assert.Equal(t, 3, profile.Stats.TotalVideos)
		assert.Equal(t, int64(42), profile.Stats.TotalViews)
		m.repo.AssertExpectations(t)
		m.videos.AssertExpectations(t)
	})

	t.Run("PublicProfileStripsEmail", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.repo.On("GetUserByUsername", ctx, "testuser").
			Return(&types.User{ID: userID, Username: "testuser", Email: "test@example.com"}, nil).Once()
		m.videos.On("GetUserStats", ctx, userID).Return(&types.UserStats{}, nil).Once()

		profile, err := service.GetPublicProfile(ctx, "testuser")

		require.NoError(t, err)
		assert.Empty(t, profile.User.Email)
		m.repo.AssertExpectations(t)
	})
}

func TestGetActivity(t *testing.T) {
	t.Run("TrimsRecentUploads", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		uploads := make([]types.Video, 12)
		for i := range uploads {
			uploads[i] = types.Video{ID: uuid.New(), UserID: userID}
		}
		liked := []types.Video{{ID: uuid.New()}}

		m.videos.On("GetUserStats", ctx, userID).
			Return(&types.UserStats{TotalVideos: 12}, nil).Once()
		m.videos.On("ListUserVideos", ctx, userID).Return(uploads, nil).Once()
		m.videos.On("ListLikedVideos", ctx, userID, 10).Return(liked, nil).Once()

		activity, err := service.GetActivity(ctx, userID)

		require.NoError(t, err)
		assert.Len(t, activity.RecentVideos, 10)
		assert.Len(t, activity.LikedVideos, 1)
		assert.Equal(t, 12, activity.Stats.TotalVideos)
		m.videos.AssertExpectations(t)
	})

	t.Run("StatsFailureSurfaces", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.videos.On("GetUserStats", ctx, userID).
			Return(nil, errors.New("db down")).Once()

		_, err := service.GetActivity(ctx, userID)

		require.Error(t, err)
		m.videos.AssertNotCalled(t, "ListUserVideos", mock.Anything, mock.Anything)
	})
}

func TestUpdateProfile(t *testing.T) {
	t.Run("BioOnlyDoesNotTouchVerification", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		params := types.UpdateProfileParams{Bio: strPtr("new bio")}

		m.repo.On("UpdateProfile", ctx, userID, params).
			Return(&types.User{ID: userID, Bio: "new bio", IsEmailVerified: true}, nil).Once()

		user, err := service.UpdateProfile(ctx, userID, params)

		require.NoError(t, err)
		assert.True(t, user.IsEmailVerified)
		m.repo.AssertNotCalled(t, "ClearEmailVerification", mock.Anything, mock.Anything)
		m.repo.AssertExpectations(t)
	})

	t.Run("EmailChangeClearsVerificationAndResends", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		params := types.UpdateProfileParams{Email: strPtr("fresh@example.com")}

		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Email: "old@example.com", IsEmailVerified: true}, nil).Once()
		m.repo.On("UpdateProfile", ctx, userID, params).
			Return(&types.User{ID: userID, Email: "fresh@example.com", IsEmailVerified: true}, nil).Once()
		m.repo.On("ClearEmailVerification", ctx, userID).Return(nil).Once()
		m.verifier.On("ResendVerification", ctx, "fresh@example.com").Return(nil).Once()

		user, err := service.UpdateProfile(ctx, userID, params)

		require.NoError(t, err)
		assert.False(t, user.IsEmailVerified)
		m.repo.AssertExpectations(t)
		m.verifier.AssertExpectations(t)
	})

	t.Run("SameEmailIsNotAChange", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		params := types.UpdateProfileParams{Email: strPtr("same@example.com")}

		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Email: "same@example.com", IsEmailVerified: true}, nil).Once()
		m.repo.On("UpdateProfile", ctx, userID, params).
			Return(&types.User{ID: userID, Email: "same@example.com", IsEmailVerified: true}, nil).Once()

		user, err := service.UpdateProfile(ctx, userID, params)

		require.NoError(t, err)
		assert.True(t, user.IsEmailVerified)
		m.repo.AssertNotCalled(t, "ClearEmailVerification", mock.Anything, mock.Anything)
		m.repo.AssertExpectations(t)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		params := types.UpdateProfileParams{Username: strPtr("taken")}

		m.repo.On("UpdateProfile", ctx, userID, params).Return(nil, types.ErrUsernameExists).Once()

		_, err := service.UpdateProfile(ctx, userID, params)

		assert.ErrorIs(t, err, types.ErrUsernameExists)
		m.repo.AssertExpectations(t)
	})
}

func TestUploadAvatar(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.repo.On("GetUserByID", ctx, userID).Return(&types.User{ID: userID}, nil).Once()
		m.store.On("UploadAvatar", ctx, mock.AnythingOfType("string"), mock.Anything, int64(512), "image/png").
			Return("http://media.local/avatars/key.png", nil).Once()
		m.repo.On("UpdateAvatar", ctx, userID, "http://media.local/avatars/key.png").Return(nil).Once()

		url, err := service.UploadAvatar(ctx, userID, AvatarUpload{
			Filename:    "me.png",
			ContentType: "image/png",
			Size:        512,
			Content:     bytes.NewReader(make([]byte, 512)),
		})

		require.NoError(t, err)
		assert.Equal(t, "http://media.local/avatars/key.png", url)
		// No prior avatar, nothing to sweep.
		m.store.AssertNotCalled(t, "DeleteAvatar", mock.Anything, mock.Anything)
		m.repo.AssertExpectations(t)
		m.store.AssertExpectations(t)
	})

	t.Run("ReplacementDeletesOldObject", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		oldKey := userID.String() + ".jpg"
		newKey := userID.String() + ".png"

		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Avatar: "http://media.local/avatars/" + oldKey}, nil).Once()
		m.store.On("UploadAvatar", ctx, newKey, mock.Anything, int64(512), "image/png").
			Return("http://media.local/avatars/"+newKey, nil).Once()
		m.repo.On("UpdateAvatar", ctx, userID, "http://media.local/avatars/"+newKey).Return(nil).Once()
		m.store.On("DeleteAvatar", ctx, oldKey).Return(nil).Once()

		_, err := service.UploadAvatar(ctx, userID, AvatarUpload{
			Filename:    "me.png",
			ContentType: "image/png",
			Size:        512,
			Content:     bytes.NewReader(make([]byte, 512)),
		})

		require.NoError(t, err)
		m.repo.AssertExpectations(t)
		m.store.AssertExpectations(t)
	})

	t.Run("SameKeyIsNotDeleted", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()
		key := userID.String() + ".png"

		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Avatar: "http://media.local/avatars/" + key}, nil).Once()
		m.store.On("UploadAvatar", ctx, key, mock.Anything, int64(512), "image/png").
			Return("http://media.local/avatars/"+key, nil).Once()
		m.repo.On("UpdateAvatar", ctx, userID, "http://media.local/avatars/"+key).Return(nil).Once()

		_, err := service.UploadAvatar(ctx, userID, AvatarUpload{
			Filename:    "me.png",
			ContentType: "image/png",
			Size:        512,
			Content:     bytes.NewReader(make([]byte, 512)),
		})

		require.NoError(t, err)
		// The overwrite already replaced the object in place.
		m.store.AssertNotCalled(t, "DeleteAvatar", mock.Anything, mock.Anything)
		m.store.AssertExpectations(t)
	})

	t.Run("RejectsNonImage", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()

		_, err := service.UploadAvatar(ctx, uuid.New(), AvatarUpload{
			Filename:    "movie.mp4",
			ContentType: "video/mp4",
			Size:        512,
			Content:     bytes.NewReader(make([]byte, 512)),
		})

		assert.ErrorIs(t, err, types.ErrValidation)
		m.store.AssertNotCalled(t, "UploadAvatar", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Run("SweepsMediaObjects", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		videos := []types.Video{
			{ID: uuid.New(), ObjectKey: "u/a.mp4"},
			{ID: uuid.New(), ObjectKey: "u/b.mp4"},
		}
		m.repo.On("GetUserByID", ctx, userID).
			Return(&types.User{ID: userID, Avatar: "http://media.local/avatars/" + userID.String() + ".png"}, nil).Once()
		m.videos.On("ListUserVideos", ctx, userID).Return(videos, nil).Once()
		m.store.On("DeleteVideo", ctx, "u/a.mp4").Return(nil).Once()
		m.store.On("DeleteVideo", ctx, "u/b.mp4").Return(nil).Once()
		m.store.On("DeleteAvatar", ctx, userID.String()+".png").Return(nil).Once()
		m.repo.On("DeleteUser", ctx, userID).Return(nil).Once()

		err := service.DeleteAccount(ctx, userID)

		require.NoError(t, err)
		m.repo.AssertExpectations(t)
		m.videos.AssertExpectations(t)
		m.store.AssertExpectations(t)
	})

	t.Run("NoAvatarNothingToSweep", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.repo.On("GetUserByID", ctx, userID).Return(&types.User{ID: userID}, nil).Once()
		m.videos.On("ListUserVideos", ctx, userID).Return([]types.Video{}, nil).Once()
		m.repo.On("DeleteUser", ctx, userID).Return(nil).Once()

		err := service.DeleteAccount(ctx, userID)

		require.NoError(t, err)
		m.store.AssertNotCalled(t, "DeleteAvatar", mock.Anything, mock.Anything)
		m.repo.AssertExpectations(t)
	})
}

func TestUpdateRole(t *testing.T) {
	t.Run("RejectsUnknownRole", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()

		err := service.UpdateRole(ctx, uuid.New(), "superadmin")

		assert.ErrorIs(t, err, types.ErrValidation)
		m.repo.AssertNotCalled(t, "UpdateRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Promotes", func(t *testing.T) {
		ctx := context.Background()
		service, m := newTestService()
		userID := uuid.New()

		m.repo.On("UpdateRole", ctx, userID, types.RoleAdmin).Return(nil).Once()

		err := service.UpdateRole(ctx, userID, types.RoleAdmin)

		require.NoError(t, err)
		m.repo.AssertExpectations(t)
	})
}
