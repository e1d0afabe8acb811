package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/streamhub-io/streamhub/internal/types"
)

var _ VideoRepo = (*PostgresVideoRepo)(nil)

// VideoRepo is the video metadata store. Like state and view counts are
// maintained with atomic SQL so concurrent requests never lose updates.
type VideoRepo interface {
	CreateVideo(ctx context.Context, v *types.Video) error

	// GetVideoByID returns the video with its uploader projection and,
	// when viewerID is non-nil, whether that viewer has liked it.
	GetVideoByID(ctx context.Context, videoID uuid.UUID, viewerID *uuid.UUID) (*types.Video, bool, error)

	// ListPublicVideos returns the public feed, newest first.
	ListPublicVideos(ctx context.Context, limit, offset int) ([]types.Video, error)

	// ListUserVideos returns all of a user's videos regardless of privacy.
	ListUserVideos(ctx context.Context, userID uuid.UUID) ([]types.Video, error)

	// ListLikedVideos returns the videos a user liked, most recent like
	// first.
	ListLikedVideos(ctx context.Context, userID uuid.UUID, limit int) ([]types.Video, error)

	// IncrementViews bumps the view counter in a single UPDATE.
	IncrementViews(ctx context.Context, videoID uuid.UUID) error

	UpdatePrivacy(ctx context.Context, videoID, ownerID uuid.UUID, privacy types.VideoPrivacy) error
	DeleteVideo(ctx context.Context, videoID, ownerID uuid.UUID) (*types.Video, error)

	// ToggleLike flips the viewer's like and returns the resulting count
	// and state.
	ToggleLike(ctx context.Context, videoID, userID uuid.UUID) (*types.LikeResult, error)

	// GetUserStats aggregates a user's videos for the profile page.
	GetUserStats(ctx context.Context, userID uuid.UUID) (*types.UserStats, error)
}

type PostgresVideoRepo struct {
	logger *slog.Logger
	pgpool PgxPool
}

// PgxPool is the subset of pgxpool.Pool the repository uses.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewPostgresVideoRepo(pgpool PgxPool, logger *slog.Logger) *PostgresVideoRepo {
	return &PostgresVideoRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const videoWithUploaderQuery = `
	SELECT v.id, v.user_id, v.title, v.description, v.video_url, v.thumbnail_url,
	       v.object_key, v.privacy, v.views,
	       (SELECT count(*) FROM video_likes vl WHERE vl.video_id = v.id) AS like_count,
	       v.created_at,
	       u.id, u.username, u.avatar
	FROM videos v
	JOIN users u ON u.id = v.user_id`

func scanVideoWithUploader(row pgx.Row) (*types.Video, error) {
	var v types.Video
	var uploader types.UserSummary
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.VideoURL, &v.ThumbnailURL,
		&v.ObjectKey, &v.Privacy, &v.Views, &v.LikeCount, &v.CreatedAt,
		&uploader.ID, &uploader.Username, &uploader.Avatar)
	if err != nil {
		return nil, err
	}
	v.Uploader = &uploader
	return &v, nil
}

func (r *PostgresVideoRepo) CreateVideo(ctx context.Context, v *types.Video) error {
	ctx, span := otel.Tracer("VideoRepo").Start(ctx, "CreateVideo", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "videos"),
	))
	defer span.End()

	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO videos (id, user_id, title, description, video_url, thumbnail_url, object_key, privacy)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		v.ID, v.UserID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL, v.ObjectKey, v.Privacy,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *PostgresVideoRepo) GetVideoByID(ctx context.Context, videoID uuid.UUID, viewerID *uuid.UUID) (*types.Video, bool, error) {
	v, err := scanVideoWithUploader(r.pgpool.QueryRow(ctx,
		videoWithUploaderQuery+` WHERE v.id = $1`, videoID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, types.ErrNotFound
		}
		return nil, false, fmt.Errorf("failed to query video: %w", err)
	}

	isLiked := false
	if viewerID != nil {
		err := r.pgpool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM video_likes WHERE video_id = $1 AND user_id = $2)`,
			videoID, *viewerID).Scan(&isLiked)
		if err != nil {
			return nil, false, fmt.Errorf("failed to query like state: %w", err)
		}
	}
	return v, isLiked, nil
}

func (r *PostgresVideoRepo) ListPublicVideos(ctx context.Context, limit, offset int) ([]types.Video, error) {
	ctx, span := otel.Tracer("VideoRepo").Start(ctx, "ListPublicVideos", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "videos"),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx,
		videoWithUploaderQuery+`
		WHERE v.privacy = 'public'
		ORDER BY v.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query public videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *PostgresVideoRepo) ListUserVideos(ctx context.Context, userID uuid.UUID) ([]types.Video, error) {
	rows, err := r.pgpool.Query(ctx,
		videoWithUploaderQuery+`
		WHERE v.user_id = $1
		ORDER BY v.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func (r *PostgresVideoRepo) ListLikedVideos(ctx context.Context, userID uuid.UUID, limit int) ([]types.Video, error) {
	rows, err := r.pgpool.Query(ctx,
		videoWithUploaderQuery+`
		JOIN video_likes l ON l.video_id = v.id
		WHERE l.user_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query liked videos: %w", err)
	}
	defer rows.Close()

	return collectVideos(rows)
}

func collectVideos(rows pgx.Rows) ([]types.Video, error) {
	videos := []types.Video{}
	for rows.Next() {
		v, err := scanVideoWithUploader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video row: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate video rows: %w", err)
	}
	return videos, nil
}

// IncrementViews is a single UPDATE so concurrent plays never lose counts
// to a read-modify-write race.
func (r *PostgresVideoRepo) IncrementViews(ctx context.Context, videoID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		"UPDATE videos SET views = views + 1 WHERE id = $1", videoID)
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

func (r *PostgresVideoRepo) UpdatePrivacy(ctx context.Context, videoID, ownerID uuid.UUID, privacy types.VideoPrivacy) error {
	tag, err := r.pgpool.Exec(ctx, `
		UPDATE videos SET privacy = $3 WHERE id = $1 AND user_id = $2`,
		videoID, ownerID, privacy)
	if err != nil {
		return fmt.Errorf("failed to update privacy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteVideo removes the metadata row, guarded on ownership, and returns
// the deleted record so the caller can clean up the stored object.
func (r *PostgresVideoRepo) DeleteVideo(ctx context.Context, videoID, ownerID uuid.UUID) (*types.Video, error) {
	ctx, span := otel.Tracer("VideoRepo").Start(ctx, "DeleteVideo", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "videos"),
	))
	defer span.End()

	var v types.Video
	err := r.pgpool.QueryRow(ctx, `
		DELETE FROM videos WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, object_key`,
		videoID, ownerID).Scan(&v.ID, &v.UserID, &v.Title, &v.ObjectKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to delete video: %w", err)
	}
	return &v, nil
}

// ToggleLike inserts the like row, falling back to delete when it already
// exists. ON CONFLICT DO NOTHING keeps the insert race-free.
func (r *PostgresVideoRepo) ToggleLike(ctx context.Context, videoID, userID uuid.UUID) (*types.LikeResult, error) {
	tag, err := r.pgpool.Exec(ctx, `
		INSERT INTO video_likes (video_id, user_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, videoID, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23503: the video row is gone.
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to insert like: %w", err)
	}

	isLiked := tag.RowsAffected() == 1
	if !isLiked {
		if _, err := r.pgpool.Exec(ctx, `
			DELETE FROM video_likes WHERE video_id = $1 AND user_id = $2`,
			videoID, userID); err != nil {
			return nil, fmt.Errorf("failed to delete like: %w", err)
		}
	}

	var count int
	if err := r.pgpool.QueryRow(ctx,
		"SELECT count(*) FROM video_likes WHERE video_id = $1", videoID).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}
	return &types.LikeResult{Likes: count, IsLiked: isLiked}, nil
}

func (r *PostgresVideoRepo) GetUserStats(ctx context.Context, userID uuid.UUID) (*types.UserStats, error) {
	var stats types.UserStats
	err := r.pgpool.QueryRow(ctx, `
		SELECT count(*),
		       count(*) FILTER (WHERE privacy = 'public'),
		       count(*) FILTER (WHERE privacy = 'private'),
		       COALESCE(sum(views), 0),
		       COALESCE((SELECT count(*) FROM video_likes vl
		                 JOIN videos vv ON vv.id = vl.video_id
		                 WHERE vv.user_id = $1), 0)
		FROM videos WHERE user_id = $1`, userID).
		Scan(&stats.TotalVideos, &stats.PublicVideos, &stats.PrivateVideos, &stats.TotalViews, &stats.TotalLikes)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate user stats: %w", err)
	}
	return &stats, nil
}
