package types

import (
	"time"

	"github.com/google/uuid"
)

type VideoPrivacy string

const (
	VideoPrivacyPublic  VideoPrivacy = "public"
	VideoPrivacyPrivate VideoPrivacy = "private"
)

// Video is a video post's metadata record. The binary itself lives in the
// object store under ObjectKey.
type Video struct {
	ID           uuid.UUID    `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	VideoURL     string       `json:"videoUrl"`
	ThumbnailURL string       `json:"thumbnailUrl"`
	ObjectKey    string       `json:"-"`
	Privacy      VideoPrivacy `json:"privacy"`
	Views        int64        `json:"views"`
	LikeCount    int          `json:"likes"`
	CreatedAt    time.Time    `json:"created_at"`

	// Uploader projection, populated on feed/detail reads.
	Uploader *UserSummary `json:"user,omitempty"`
}

// UploadVideoParams carries the multipart form fields of an upload.
type UploadVideoParams struct {
	Title       string       `validate:"required,max=100"`
	Description string       `validate:"max=500"`
	Privacy     VideoPrivacy `validate:"omitempty,oneof=public private"`
}

// UpdatePrivacyRequest is the owner-only privacy toggle body.
type UpdatePrivacyRequest struct {
	Privacy VideoPrivacy `json:"privacy" validate:"required,oneof=public private"`
}

// LikeResult reports the state after a like toggle.
type LikeResult struct {
	Likes   int  `json:"likes"`
	IsLiked bool `json:"isLiked"`
}
