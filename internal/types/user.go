package types

import (
	"time"

	"github.com/google/uuid"
)

// User is the credential-store entity. The password hash and one-time token
// hashes are excluded from every read path by default; repositories expose
// them only through methods that explicitly need them.
type User struct {
	ID              uuid.UUID `json:"id"`
	Username        string    `json:"username"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	Avatar          string    `json:"avatar"`
	Role            string    `json:"role"` // 'user' or 'admin'
	IsEmailVerified bool      `json:"is_email_verified"`
	Bio             string    `json:"bio"`
	Website         string    `json:"website"`
	Location        string    `json:"location"`

	// Account-security state. LockUntil in the past means unlocked even
	// before the column is cleared; lock state is always computed, never
	// stored as a boolean.
	LastLogin     *time.Time `json:"last_login,omitempty"`
	LoginAttempts int        `json:"-"`
	LockUntil     *time.Time `json:"-"`

	// One-time token state. Hash and expiry are set and cleared together;
	// the plaintext token is never persisted.
	ResetPasswordTokenHash     *string    `json:"-"`
	ResetPasswordExpire        *time.Time `json:"-"`
	EmailVerificationTokenHash *string    `json:"-"`
	EmailVerificationExpire    *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Summary is the user shape returned by the auth and profile endpoints.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Avatar:   u.Avatar,
		Role:     u.Role,
		Bio:      u.Bio,
		Website:  u.Website,
		Location: u.Location,
	}
}

// UserSummary is the public projection of a user record.
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Avatar   string    `json:"avatar"`
	Role     string    `json:"role"`
	Bio      string    `json:"bio"`
	Website  string    `json:"website"`
	Location string    `json:"location"`
}

// UpdateProfileParams defines the fields allowed for profile updates.
// Pointers distinguish "not sent" from "set to empty".
type UpdateProfileParams struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=20"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Bio      *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	Website  *string `json:"website,omitempty" validate:"omitempty,max=200"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=100"`
}

// UserActivity is the profile activity view: aggregate stats plus the
// most recent uploads and liked videos.
type UserActivity struct {
	Stats        UserStats `json:"stats"`
	RecentVideos []Video   `json:"recentVideos"`
	LikedVideos  []Video   `json:"likedVideos"`
}

// UserStats aggregates a user's video activity for the profile page.
type UserStats struct {
	TotalVideos   int   `json:"totalVideos"`
	PublicVideos  int   `json:"publicVideos"`
	PrivateVideos int   `json:"privateVideos"`
	TotalViews    int64 `json:"totalViews"`
	TotalLikes    int64 `json:"totalLikes"`
}
