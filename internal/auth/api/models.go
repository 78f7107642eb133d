package api

import (
	"time"

	"vidtube/internal/auth/session"
	"vidtube/internal/identity"
	"vidtube/internal/projection"
)

type registerRequest struct {
	FullName      string `json:"full_name"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Password      string `json:"password"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

type loginRequest struct {
	// Identifier accepts a username or an email; the dedicated fields are
	// kept for clients that distinguish the two.
	Identifier string `json:"identifier,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type updateAccountRequest struct {
	FullName      string `json:"full_name,omitempty"`
	Email         string `json:"email,omitempty"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	CoverImageURL string `json:"cover_image_url,omitempty"`
}

type recordWatchRequest struct {
	VideoID string `json:"video_id"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url,omitempty"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type sessionResponse struct {
	AccessToken      string    `json:"access_token,omitempty"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type loginResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

type refreshResponse struct {
	Session sessionResponse `json:"session"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

type channelResponse struct {
	UserID            string `json:"user_id"`
	Username          string `json:"username"`
	FullName          string `json:"full_name"`
	AvatarURL         string `json:"avatar_url,omitempty"`
	CoverImageURL     string `json:"cover_image_url,omitempty"`
	SubscriberCount   int64  `json:"subscriber_count"`
	SubscribedToCount int64  `json:"subscribed_to_count"`
	IsSubscribed      bool   `json:"is_subscribed"`
}

type historyEntryResponse struct {
	VideoID         string    `json:"video_id"`
	Title           string    `json:"title"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	DurationSeconds int64     `json:"duration_seconds"`
	OwnerID         string    `json:"owner_id"`
	OwnerUsername   string    `json:"owner_username"`
	OwnerAvatarURL  string    `json:"owner_avatar_url,omitempty"`
	WatchedAt       time.Time `json:"watched_at"`
}

type historyResponse struct {
	Entries []historyEntryResponse `json:"entries"`
}

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func toSessionResponse(issued session.Issued) sessionResponse {
	return sessionResponse{
		AccessToken:      issued.AccessCredential,
		AccessExpiresAt:  issued.AccessExpiresAt,
		RefreshToken:     issued.RefreshCredential,
		RefreshExpiresAt: issued.RefreshExpiresAt,
	}
}

func toChannelResponse(p projection.ChannelProfile) channelResponse {
	return channelResponse{
		UserID:            p.UserID,
		Username:          p.Username,
		FullName:          p.FullName,
		AvatarURL:         p.AvatarURL,
		CoverImageURL:     p.CoverImageURL,
		SubscriberCount:   p.SubscriberCount,
		SubscribedToCount: p.SubscribedToCount,
		IsSubscribed:      p.IsSubscribed,
	}
}

func toHistoryResponse(entries []projection.WatchEntry) historyResponse {
	out := historyResponse{Entries: make([]historyEntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, historyEntryResponse{
			VideoID:         e.VideoID,
			Title:           e.Title,
			ThumbnailURL:    e.ThumbnailURL,
			DurationSeconds: int64(e.Duration / time.Second),
			OwnerID:         e.OwnerID,
			OwnerUsername:   e.OwnerUsername,
			OwnerAvatarURL:  e.OwnerAvatarURL,
			WatchedAt:       e.WatchedAt,
		})
	}
	return out
}
