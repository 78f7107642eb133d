package projection

import "time"

// ChannelProfile is the public view of a user's channel.
// IsSubscribed reflects the requesting viewer and is false for anonymous
// viewers.
type ChannelProfile struct {
	UserID        string
	Username      string
	FullName      string
	AvatarURL     string
	CoverImageURL string

	SubscriberCount   int64
	SubscribedToCount int64
	IsSubscribed      bool
}

// WatchEntry is one row of a viewer's watch history, newest first.
type WatchEntry struct {
	VideoID      string
	Title        string
	ThumbnailURL string
	Duration     time.Duration

	OwnerID        string
	OwnerUsername  string
	OwnerAvatarURL string

	WatchedAt time.Time
}
