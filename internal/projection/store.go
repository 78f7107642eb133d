package projection

import (
	"context"
	"time"
)

// DefaultHistoryLimit caps watch-history reads when the caller passes a
// non-positive limit.
const DefaultHistoryLimit = 50

// Store is the projection read/write boundary.
//
// viewerID may be empty for anonymous channel views; IsSubscribed is then
// always false. RecordWatch upserts, so re-watching a video moves it to the
// top of the history instead of duplicating it.
type Store interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (ChannelProfile, error)
	WatchHistory(ctx context.Context, userID string, limit int) ([]WatchEntry, error)
	RecordWatch(ctx context.Context, userID, videoID string, now time.Time) error
}
