package projection

import (
	"context"
	"sort"
	"sync"
	"time"

	"vidtube/internal/identity"
)

// IdentityReader is the slice of the identity store the in-memory projection
// needs to resolve channels.
type IdentityReader interface {
	GetByIdentifier(ctx context.Context, identifier string) (identity.UserAuth, error)
	GetByID(ctx context.Context, id string) (identity.User, error)
}

// Video is the catalog entry the in-memory store serves history rows from.
type Video struct {
	ID           string
	OwnerID      string
	Title        string
	ThumbnailURL string
	Duration     time.Duration
}

// MemoryStore is an in-memory projection store for tests and db-less
// development mode. Channel identities come from the shared identity store;
// videos, subscriptions and watches live here.
type MemoryStore struct {
	ids IdentityReader

	mu      sync.Mutex
	videos  map[string]Video
	subs    map[string]map[string]bool // channel id -> subscriber id -> true
	watches map[string]map[string]time.Time
}

// NewMemoryStore creates an empty projection store backed by ids.
func NewMemoryStore(ids IdentityReader) *MemoryStore {
	return &MemoryStore{
		ids:     ids,
		videos:  make(map[string]Video),
		subs:    make(map[string]map[string]bool),
		watches: make(map[string]map[string]time.Time),
	}
}

// AddVideo registers a video in the catalog.
func (s *MemoryStore) AddVideo(v Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[v.ID] = v
}

// Subscribe records subscriberID following channelID. Idempotent.
func (s *MemoryStore) Subscribe(channelID, subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs[channelID] == nil {
		s.subs[channelID] = make(map[string]bool)
	}
	s.subs[channelID][subscriberID] = true
}

// Unsubscribe removes a subscription. Idempotent.
func (s *MemoryStore) Unsubscribe(channelID, subscriberID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs[channelID], subscriberID)
}

func (s *MemoryStore) ChannelProfile(ctx context.Context, username, viewerID string) (ChannelProfile, error) {
	ua, err := s.ids.GetByIdentifier(ctx, username)
	if err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			return ChannelProfile{}, ErrChannelNotFound
		}
		return ChannelProfile{}, err
	}
	u := ua.User

	s.mu.Lock()
	defer s.mu.Unlock()

	var subscribedTo int64
	for _, followers := range s.subs {
		if followers[u.ID] {
			subscribedTo++
		}
	}

	return ChannelProfile{
		UserID:            u.ID,
		Username:          u.Username,
		FullName:          u.FullName,
		AvatarURL:         u.AvatarURL,
		CoverImageURL:     u.CoverImageURL,
		SubscriberCount:   int64(len(s.subs[u.ID])),
		SubscribedToCount: subscribedTo,
		IsSubscribed:      viewerID != "" && s.subs[u.ID][viewerID],
	}, nil
}

func (s *MemoryStore) WatchHistory(ctx context.Context, userID string, limit int) ([]WatchEntry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.Lock()
	type watched struct {
		v  Video
		at time.Time
	}
	var rows []watched
	for videoID, at := range s.watches[userID] {
		if v, ok := s.videos[videoID]; ok {
			rows = append(rows, watched{v: v, at: at})
		}
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].at.After(rows[j].at) })
	if len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]WatchEntry, 0, len(rows))
	for _, r := range rows {
		owner, err := s.ids.GetByID(ctx, r.v.OwnerID)
		if err != nil && !identity.IsNotFound(err) {
			return nil, err
		}
		out = append(out, WatchEntry{
			VideoID:        r.v.ID,
			Title:          r.v.Title,
			ThumbnailURL:   r.v.ThumbnailURL,
			Duration:       r.v.Duration,
			OwnerID:        r.v.OwnerID,
			OwnerUsername:  owner.Username,
			OwnerAvatarURL: owner.AvatarURL,
			WatchedAt:      r.at,
		})
	}
	return out, nil
}

func (s *MemoryStore) RecordWatch(ctx context.Context, userID, videoID string, now time.Time) error {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.videos[videoID]; !ok {
		return ErrVideoNotFound
	}
	if s.watches[userID] == nil {
		s.watches[userID] = make(map[string]time.Time)
	}
	s.watches[userID][videoID] = now
	return nil
}
