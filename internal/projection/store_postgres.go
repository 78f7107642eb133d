package projection

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"vidtube/internal/identity"
)

// PostgresStore serves projections over PostgreSQL.
//
// Schema (managed outside this repo, shared with the identity store):
//
//	<schema>.subscriptions (
//	    subscriber_id text not null references <schema>.users(id),
//	    channel_id    text not null references <schema>.users(id),
//	    created_at    timestamptz not null,
//	    primary key (subscriber_id, channel_id)
//	)
//
//	<schema>.videos (
//	    id               text primary key,
//	    owner_id         text not null references <schema>.users(id),
//	    title            text not null,
//	    thumbnail_url    text not null default '',
//	    duration_seconds bigint not null default 0
//	)
//
//	<schema>.watch_history (
//	    user_id    text not null references <schema>.users(id),
//	    video_id   text not null references <schema>.videos(id),
//	    watched_at timestamptz not null,
//	    primary key (user_id, video_id)
//	)
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "vidtube").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("projection: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("projection: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: "vidtube"}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("projection: nil pool")
	}
	return st, nil
}

// ChannelProfile resolves a channel by username (case-insensitive) together
// with its subscription counts and the viewer's subscription state.
func (s *PostgresStore) ChannelProfile(ctx context.Context, username, viewerID string) (ChannelProfile, error) {
	const op = "projection.ChannelProfile"

	norm := identity.NormalizeUsername(username)
	if norm == "" {
		return ChannelProfile{}, ErrChannelNotFound
	}

	var p ChannelProfile
	err := s.pool.QueryRow(ctx, `
		SELECT
			u.id, u.username, u.full_name, u.avatar_url, u.cover_image_url,
			(SELECT count(*) FROM `+s.schema+`.subscriptions sub WHERE sub.channel_id = u.id),
			(SELECT count(*) FROM `+s.schema+`.subscriptions sub WHERE sub.subscriber_id = u.id),
			EXISTS (
				SELECT 1 FROM `+s.schema+`.subscriptions sub
				WHERE sub.channel_id = u.id AND sub.subscriber_id = $2
			)
		FROM `+s.schema+`.users u
		WHERE u.username_norm = $1
	`, norm, viewerID).Scan(
		&p.UserID,
		&p.Username,
		&p.FullName,
		&p.AvatarURL,
		&p.CoverImageURL,
		&p.SubscriberCount,
		&p.SubscribedToCount,
		&p.IsSubscribed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ChannelProfile{}, ErrChannelNotFound
	}
	if err != nil {
		return ChannelProfile{}, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// WatchHistory returns the viewer's history, newest first.
func (s *PostgresStore) WatchHistory(ctx context.Context, userID string, limit int) ([]WatchEntry, error) {
	const op = "projection.WatchHistory"

	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
			v.id, v.title, v.thumbnail_url, v.duration_seconds,
			o.id, o.username, o.avatar_url,
			w.watched_at
		FROM `+s.schema+`.watch_history w
		JOIN `+s.schema+`.videos v ON v.id = w.video_id
		JOIN `+s.schema+`.users o ON o.id = v.owner_id
		WHERE w.user_id = $1
		ORDER BY w.watched_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []WatchEntry
	for rows.Next() {
		var (
			e    WatchEntry
			secs int64
		)
		if err := rows.Scan(
			&e.VideoID,
			&e.Title,
			&e.ThumbnailURL,
			&secs,
			&e.OwnerID,
			&e.OwnerUsername,
			&e.OwnerAvatarURL,
			&e.WatchedAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Duration = time.Duration(secs) * time.Second
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// RecordWatch upserts a history row; re-watching refreshes watched_at.
func (s *PostgresStore) RecordWatch(ctx context.Context, userID, videoID string, now time.Time) error {
	const op = "projection.RecordWatch"

	if now.IsZero() {
		now = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.schema+`.watch_history (user_id, video_id, watched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at
	`, userID, videoID, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrVideoNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
