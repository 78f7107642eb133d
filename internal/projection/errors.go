package projection

import "errors"

var (
	// ErrChannelNotFound is returned when no channel exists for a username.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrVideoNotFound is returned when a watch is recorded against an
	// unknown video.
	ErrVideoNotFound = errors.New("video not found")
)
