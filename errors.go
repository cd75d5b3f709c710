// errors.go - Sentinel errors shared across the player

package main

import "errors"

var (
	// ErrParseFailure marks track bytes whose container or tag block is
	// malformed. Wrapped with format detail at each parse site.
	ErrParseFailure = errors.New("parse failure")

	// ErrDecompression marks an archive entry that could not be inflated.
	// Collection loading skips such entries rather than failing.
	ErrDecompression = errors.New("decompression failure")

	// ErrEngineUnavailable means no decode engine exists for the requested
	// format, or its one-time construction failed.
	ErrEngineUnavailable = errors.New("decode engine unavailable")

	// ErrInvalidPayload means the engine rejected the track bytes during
	// session initialization.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPlaybackDevice marks audio device open/start failures.
	ErrPlaybackDevice = errors.New("playback device error")

	// ErrNoTracks means an archive or manifest yielded nothing playable.
	ErrNoTracks = errors.New("no playable tracks")

	// ErrBadTrackIndex marks an out-of-range track selection.
	ErrBadTrackIndex = errors.New("track index out of range")
)
