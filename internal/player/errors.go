/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import "errors"

// Sentinel errors returned by playback commands. Callers check them with
// errors.Is; every failure leaves the session in its prior state.
var (
	// ErrEmptyQueue is returned when a command needs a track and the queue has none.
	ErrEmptyQueue = errors.New("queue is empty")

	// ErrTrackNotInQueue is returned by play when the requested track is not queued.
	ErrTrackNotInQueue = errors.New("track not in queue")

	// ErrInvalidTransition is returned for transport commands that are not
	// legal from the current state, such as pause while stopped.
	ErrInvalidTransition = errors.New("invalid playback transition")

	// ErrInvalidArgument is returned for malformed input, such as a volume
	// outside 0-100 or a negative seek position.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange is returned for queue positions outside the queue bounds.
	ErrOutOfRange = errors.New("position out of range")
)
