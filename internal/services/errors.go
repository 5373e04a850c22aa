// Package services defines the business logic for presence updates and
// status rendering. This file centralizes common service-level error values
// so that they can be consistently returned by service methods and checked
// by callers.
//
// Translation into user-facing replies is performed by the command layer.
package services

import "errors"

var (
	// ErrMissingIdentity is returned when a presence change carries no
	// platform identity.
	ErrMissingIdentity = errors.New("missing user identity")

	// ErrMessageTooLong is returned when an away-message exceeds the
	// configured maximum rune length. Nothing is persisted.
	ErrMessageTooLong = errors.New("away message too long")

	// ErrMissingChannel is returned when a render is requested without a
	// target channel.
	ErrMissingChannel = errors.New("missing channel")

	// ErrMessageGone is returned by MessageDeleter implementations when the
	// platform reports the message as already deleted. Render treats it as
	// success.
	ErrMessageGone = errors.New("message already gone")
)
