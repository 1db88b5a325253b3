package domain

import "errors"

// Sentinel errors shared across the hub, registry, and connection admitter.
var (
	// ErrHubClosing is returned by Hub.Connect when the hub has already
	// started tearing down (spec invariant I2).
	ErrHubClosing = errors.New("hub is closing")

	// ErrNoteNotFound is returned when a note id or alias does not resolve.
	ErrNoteNotFound = errors.New("note not found")

	// ErrPermissionDenied is returned when a user may not read a note.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrMissingCookie is returned when the upgrade request carries no
	// session cookie: no cookie header, no cookie with the configured name,
	// or an empty value.
	ErrMissingCookie = errors.New("missing cookie header")

	// ErrUnknownSession is returned when the session cookie does not name a
	// known session, or fails signature verification.
	ErrUnknownSession = errors.New("unknown session")

	// ErrMalformedPath is returned when the request URL does not match the
	// /realtime/?noteId=... pattern.
	ErrMalformedPath = errors.New("malformed realtime path")

	// ErrConnectionClosed is returned by Send when the transport is no
	// longer open.
	ErrConnectionClosed = errors.New("connection closed")
)
