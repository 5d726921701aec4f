package models

import "errors"

// Sentinel errors shared across services; handlers map them to HTTP statuses.
var (
	// ErrNotFound: the referenced session, message or turn does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCorruptData: stored session data failed structural validation.
	ErrCorruptData = errors.New("corrupt session data")
	// ErrInvalidFormat: an imported blob is not a valid session export.
	ErrInvalidFormat = errors.New("invalid session format")
	// ErrDuplicateID: import would overwrite an existing session; the caller
	// must confirm explicitly.
	ErrDuplicateID = errors.New("session id already exists")
	// ErrBusy: a request is already in flight (single-flight guarantee).
	ErrBusy = errors.New("request already in flight")
	// ErrUnsupportedAttachment: attachment media type outside the allow-list.
	ErrUnsupportedAttachment = errors.New("unsupported attachment type")
	// ErrReadOnlyTemplate: template sessions are blueprints, never mutated.
	ErrReadOnlyTemplate = errors.New("template sessions are read-only")
	// ErrNoActiveSession: the operation needs an active session.
	ErrNoActiveSession = errors.New("no active session")
)
