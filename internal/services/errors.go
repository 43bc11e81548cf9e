// Package services defines the business logic for identity, conversations,
// and chat turns. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

// Identity errors.
var (
	// ErrUserNotFound indicates that no user matches the supplied identifier
	// or (nickname, birth date) tuple.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionNotFound indicates that the supplied session id does not
	// resolve to a user row.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnauthorized is returned when login credentials do not match an
	// existing user exactly.
	ErrUnauthorized = errors.New("credentials do not match")

	// ErrNicknameConflict is returned by the explicit registration path when
	// the nickname is held by a user with a different birth date. The caller
	// should surface it as a conflict with a warning flag, not a hard error.
	ErrNicknameConflict = errors.New("nickname already taken")

	// ErrInvalidNickname is returned when a nickname is empty after
	// normalization or exceeds the stored length.
	ErrInvalidNickname = errors.New("nickname must be 1-64 characters")

	// ErrInvalidBirthDate is returned when a birth date component is outside
	// its valid range (year 1900-2100, month 1-12, day 1-31).
	ErrInvalidBirthDate = errors.New("birth date out of range")

	// ErrUnknownGuardian is returned when a caller supplies a guardian label
	// that is not part of the fixed catalog.
	ErrUnknownGuardian = errors.New("unknown guardian")
)

// Conversation errors.
var (
	// ErrInvalidCharacter indicates a persona id outside the fixed catalog.
	ErrInvalidCharacter = errors.New("unknown character")

	// ErrInvalidRole indicates a message role outside {user, assistant}.
	ErrInvalidRole = errors.New("role must be user or assistant")

	// ErrInvalidMessageType indicates a subtype outside {normal, system, warning}.
	ErrInvalidMessageType = errors.New("message type must be normal, system or warning")

	// ErrEmptyMessage is returned when a message body is empty after trimming.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrGuestMessage is returned when a guest-originated message reaches the
	// persistence path; guest messages live only in the client-side buffer.
	ErrGuestMessage = errors.New("guest messages are not persisted")

	// ErrAnswerFailed wraps a chat-completion failure after the fallback
	// provider has also been tried.
	ErrAnswerFailed = errors.New("could not generate a reply")
)
