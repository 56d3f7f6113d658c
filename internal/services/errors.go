// Package services defines the business logic for conversations,
// configurations, and feedback. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages or HTTP status codes is performed
// at the handler layer. Note that authorization failures deliberately
// reuse the not-found sentinels: a caller must not be able to distinguish
// "exists but forbidden" from "does not exist".
package services

import "errors"

var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist or is not owned by the current user.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrConfigurationNotFound indicates that the requested configuration
	// does not exist, is inactive, or is not visible to the caller's roles.
	ErrConfigurationNotFound = errors.New("configuration not found")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current user.
	ErrMessageNotFound = errors.New("message not found")

	// ErrEmptyMessage is returned when a chat request contains an empty
	// message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a chat message exceeds the maximum
	// configured length limit.
	ErrMessageTooLong = errors.New("message too long")

	// ErrConfigurationRequired is returned when a grounded exchange is
	// started without a configuration reference.
	ErrConfigurationRequired = errors.New("configuration_id is required for the grounded service")

	// ErrConfigurationForbidden is returned when a general exchange carries
	// a configuration reference, which only the grounded service accepts.
	ErrConfigurationForbidden = errors.New("configuration_id is not accepted by the general service")

	// ErrConversationMismatch is returned when a resumed grounded
	// conversation references a different configuration than it was started
	// with.
	ErrConversationMismatch = errors.New("conversation was started against a different configuration")

	// ErrInvalidRating is returned when a feedback rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrForbiddenFeedback is returned when a user attempts to leave
	// feedback on a message they are not permitted to rate.
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")
)
