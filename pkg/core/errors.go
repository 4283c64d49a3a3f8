// Package core holds the shared error taxonomy for the mensetsu client.
package core

import (
	"fmt"
)

// Error is a typed client error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Param   string    `json:"param,omitempty"`
	Code    string    `json:"code,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Fatal to a connect attempt; surfaced to the caller, never retried.
	ErrCredentialUnavailable ErrorType = "credential_unavailable_error"
	ErrTransportSetup        ErrorType = "transport_setup_error"

	// Recovered locally; the session continues unchanged.
	ErrUnknownAgent   ErrorType = "unknown_agent_error"
	ErrIllegalHandoff ErrorType = "illegal_handoff_error"
	ErrDuplicateID    ErrorType = "duplicate_id_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrChannelNotOpen ErrorType = "channel_not_open_error"

	ErrInvalidRequest ErrorType = "invalid_request_error"
)

// NewCredentialUnavailableError creates a credential fetch failure error.
func NewCredentialUnavailableError(message string) *Error {
	return &Error{Type: ErrCredentialUnavailable, Message: message}
}

// NewTransportSetupError creates a peer connection / data channel setup error.
func NewTransportSetupError(message string) *Error {
	return &Error{Type: ErrTransportSetup, Message: message}
}

// NewUnknownAgentError creates an error for an agent name with no registration.
func NewUnknownAgentError(name string) *Error {
	return &Error{Type: ErrUnknownAgent, Message: fmt.Sprintf("no agent named %q", name), Param: name}
}

// NewIllegalHandoffError creates an error for a handoff outside the
// active agent's declared downstream set.
func NewIllegalHandoffError(from, to string) *Error {
	return &Error{Type: ErrIllegalHandoff, Message: fmt.Sprintf("agent %q may not hand off to %q", from, to), Param: to}
}

// NewDuplicateIDError creates an error for an append with an existing item ID.
func NewDuplicateIDError(itemID string) *Error {
	return &Error{Type: ErrDuplicateID, Message: fmt.Sprintf("transcript item %q already exists", itemID), Param: itemID}
}

// NewNotFoundError creates an error for a mutation on an absent item.
func NewNotFoundError(itemID string) *Error {
	return &Error{Type: ErrNotFound, Message: fmt.Sprintf("transcript item %q not found", itemID), Param: itemID}
}

// NewChannelNotOpenError creates an error for a send while the data
// channel is not open. The caller may retry once connected.
func NewChannelNotOpenError(eventType string) *Error {
	return &Error{
		Type:    ErrChannelNotOpen,
		Message: "data channel is not open",
		Code:    "error.data_channel_not_open",
		Param:   eventType,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{Type: ErrInvalidRequest, Message: message}
}

// IsType reports whether err is a *Error of the given type.
func IsType(err error, t ErrorType) bool {
	e, ok := err.(*Error)
	return ok && e.Type == t
}
