// Package apperr defines the closed set of error variants surfaced by the engine.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind tags an Error with the category callers switch on.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInput is a caller mistake: bad ids, malformed payloads, wrong level. Never retried.
	KindInput
	// KindNotFound is a missing entity that the caller referenced directly.
	KindNotFound
	// KindUpstream is a storage or provider failure the fallbacks could not absorb.
	KindUpstream
	// KindSetup is a broken game setup, such as a team with no levels. Players should contact support.
	KindSetup
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream"
	case KindSetup:
		return "setup"
	default:
		return "unknown"
	}
}

const contactSupport = "Something is wrong with your game setup. Please contact support."

// Error is a tagged engine error carrying a player-facing display message.
type Error struct {
	Kind           Kind
	Code           string
	DisplayMessage string
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Input returns a KindInput error.
func Input(code, display string, err error) *Error {
	return &Error{Kind: KindInput, Code: code, DisplayMessage: display, Err: err}
}

// NotFound returns a KindNotFound error.
func NotFound(code, display string, err error) *Error {
	return &Error{Kind: KindNotFound, Code: code, DisplayMessage: display, Err: err}
}

// Upstream returns a KindUpstream error with a generic retry message.
func Upstream(code string, err error) *Error {
	return &Error{
		Kind:           KindUpstream,
		Code:           code,
		DisplayMessage: "Something went wrong on our end. Please try again.",
		Err:            err,
	}
}

// Setup returns a KindSetup error with the contact support message.
func Setup(code string, err error) *Error {
	return &Error{Kind: KindSetup, Code: code, DisplayMessage: contactSupport, Err: err}
}

// As unwraps err to an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindUnknown for untagged errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DisplayMessage returns the player-facing text for err.
func DisplayMessage(err error) string {
	if e, ok := As(err); ok && e.DisplayMessage != "" {
		return e.DisplayMessage
	}
	return contactSupport
}
