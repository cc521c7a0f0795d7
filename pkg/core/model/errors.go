package model

import (
	"errors"
	"net/http"
)

// Kind classifies a domain failure and decides how it surfaces at the HTTP boundary
type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindValidation
	KindState
	KindUpstreamRead
	KindUpstreamWrite
	KindConfiguration
)

// Error is a domain failure with a short, client-facing message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// StatusCode maps the kind to an HTTP status
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindValidation, KindState, KindUpstreamRead:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var (
	ErrMissingCredential = &Error{Kind: KindAuth, Message: "need auth"}
	ErrUnknownCredential = &Error{Kind: KindAuth, Message: "unknown key"}
	ErrUnknownUser       = &Error{Kind: KindAuth, Message: "unknown user"}
	ErrWrongPassword     = &Error{Kind: KindAuth, Message: "unauthorized"}
	ErrNotCaptain        = &Error{Kind: KindAuth, Message: "not a team captain"}

	ErrMissingShiftID = &Error{Kind: KindValidation, Message: "need shift ID"}
	ErrInvalidShiftID = &Error{Kind: KindValidation, Message: "invalid shift ID"}
	ErrInvalidBody    = &Error{Kind: KindValidation, Message: "invalid request body"}

	ErrAlreadyClaimed = &Error{Kind: KindState, Message: "Shift already claimed"}
	ErrNotAShiftCell  = &Error{Kind: KindState, Message: "not a shift"}
	ErrNotOwner       = &Error{Kind: KindState, Message: "Shift not yours"}

	ErrLookup = &Error{Kind: KindUpstreamRead, Message: "unable to check shift; probably invalid ID"}
	ErrWrite  = &Error{Kind: KindUpstreamWrite, Message: "problem changing value"}

	ErrConfiguration = &Error{Kind: KindConfiguration, Message: "directory sheet misconfigured"}
)

// KindOf returns the kind of the first domain error in err's chain, or KindInternal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
