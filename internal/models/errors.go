package models

import "errors"

var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrUnknownCurrency          = errors.New("unknown currency")
	ErrInvalidTransition        = errors.New("invalid transition")
	ErrIncompleteSplit          = errors.New("incomplete split")
	ErrParticipantLimitExceeded = errors.New("participant limit exceeded")
	ErrNotParticipant           = errors.New("not a paying participant")
	ErrForbidden                = errors.New("forbidden")
	ErrPreviewMismatch          = errors.New("preview no longer matches current pricing")
	ErrInvalidRequest           = errors.New("invalid request")
)
