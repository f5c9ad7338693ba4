package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoStory       = errors.New("no story is displayed")
	ErrEmptyMessage  = errors.New("message is empty")
	ErrChatBusy      = errors.New("a reply is still pending")
	ErrStoryNotFound = errors.New("story not found")
	ErrStoreClosed   = errors.New("store is closed")
	ErrUnauthorized  = errors.New("wrong admin password")
)

// NetworkError is returned when reading the remote state fails.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is returned when a write command is not accepted by the endpoint.
type RemoteError struct {
	Action Action
	Status int
	Err    error
}

func (e *RemoteError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Action, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// ParseError is returned when a response body does not have the expected JSON shape.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a local form constraint. Message is shown to the user as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }
