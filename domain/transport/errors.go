package transport

import "errors"

// Domain errors for transports.
var (
	// ErrNotBound indicates the transport is not bound.
	ErrNotBound = errors.New("transport not bound")

	// ErrAlreadyBound indicates Bind was called on a bound transport.
	ErrAlreadyBound = errors.New("transport already bound")

	// ErrBindFailed indicates an endpoint could not be opened.
	ErrBindFailed = errors.New("transport bind failed")

	// ErrPublishFailed indicates a message could not be delivered.
	ErrPublishFailed = errors.New("transport publish failed")

	// ErrBusy indicates the request queue is full.
	ErrBusy = errors.New("request queue full")
)
