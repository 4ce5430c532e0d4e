package engine

import "errors"

var (
	ErrSpaceNotFound      = errors.New("space not found")
	ErrSpaceInactive      = errors.New("space is not active")
	ErrTrackNotFound      = errors.New("track not found")
	ErrTrackRemoved       = errors.New("track has been removed")
	ErrForbidden          = errors.New("actor lacks required role")
	ErrInvalidReference   = errors.New("track reference not recognized")
	ErrPaymentUnconfirmed = errors.New("payment not confirmed")
	ErrQueueFull          = errors.New("queue is full")
	ErrConflict           = errors.New("conflicting or stale request")
)
