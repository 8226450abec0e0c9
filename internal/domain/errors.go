package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidAction  = errors.New("invalid action")
	ErrNoTemplate     = errors.New("no alert template recorded")
	ErrFetchFailed    = errors.New("snapshot fetch failed")
	ErrDispatchFailed = errors.New("alert dispatch failed")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrStoreDisabled  = errors.New("store not configured")
)
