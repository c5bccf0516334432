package model

import "errors"

var (
	// Auth related errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAuthNotConfigured  = errors.New("auth credentials not configured")
	ErrUnauthorized       = errors.New("unauthorized")

	// Template related errors
	ErrTemplateNotFound = errors.New("template not found")

	// Upstream related errors
	ErrTokenUnavailable = errors.New("bearer token unavailable")
	ErrUpstreamFailed   = errors.New("upstream request failed")
)
