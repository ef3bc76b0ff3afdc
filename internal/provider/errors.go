package provider

import "errors"

var (
	ErrUnauthorized = errors.New("provider unauthorized")
	ErrUnavailable  = errors.New("provider unavailable")
	ErrRateLimited  = errors.New("provider rate limited")
)
