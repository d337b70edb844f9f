package store

import "errors"

// Sentinel errors. The service layer maps these onto coded API errors.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidCursor = errors.New("invalid cursor")
)
