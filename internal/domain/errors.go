package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrStorageCorrupt  = errors.New("storage corrupt")
	ErrNothingSelected = errors.New("select at least one session to export")
)
