package models

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrBlobUnavailable = errors.New("blob unavailable")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrInvalidInput    = errors.New("invalid input")
)

// IsDenied reports whether err is an authorization failure (unauthenticated or forbidden).
func IsDenied(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrForbidden)
}
