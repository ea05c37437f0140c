package domain

import "errors"

var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNotSignedIn         = errors.New("not signed in")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrPasswordTooShort    = errors.New("password must be at least 6 characters")
)
