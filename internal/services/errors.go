package services

import "errors"

// ErrValidation is returned for missing or invalid request fields.
// Wrapped errors carry the specific reason.
var ErrValidation = errors.New("invalid request")

// ErrForbidden is returned when the acting user's role is not authorized
// for the operation, or a precondition such as "editable only while
// pending" does not hold.
var ErrForbidden = errors.New("forbidden")
