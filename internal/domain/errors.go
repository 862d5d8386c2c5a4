package domain

import "errors"

var (
	// ErrNotFound is returned when a row with the requested id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStatusConflict is returned when a conditional status update finds the
	// row in a status other than the expected ones.
	ErrStatusConflict = errors.New("status conflict")

	// ErrUnauthenticated is returned when the caller has no valid credentials.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrNothingToPay is returned when an invoice payment finds no outstanding usage.
	ErrNothingToPay = errors.New("nothing to pay")

	// ErrInvalid marks input that failed validation.
	ErrInvalid = errors.New("invalid input")
)
