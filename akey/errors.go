package akey

import "errors"

var (
	// ErrMissingParam means a required signature parameter was absent.
	// Treated as a programming or configuration error, never worked
	// around by skipping the parameter.
	ErrMissingParam = errors.New("missing signature parameter")

	// ErrUnknownAlgorithm means the configured digest algorithm is not
	// one both sides can compute.
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

	// ErrUnknownAction means the effective action has no declared
	// parameter set.
	ErrUnknownAction = errors.New("unknown signing action")
)
