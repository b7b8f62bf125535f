package accumulator

import "errors"

var (
	// ErrEntropyUnavailable is returned when the system randomness source
	// cannot be read. It is fatal for key and nonce generation.
	ErrEntropyUnavailable = errors.New("entropy source unavailable")

	// ErrMalformedInput reports a caller error: wrong length, a non-canonical
	// scalar or a missing argument.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidEncoding reports a byte encoding that failed to decode: bad
	// header, non-zero padding, or a point off the curve or outside the
	// prime-order subgroup.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrDuplicateElement is returned by AddElement under RejectDuplicates.
	ErrDuplicateElement = errors.New("duplicate element")

	// ErrNotInitialized is returned when the public parameters are needed
	// before Init was called.
	ErrNotInitialized = errors.New("public parameters not initialized")
)
