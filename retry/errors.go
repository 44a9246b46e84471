package retry

import "errors"

// ErrInvalidMaxAttempts indicates a policy with MaxAttempts <= 0.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")
