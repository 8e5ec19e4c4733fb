package domain

import "errors"

// ErrMissingID is returned when a record arrives without its identifier.
var ErrMissingID = errors.New("missing identifier")

// ValidationError describes input that was structurally present but
// unacceptable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
