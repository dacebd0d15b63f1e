package parser

import (
	"fmt"

	"github.com/kjstillabower/weather-display/internal/models"
)

// MissingFieldError reports a required key absent from a structured payload.
type MissingFieldError struct {
	Field models.Field
	Path  string
}

func (e *MissingFieldError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("missing field %s", e.Field)
	}
	return fmt.Sprintf("missing field %s (%s)", e.Field, e.Path)
}

// MalformedPayloadError reports a payload or token that could not be decoded.
// Field is empty when the payload as a whole is unusable.
type MalformedPayloadError struct {
	Field models.Field
	Token string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed payload: %v", e.Err)
	}
	if e.Token == "" {
		return fmt.Sprintf("malformed %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed %s %q: %v", e.Field, e.Token, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}
