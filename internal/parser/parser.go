// Package parser turns an OpenWeatherMap current-weather response body into a
// canonical models.WeatherRecord.
//
// Decode returns an error only when the payload as a whole is unusable. Failures
// of individual fields are stored on the record (see WeatherRecord.Err) so the
// renderer can skip just those fields.
package parser

import (
	"fmt"
	"strings"

	"github.com/kjstillabower/weather-display/internal/models"
)

// Mode selects a decode strategy.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeFlat       Mode = "flat"
)

// Decoder converts a raw response body into a WeatherRecord.
type Decoder interface {
	Decode(body []byte) (models.WeatherRecord, error)
	Mode() Mode
}

// ParseMode maps a config string to a Mode. Empty selects structured.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeStructured:
		return ModeStructured, nil
	case ModeFlat:
		return ModeFlat, nil
	default:
		return "", fmt.Errorf("decode mode must be structured or flat, got %q", s)
	}
}

// New returns the decoder for mode.
func New(mode Mode) (Decoder, error) {
	switch mode {
	case ModeStructured, "":
		return NewStructuredDecoder(), nil
	case ModeFlat:
		return NewFlatDecoder(LegacyLayout), nil
	default:
		return nil, fmt.Errorf("unknown decode mode %q", mode)
	}
}
