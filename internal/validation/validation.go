// Package validation checks configured display locations before the first poll.
package validation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/kjstillabower/weather-display/internal/models"
)

const (
	minCityLen = 2
	maxCityLen = 100
	// MaxLocations is the number of slots the comparison layout has.
	MaxLocations = 2
)

var (
	ErrLocationEmpty        = errors.New("location is required")
	ErrLocationTooShort     = errors.New("location too short")
	ErrLocationTooLong      = errors.New("location too long")
	ErrLocationInvalidChars = errors.New("location contains invalid characters")
	ErrLatitudeRange        = errors.New("latitude out of range")
	ErrLongitudeRange       = errors.New("longitude out of range")
	ErrIncompleteCoords     = errors.New("lat and lon must be set together")
	ErrLocationCount        = errors.New("between 1 and 2 locations are required")
)

// ValidateCityName trims the input, enforces length bounds (minLen, maxLen in
// runes) and restricts it to letters, digits, space, comma, hyphen, period and
// apostrophe. Returns the trimmed name.
func ValidateCityName(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedCityRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// ValidateCoordinates checks WGS84 bounds.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v", ErrLatitudeRange, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v", ErrLongitudeRange, lon)
	}
	return nil
}

// ValidateLocation checks one location and returns it with a trimmed city
// name. A location needs coordinates, a city, or both.
func ValidateLocation(loc models.Location) (models.Location, error) {
	if (loc.Lat == nil) != (loc.Lon == nil) {
		return loc, ErrIncompleteCoords
	}
	if loc.HasCoords() {
		if err := ValidateCoordinates(*loc.Lat, *loc.Lon); err != nil {
			return loc, err
		}
		if strings.TrimSpace(loc.City) == "" {
			loc.City = ""
			return loc, nil
		}
	}
	city, err := ValidateCityName(loc.City, minCityLen, maxCityLen)
	if err != nil {
		return loc, err
	}
	loc.City = city
	return loc, nil
}

// ValidateLocations checks the configured location list. One location selects
// the single layout and two select the comparison layout.
func ValidateLocations(locs []models.Location) ([]models.Location, error) {
	if len(locs) == 0 || len(locs) > MaxLocations {
		return nil, fmt.Errorf("%w: got %d", ErrLocationCount, len(locs))
	}
	out := make([]models.Location, 0, len(locs))
	for i, loc := range locs {
		v, err := ValidateLocation(loc)
		if err != nil {
			return nil, fmt.Errorf("locations[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
