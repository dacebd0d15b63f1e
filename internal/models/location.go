package models

import "strconv"

// Location is one place the display shows. Coordinates take precedence over
// the city name when both are set.
type Location struct {
	City string   `yaml:"city"`
	Lat  *float64 `yaml:"lat"`
	Lon  *float64 `yaml:"lon"`
	// Flag is an optional bitmap drawn beside the location in the comparison layout.
	Flag string `yaml:"flag"`
}

// HasCoords reports whether both latitude and longitude are set.
func (l Location) HasCoords() bool {
	return l.Lat != nil && l.Lon != nil
}

// Label names the location in logs and metrics.
func (l Location) Label() string {
	if l.City != "" {
		return l.City
	}
	if l.HasCoords() {
		return strconv.FormatFloat(*l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(*l.Lon, 'f', -1, 64)
	}
	return ""
}
