package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Units is the temperature unit shown on screen.
type Units string

const (
	UnitsCelsius    Units = "celsius"
	UnitsFahrenheit Units = "fahrenheit"
)

const (
	kelvinOffset = 273.15
	msToMPH      = 2.2369362912

	// Descriptions longer than this are wrapped onto two lines.
	maxDescLine = 18
)

// ParseUnits maps a config string to Units. Empty selects Celsius.
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitsCelsius:
		return UnitsCelsius, nil
	case UnitsFahrenheit:
		return UnitsFahrenheit, nil
	default:
		return "", fmt.Errorf("units must be celsius or fahrenheit, got %q", s)
	}
}

// round2 rounds to 2 decimals from the exact binary value, halves to even.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// CelsiusFromKelvin converts and rounds to 2 decimals.
func CelsiusFromKelvin(k float64) float64 {
	return round2(k - kelvinOffset)
}

// FahrenheitFromKelvin converts and rounds to 2 decimals.
func FahrenheitFromKelvin(k float64) float64 {
	return round2((k-kelvinOffset)*9/5 + 32)
}

// MPHFromMS converts m/s to mph rounded to 2 decimals.
func MPHFromMS(ms float64) float64 {
	return round2(ms * msToMPH)
}

// FormatNumber prints the shortest decimal form with at least one fractional
// digit: 20 -> "20.0", 22.37 -> "22.37".
func FormatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// TemperatureColor picks the display color for a Celsius value:
// below 0 cyan, 0 to 20 white, above 20 to 25 yellow, above 25 orange.
func TemperatureColor(celsius float64) Color {
	switch {
	case celsius < 0:
		return ColorCyan
	case celsius <= 20:
		return ColorWhite
	case celsius <= 25:
		return ColorYellow
	default:
		return ColorOrange
	}
}

// WrapDescription splits a weather description over two lines.
//
// A description longer than 18 characters is split on spaces into at most three
// tokens: two tokens give one per line, three give "t0 t1" and "t2". Anything
// else keeps the description whole on line one with secondary on line two.
func WrapDescription(primary, secondary string) (line1, line2 string) {
	if utf8.RuneCountInString(primary) > maxDescLine {
		words := strings.SplitN(primary, " ", 3)
		switch len(words) {
		case 2:
			return words[0], words[1]
		case 3:
			return words[0] + " " + words[1], words[2]
		}
	}
	return primary, secondary
}

// TemperatureContent returns the temperature region content for tempK. The
// feels-like part is shown only when feelsK is set and showFeels is true.
func TemperatureContent(old Content, tempK float64, feelsK *float64, units Units, showFeels bool) Content {
	convert, suffix := CelsiusFromKelvin, "C"
	if units == UnitsFahrenheit {
		convert, suffix = FahrenheitFromKelvin, "F"
	}
	s := "Temp: " + FormatNumber(convert(tempK)) + suffix
	if showFeels && feelsK != nil {
		s += " Feels like: " + FormatNumber(convert(*feelsK)) + suffix
	}
	old.Text = s
	old.Color = TemperatureColor(CelsiusFromKelvin(tempK))
	return old
}

// TextContent replaces the text and keeps the color.
func TextContent(old Content, s string) Content {
	old.Text = s
	return old
}

// HumidityContent returns "Humidity: {pct}%".
func HumidityContent(old Content, pct int) Content {
	return TextContent(old, fmt.Sprintf("Humidity: %d%%", pct))
}

// WindContent returns "Wind: {mph} MPH".
func WindContent(old Content, ms float64) Content {
	return TextContent(old, "Wind: "+FormatNumber(MPHFromMS(ms))+" MPH")
}

// CloudContent returns "Cloud Coverage: {pct}%".
func CloudContent(old Content, pct int) Content {
	return TextContent(old, fmt.Sprintf("Cloud Coverage: %d%%", pct))
}

// ClockText formats t as "HH:MM".
func ClockText(t time.Time) string {
	return t.Format("15:04")
}

// DateText formats t as "DD/MM/YYYY", or "MM/DD/YYYY" when usa is set.
func DateText(t time.Time, usa bool) string {
	if usa {
		return t.Format("01/02/2006")
	}
	return t.Format("02/01/2006")
}

// SunTime formats an epoch as local "HH:MM:SS".
func SunTime(epoch int64, loc *time.Location) string {
	return time.Unix(epoch, 0).In(loc).Format("15:04:05")
}
