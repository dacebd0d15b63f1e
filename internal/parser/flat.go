package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kjstillabower/weather-display/internal/models"
)

// FlatPosition locates a value in a comma-split body: the Token-th comma
// separated token, then the Part-th ':' separated piece of it.
type FlatPosition struct {
	Token int
	Part  int
}

// FlatLayout maps fields to their positions. Fields absent from the layout are
// reported as missing.
type FlatLayout map[models.Field]FlatPosition

// LegacyLayout matches the key order the current-weather endpoint emitted before
// feels_like and timezone were added:
//
//	{"coord":{"lon":..,"lat":..},"weather":[{"id":..,"main":..,"description":..,"icon":..}],
//	"base":..,"main":{"temp":..,"pressure":..,"humidity":..,"temp_min":..,"temp_max":..},
//	"visibility":..,"wind":{"speed":..,"deg":..},"clouds":{"all":..},"dt":..,
//	"sys":{"type":..,"id":..,"message":..,"country":..,"sunrise":..,"sunset":..},
//	"id":..,"name":..,"cod":..}
//
// Any reordering upstream silently shifts every index after it.
var LegacyLayout = FlatLayout{
	models.FieldDescription: {Token: 4, Part: 1},
	models.FieldIcon:        {Token: 5, Part: 1},
	models.FieldTemperature: {Token: 7, Part: 2},
	models.FieldHumidity:    {Token: 9, Part: 1},
	models.FieldWindSpeed:   {Token: 13, Part: 2},
	models.FieldCloud:       {Token: 15, Part: 2},
	models.FieldSunrise:     {Token: 21, Part: 1},
	models.FieldSunset:      {Token: 22, Part: 1},
	models.FieldPlaceName:   {Token: 24, Part: 1},
}

// FlatDecoder is the legacy positional decoder. It trusts the layout blindly:
// a body with a different key order decodes into the wrong fields without error
// as long as the tokens still parse. Prefer StructuredDecoder.
type FlatDecoder struct {
	layout FlatLayout
}

// NewFlatDecoder returns a FlatDecoder using layout.
func NewFlatDecoder(layout FlatLayout) *FlatDecoder {
	return &FlatDecoder{layout: layout}
}

// Mode implements Decoder.
func (d *FlatDecoder) Mode() Mode { return ModeFlat }

// Decode implements Decoder.
func (d *FlatDecoder) Decode(body []byte) (models.WeatherRecord, error) {
	var rec models.WeatherRecord
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return rec, &MalformedPayloadError{Err: errors.New("empty body")}
	}
	tokens := strings.Split(raw, ",")
	if len(tokens) < 2 {
		return rec, &MalformedPayloadError{Err: fmt.Errorf("expected comma separated body, got %d token", len(tokens))}
	}

	if v, ok := d.text(tokens, &rec, models.FieldPlaceName); ok {
		rec.PlaceName = v
	}
	if v, ok := d.number(tokens, &rec, models.FieldTemperature); ok {
		rec.TemperatureK = v
	}
	if v, ok := d.number(tokens, &rec, models.FieldFeelsLike); ok {
		rec.FeelsLikeK = &v
	}
	if v, ok := d.text(tokens, &rec, models.FieldDescription); ok {
		rec.Descriptions = []string{v}
	}
	if v, ok := d.integer(tokens, &rec, models.FieldHumidity); ok {
		rec.HumidityPct = int(v)
	}
	if v, ok := d.number(tokens, &rec, models.FieldWindSpeed); ok {
		rec.WindSpeedMS = v
	}
	if v, ok := d.integer(tokens, &rec, models.FieldCloud); ok {
		pct := int(v)
		rec.CloudPct = &pct
	}
	if v, ok := d.integer(tokens, &rec, models.FieldSunrise); ok {
		rec.Sunrise = &v
	}
	if v, ok := d.integer(tokens, &rec, models.FieldSunset); ok {
		rec.Sunset = &v
	}
	if v, ok := d.text(tokens, &rec, models.FieldIcon); ok {
		rec.IconCode = v
	}
	if v, ok := d.integer(tokens, &rec, models.FieldTimezone); ok {
		off := int(v)
		rec.TimezoneOffset = &off
	}
	return rec, nil
}

// extract returns the cleaned token for f, recording a field error on failure.
func (d *FlatDecoder) extract(tokens []string, rec *models.WeatherRecord, f models.Field) (string, bool) {
	pos, ok := d.layout[f]
	if !ok {
		rec.SetErr(f, &MissingFieldError{Field: f})
		return "", false
	}
	if pos.Token < 0 || pos.Token >= len(tokens) {
		rec.SetErr(f, &MalformedPayloadError{
			Field: f,
			Err:   fmt.Errorf("token %d out of range (%d tokens)", pos.Token, len(tokens)),
		})
		return "", false
	}
	parts := strings.Split(tokens[pos.Token], ":")
	if pos.Part < 0 || pos.Part >= len(parts) {
		rec.SetErr(f, &MalformedPayloadError{
			Field: f,
			Token: tokens[pos.Token],
			Err:   fmt.Errorf("part %d out of range (%d parts)", pos.Part, len(parts)),
		})
		return "", false
	}
	return cleanToken(parts[pos.Part]), true
}

func (d *FlatDecoder) text(tokens []string, rec *models.WeatherRecord, f models.Field) (string, bool) {
	return d.extract(tokens, rec, f)
}

func (d *FlatDecoder) number(tokens []string, rec *models.WeatherRecord, f models.Field) (float64, bool) {
	s, ok := d.extract(tokens, rec, f)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		rec.SetErr(f, &MalformedPayloadError{Field: f, Token: s, Err: errNotNumber})
		return 0, false
	}
	return v, true
}

func (d *FlatDecoder) integer(tokens []string, rec *models.WeatherRecord, f models.Field) (int64, bool) {
	s, ok := d.extract(tokens, rec, f)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		rec.SetErr(f, &MalformedPayloadError{Field: f, Token: s, Err: errNotNumber})
		return 0, false
	}
	return v, true
}

// cleanToken strips the JSON punctuation left over from splitting on ',' and ':'.
func cleanToken(s string) string {
	return strings.Trim(strings.TrimSpace(s), "\"{}[] ")
}
