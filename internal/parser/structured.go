package parser

import (
	"errors"

	"github.com/tidwall/gjson"

	"github.com/kjstillabower/weather-display/internal/models"
)

var (
	errNotNumber = errors.New("not a number")
	errNotString = errors.New("not a string")
)

// StructuredDecoder reads fields by path from the provider's JSON schema.
type StructuredDecoder struct{}

// NewStructuredDecoder returns a StructuredDecoder.
func NewStructuredDecoder() *StructuredDecoder {
	return &StructuredDecoder{}
}

// Mode implements Decoder.
func (d *StructuredDecoder) Mode() Mode { return ModeStructured }

// Decode implements Decoder.
func (d *StructuredDecoder) Decode(body []byte) (models.WeatherRecord, error) {
	var rec models.WeatherRecord
	if !gjson.ValidBytes(body) {
		return rec, &MalformedPayloadError{Err: errors.New("body is not valid JSON")}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return rec, &MalformedPayloadError{Err: errors.New("body is not a JSON object")}
	}

	if v, ok := text(root, &rec, models.FieldPlaceName, "name"); ok {
		rec.PlaceName = v
	}
	if v, ok := number(root, &rec, models.FieldTemperature, "main.temp"); ok {
		rec.TemperatureK = v
	}
	if v, ok := number(root, &rec, models.FieldFeelsLike, "main.feels_like"); ok {
		rec.FeelsLikeK = &v
	}
	if v, ok := text(root, &rec, models.FieldDescription, "weather.0.description"); ok {
		rec.Descriptions = append(rec.Descriptions, v)
		if extra := root.Get("weather.1.description"); extra.Type == gjson.String {
			rec.Descriptions = append(rec.Descriptions, extra.String())
		}
	}
	if v, ok := integer(root, &rec, models.FieldHumidity, "main.humidity"); ok {
		rec.HumidityPct = int(v)
	}
	if v, ok := number(root, &rec, models.FieldWindSpeed, "wind.speed"); ok {
		rec.WindSpeedMS = v
	}
	if v, ok := integer(root, &rec, models.FieldCloud, "clouds.all"); ok {
		pct := int(v)
		rec.CloudPct = &pct
	}
	if v, ok := integer(root, &rec, models.FieldSunrise, "sys.sunrise"); ok {
		rec.Sunrise = &v
	}
	if v, ok := integer(root, &rec, models.FieldSunset, "sys.sunset"); ok {
		rec.Sunset = &v
	}
	if v, ok := text(root, &rec, models.FieldIcon, "weather.0.icon"); ok {
		rec.IconCode = v
	}
	if v, ok := integer(root, &rec, models.FieldTimezone, "timezone"); ok {
		off := int(v)
		rec.TimezoneOffset = &off
	}
	return rec, nil
}

func lookup(root gjson.Result, rec *models.WeatherRecord, f models.Field, path string) (gjson.Result, bool) {
	v := root.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		rec.SetErr(f, &MissingFieldError{Field: f, Path: path})
		return v, false
	}
	return v, true
}

func number(root gjson.Result, rec *models.WeatherRecord, f models.Field, path string) (float64, bool) {
	v, ok := lookup(root, rec, f, path)
	if !ok {
		return 0, false
	}
	if v.Type != gjson.Number {
		rec.SetErr(f, &MalformedPayloadError{Field: f, Token: v.Raw, Err: errNotNumber})
		return 0, false
	}
	return v.Float(), true
}

func integer(root gjson.Result, rec *models.WeatherRecord, f models.Field, path string) (int64, bool) {
	v, ok := lookup(root, rec, f, path)
	if !ok {
		return 0, false
	}
	if v.Type != gjson.Number {
		rec.SetErr(f, &MalformedPayloadError{Field: f, Token: v.Raw, Err: errNotNumber})
		return 0, false
	}
	return v.Int(), true
}

func text(root gjson.Result, rec *models.WeatherRecord, f models.Field, path string) (string, bool) {
	v, ok := lookup(root, rec, f, path)
	if !ok {
		return "", false
	}
	if v.Type != gjson.String {
		rec.SetErr(f, &MalformedPayloadError{Field: f, Token: v.Raw, Err: errNotString})
		return "", false
	}
	return v.String(), true
}
