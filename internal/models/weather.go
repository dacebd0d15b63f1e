package models

// Field identifies one canonical weather field. Values double as metric labels.
type Field string

const (
	FieldPlaceName   Field = "place_name"
	FieldTemperature Field = "temperature"
	FieldFeelsLike   Field = "feels_like"
	FieldDescription Field = "description"
	FieldHumidity    Field = "humidity"
	FieldWindSpeed   Field = "wind_speed"
	FieldCloud       Field = "cloud"
	FieldSunrise     Field = "sunrise"
	FieldSunset      Field = "sunset"
	FieldIcon        Field = "icon"
	FieldTimezone    Field = "timezone"
)

// WeatherRecord is the canonical parser output, independent of the decode mode
// that produced it. Temperatures are Kelvin and wind is m/s; conversion happens
// only when rendering. A record lives for one poll cycle.
type WeatherRecord struct {
	PlaceName      string
	TemperatureK   float64
	FeelsLikeK     *float64
	Descriptions   []string
	HumidityPct    int
	WindSpeedMS    float64
	CloudPct       *int
	Sunrise        *int64
	Sunset         *int64
	IconCode       string
	TimezoneOffset *int // seconds east of UTC

	fieldErrs map[Field]error
}

// SetErr records a decode failure for f. Decoders call it instead of aborting
// so unrelated fields still render.
func (r *WeatherRecord) SetErr(f Field, err error) {
	if r.fieldErrs == nil {
		r.fieldErrs = make(map[Field]error)
	}
	r.fieldErrs[f] = err
}

// Err returns the decode failure recorded for f, or nil if f decoded.
func (r WeatherRecord) Err(f Field) error {
	return r.fieldErrs[f]
}

// FieldErrors returns every recorded failure keyed by field.
func (r WeatherRecord) FieldErrors() map[Field]error {
	out := make(map[Field]error, len(r.fieldErrs))
	for f, err := range r.fieldErrs {
		out[f] = err
	}
	return out
}

// PrimaryDescription returns the first description or "".
func (r WeatherRecord) PrimaryDescription() string {
	if len(r.Descriptions) == 0 {
		return ""
	}
	return r.Descriptions[0]
}

// SecondaryDescription returns the second description or "".
func (r WeatherRecord) SecondaryDescription() string {
	if len(r.Descriptions) < 2 {
		return ""
	}
	return r.Descriptions[1]
}
