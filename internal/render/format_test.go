package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemperatureColor_Boundaries(t *testing.T) {
	tests := []struct {
		celsius float64
		want    Color
	}{
		{-0.01, ColorCyan},
		{0.0, ColorWhite},
		{20.0, ColorWhite},
		{20.01, ColorYellow},
		{25.0, ColorYellow},
		{25.01, ColorOrange},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TemperatureColor(tt.celsius), "TemperatureColor(%v)", tt.celsius)
	}
}

func TestTemperatureColor_FromKelvin(t *testing.T) {
	tests := []struct {
		kelvin float64
		want   Color
	}{
		{273.14, ColorCyan},
		{273.15, ColorWhite},
		{293.15, ColorWhite},
		{293.16, ColorYellow},
		{298.15, ColorYellow},
		{298.16, ColorOrange},
	}
	for _, tt := range tests {
		got := TemperatureContent(Content{}, tt.kelvin, nil, UnitsCelsius, false).Color
		assert.Equal(t, tt.want, got, "color for %vK", tt.kelvin)
	}
}

func TestCelsiusFromKelvin(t *testing.T) {
	tests := []struct {
		kelvin float64
		want   float64
	}{
		{288.15, 15.0},
		{273.15, 0},
		{268.15, -5.0},
		{300.0, 26.85},
		{287.6, 14.45},
		{255.37, -17.78},
		{256.025, -17.12},
		{310.928, 37.78},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CelsiusFromKelvin(tt.kelvin), "CelsiusFromKelvin(%v)", tt.kelvin)
	}
	assert.Equal(t, "0.0", FormatNumber(CelsiusFromKelvin(273.149)))
	assert.Equal(t, "0.0", FormatNumber(CelsiusFromKelvin(273.15)))
}

func TestFahrenheitFromKelvin(t *testing.T) {
	assert.Equal(t, 32.0, FahrenheitFromKelvin(273.15))
	assert.Equal(t, 212.0, FahrenheitFromKelvin(373.15))
	assert.Equal(t, -40.0, FahrenheitFromKelvin(233.15))
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		20:     "20.0",
		22.37:  "22.37",
		-3.5:   "-3.5",
		0:      "0.0",
		15.001: "15.001",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatNumber(in), "FormatNumber(%v)", in)
	}
}

func TestWindContent(t *testing.T) {
	assert.Equal(t, "Wind: 22.37 MPH", WindContent(Content{}, 10.0).Text)
	assert.Equal(t, "Wind: 0.0 MPH", WindContent(Content{}, 0).Text)
	assert.Equal(t, 22.37, MPHFromMS(10.0))
}

func TestHumidityAndCloudContent(t *testing.T) {
	old := Content{Color: ColorYellow}
	got := HumidityContent(old, 82)
	assert.Equal(t, "Humidity: 82%", got.Text)
	assert.Equal(t, ColorYellow, got.Color, "color is kept")
	assert.Equal(t, "Cloud Coverage: 75%", CloudContent(Content{}, 75).Text)
}

func TestTemperatureContent(t *testing.T) {
	feels := 287.6
	tests := []struct {
		name      string
		units     Units
		feels     *float64
		showFeels bool
		want      string
	}{
		{"celsius with feels like", UnitsCelsius, &feels, true, "Temp: 15.0C Feels like: 14.45C"},
		{"feels like hidden by layout", UnitsCelsius, &feels, false, "Temp: 15.0C"},
		{"feels like absent", UnitsCelsius, nil, true, "Temp: 15.0C"},
		{"fahrenheit", UnitsFahrenheit, &feels, true, "Temp: 59.0F Feels like: 58.01F"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TemperatureContent(Content{}, 288.15, tt.feels, tt.units, tt.showFeels)
			assert.Equal(t, tt.want, got.Text)
			assert.Equal(t, ColorWhite, got.Color)
		})
	}
}

func TestWrapDescription(t *testing.T) {
	tests := []struct {
		name      string
		primary   string
		secondary string
		line1     string
		line2     string
	}{
		{"three tokens", "scattered clouds with haze", "", "scattered clouds", "with haze"},
		{"three tokens drops secondary", "thunderstorm with heavy rain", "mist", "thunderstorm with", "heavy rain"},
		{"two tokens", "thunderstorm drizzle", "", "thunderstorm", "drizzle"},
		{"short", "clear sky", "", "clear sky", ""},
		{"short with secondary", "mist", "light rain", "mist", "light rain"},
		{"exactly 18", "light intensity xy", "", "light intensity xy", ""},
		{"single long word", "supercalifragilistic", "haze", "supercalifragilistic", "haze"},
		{"18 runes in 20 bytes", "überwiegend bewölk", "", "überwiegend bewölk", ""},
		{"19 runes multibyte", "überwiegend bewölkt", "", "überwiegend", "bewölkt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := WrapDescription(tt.primary, tt.secondary)
			assert.Equal(t, tt.line1, l1)
			assert.Equal(t, tt.line2, l2)
		})
	}
}

func TestDateAndClockText(t *testing.T) {
	ts := time.Date(2024, time.March, 7, 9, 5, 33, 0, time.UTC)
	assert.Equal(t, "09:05", ClockText(ts))
	assert.Equal(t, "07/03/2024", DateText(ts, false))
	assert.Equal(t, "03/07/2024", DateText(ts, true))
}

func TestSunTime(t *testing.T) {
	helsinki, err := time.LoadLocation("Europe/Helsinki")
	require.NoError(t, err)
	assert.Equal(t, "07:20:00", SunTime(1699946400, time.UTC))
	assert.Equal(t, "09:20:00", SunTime(1699946400, helsinki))
}

func TestParseUnits(t *testing.T) {
	u, err := ParseUnits("")
	require.NoError(t, err)
	assert.Equal(t, UnitsCelsius, u)
	u, err = ParseUnits("Fahrenheit")
	require.NoError(t, err)
	assert.Equal(t, UnitsFahrenheit, u)
	_, err = ParseUnits("kelvin")
	assert.Error(t, err)
}

func TestColor(t *testing.T) {
	assert.Equal(t, "#ff7700", ColorOrange.String())
	r, g, b, a := ColorOrange.RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
	assert.Equal(t, uint32(0x7777), g)
	assert.Equal(t, uint32(0), b)
	assert.Equal(t, uint32(0xFFFF), a)
}
