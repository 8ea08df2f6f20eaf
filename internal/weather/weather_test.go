package weather_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/neexbeast/skycast/internal/weather"
)

func TestLocation_KeyIsCaseInsensitive(t *testing.T) {
	a := weather.Location{Name: "Paris", Region: "Ile-de-France", Country: "France"}
	b := weather.Location{Name: " paris", Region: "ILE-DE-FRANCE", Country: "france "}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), weather.Location{Name: "Paris", Country: "United States"}.Key())
}

func TestLocation_String(t *testing.T) {
	assert.Equal(t, "Paris, Ile-de-France, France", weather.Location{Name: "Paris", Region: "Ile-de-France", Country: "France"}.String())
	assert.Equal(t, "Singapore", weather.Location{Name: "Singapore", Region: " "}.String())
}

func TestTemperature_Format(t *testing.T) {
	temp := weather.Temperature{Celsius: 18.4, Fahrenheit: 65.1}
	assert.Equal(t, "18°C", temp.Format(weather.Celsius))
	assert.Equal(t, "65°F", temp.Format(weather.Fahrenheit))
	assert.Equal(t, "18°C", temp.Format(weather.Unit("K")), "unknown unit falls back to Celsius")
}

func TestWind_Format(t *testing.T) {
	w := weather.Wind{Kph: 14.2, Mph: 8.8}
	assert.Equal(t, "14 km/h", w.Format(weather.Celsius))
	assert.Equal(t, "9 mph", w.Format(weather.Fahrenheit))
}

func TestConversions(t *testing.T) {
	assert.InDelta(t, 212, weather.CelsiusToFahrenheit(100), 1e-9)
	assert.InDelta(t, -40, weather.FahrenheitToCelsius(-40), 1e-9)
	assert.InDelta(t, 62.137, weather.KphToMph(100), 0.001)
}

func TestIcon_EverySetCoversVocabulary(t *testing.T) {
	for _, code := range weather.ConditionCodes() {
		assert.NotEmpty(t, weather.Icon(code, weather.IconSetEmojis), code)
		assert.NotEmpty(t, weather.Icon(code, weather.IconSetClassic), code)
	}
	assert.Equal(t, "wi-day-sunny", weather.Icon(weather.CodeSunny, weather.IconSetClassic))
	assert.Equal(t, "☀️", weather.Icon(weather.CodeSunny, weather.IconSetEmojis))
}

func TestIcon_UnknownCode(t *testing.T) {
	assert.Equal(t, "wi-na", weather.Icon("volcanic_ash", weather.IconSetClassic))
}

func TestConditionCode_Valid(t *testing.T) {
	assert.True(t, weather.CodeHeavyRain.Valid())
	assert.False(t, weather.ConditionCode("Heavy Rain").Valid())
}
