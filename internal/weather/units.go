package weather

import (
	"fmt"
	"math"
)

// Unit is the temperature unit the user prefers. It also picks the wind unit.
type Unit string

const (
	Celsius    Unit = "C"
	Fahrenheit Unit = "F"
)

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool { return u == Celsius || u == Fahrenheit }

// Tolerances beyond which the imperial value is recomputed from the metric one.
const (
	fahrenheitTolerance = 1.0
	mphTolerance        = 1.0
	kphPerMph           = 1.609344
)

// CelsiusToFahrenheit converts a temperature.
func CelsiusToFahrenheit(c float64) float64 { return c*9/5 + 32 }

// FahrenheitToCelsius converts a temperature.
func FahrenheitToCelsius(f float64) float64 { return (f - 32) * 5 / 9 }

// KphToMph converts a speed.
func KphToMph(kph float64) float64 { return kph / kphPerMph }

// In returns the reading in unit u.
func (t Temperature) In(u Unit) float64 {
	if u == Fahrenheit {
		return t.Fahrenheit
	}
	return t.Celsius
}

// Format renders the reading rounded to whole degrees, e.g. "18°C".
func (t Temperature) Format(u Unit) string {
	if !u.Valid() {
		u = Celsius
	}
	return fmt.Sprintf("%.0f°%s", t.In(u), u)
}

// Format renders the speed in km/h for Celsius and mph for Fahrenheit.
func (w Wind) Format(u Unit) string {
	if u == Fahrenheit {
		return fmt.Sprintf("%.0f mph", w.Mph)
	}
	return fmt.Sprintf("%.0f km/h", w.Kph)
}

// normalize recomputes the imperial value when it disagrees with the metric one.
func (t *Temperature) normalize() {
	if want := CelsiusToFahrenheit(t.Celsius); math.Abs(t.Fahrenheit-want) > fahrenheitTolerance {
		t.Fahrenheit = round1(want)
	}
}

func (w *Wind) normalize() {
	if want := KphToMph(w.Kph); math.Abs(w.Mph-want) > mphTolerance {
		w.Mph = round1(want)
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
