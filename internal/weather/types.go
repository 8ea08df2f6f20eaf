package weather

import (
	"strings"
	"time"
)

// Location names the place a snapshot describes.
type Location struct {
	Name    string `json:"name" validate:"required"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

// Key returns the identity used to decide whether two snapshots describe the same place.
func (l Location) Key() string {
	return strings.ToLower(strings.TrimSpace(l.Name)) + "|" +
		strings.ToLower(strings.TrimSpace(l.Region)) + "|" +
		strings.ToLower(strings.TrimSpace(l.Country))
}

// String renders the location as "Name, Region, Country", skipping empty parts.
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{l.Name, l.Region, l.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Temperature carries a reading in both unit systems.
type Temperature struct {
	Celsius    float64 `json:"celsius"`
	Fahrenheit float64 `json:"fahrenheit"`
}

// Wind carries a speed in both unit systems.
type Wind struct {
	Kph float64 `json:"kph" validate:"gte=0"`
	Mph float64 `json:"mph" validate:"gte=0"`
}

// Snapshot is a complete current-conditions result.
type Snapshot struct {
	Location      Location      `json:"location"`
	Temperature   Temperature   `json:"temperature"`
	FeelsLike     *Temperature  `json:"feelsLike,omitempty"`
	Condition     string        `json:"condition"`
	ConditionCode ConditionCode `json:"conditionCode"`
	Humidity      int           `json:"humidity"`
	Wind          Wind          `json:"wind"`
	FetchedAt     time.Time     `json:"fetchedAt"`
}

// DayEntry is one day of a forecast or of past weather.
type DayEntry struct {
	Date          string        `json:"date" validate:"required"`
	Max           Temperature   `json:"max"`
	Min           Temperature   `json:"min"`
	Condition     string        `json:"condition"`
	ConditionCode ConditionCode `json:"conditionCode" validate:"condition"`
}

// ForecastEntry is a day of forecast weather.
type ForecastEntry = DayEntry

// HistoryEntry is a day of past weather.
type HistoryEntry = DayEntry
