package weather

import (
	"fmt"
	"strings"

	"github.com/neexbeast/skycast/internal/genai"
)

func temperatureSchema(desc string) *genai.Schema {
	return genai.Object(map[string]*genai.Schema{
		"celsius":    genai.Number(desc + " in degrees Celsius"),
		"fahrenheit": genai.Number(desc + " in degrees Fahrenheit"),
	})
}

func locationSchema() *genai.Schema {
	return genai.Object(map[string]*genai.Schema{
		"name":    genai.String("City or place name"),
		"region":  genai.String("State, province or region"),
		"country": genai.String("Country name"),
	})
}

func errorSchema() *genai.Schema {
	return genai.String("Set only when the location cannot be identified; a short user-facing message").AsNullable()
}

func conditionCodeSchema() *genai.Schema {
	return genai.Enum("Normalized condition code", conditionCodeStrings()...)
}

var currentSchema = genai.Object(map[string]*genai.Schema{
	"location":      locationSchema(),
	"temperature":   temperatureSchema("Current air temperature"),
	"feelsLike":     temperatureSchema("Apparent temperature").AsNullable(),
	"condition":     genai.String("Short human-readable condition, e.g. Partly cloudy"),
	"conditionCode": conditionCodeSchema(),
	"humidity":      genai.Integer("Relative humidity percentage between 0 and 100"),
	"wind": genai.Object(map[string]*genai.Schema{
		"kph": genai.Number("Wind speed in kilometres per hour"),
		"mph": genai.Number("Wind speed in miles per hour"),
	}),
	"error": errorSchema(),
}, "feelsLike", "error")

func daysSchema(maxDays int) *genai.Schema {
	day := genai.Object(map[string]*genai.Schema{
		"date":          genai.String("Calendar date as YYYY-MM-DD"),
		"max":           temperatureSchema("Daily maximum temperature"),
		"min":           temperatureSchema("Daily minimum temperature"),
		"condition":     genai.String("Short human-readable condition"),
		"conditionCode": conditionCodeSchema(),
	})
	return genai.Object(map[string]*genai.Schema{
		"location": locationSchema(),
		"days":     genai.ArrayOf(day, 0, maxDays),
		"error":    errorSchema(),
	}, "error")
}

func vocabulary() string {
	return strings.Join(conditionCodeStrings(), ", ")
}

func currentPrompt(query string) string {
	return fmt.Sprintf(`You are a weather service. Report the current weather for the location %q.
The location may be a city name, "city, region", or a "latitude,longitude" pair.
Return JSON only, matching the provided schema:
- location: resolved name, region and country
- temperature and feelsLike in both Celsius and Fahrenheit
- condition: short description; conditionCode: one of %s
- humidity as a whole percentage 0-100
- wind speed in both kph and mph
If the location cannot be identified, set "error" to a short message such as "City not found" and leave the other fields at zero values.`,
		query, vocabulary())
}

func forecastPrompt(query string, days int) string {
	return fmt.Sprintf(`You are a weather service. Give a %d-day daily forecast starting today for the location %q.
Return JSON only, matching the provided schema, with exactly %d entries in "days" ordered by date ascending.
For each day give the date (YYYY-MM-DD), max and min temperatures in both Celsius and Fahrenheit,
a short condition and a conditionCode from: %s.
If the location cannot be identified, set "error" to a short message and return an empty "days" array.`,
		days, query, days, vocabulary())
}

func historyPrompt(query string, days int) string {
	return fmt.Sprintf(`You are a weather service. Give the observed daily weather for the past %d days (excluding today) for the location %q.
Return JSON only, matching the provided schema, with exactly %d entries in "days" ordered from the most recent day backwards.
For each day give the date (YYYY-MM-DD), max and min temperatures in both Celsius and Fahrenheit,
a short condition and a conditionCode from: %s.
If the location cannot be identified, set "error" to a short message and return an empty "days" array.`,
		days, query, days, vocabulary())
}
