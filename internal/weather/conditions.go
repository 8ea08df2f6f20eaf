package weather

// ConditionCode is a normalized lowercase weather condition token.
type ConditionCode string

// Condition codes the model is allowed to return.
const (
	CodeSunny        ConditionCode = "sunny"
	CodeClear        ConditionCode = "clear"
	CodePartlyCloudy ConditionCode = "partly_cloudy"
	CodeCloudy       ConditionCode = "cloudy"
	CodeOvercast     ConditionCode = "overcast"
	CodeMist         ConditionCode = "mist"
	CodeFog          ConditionCode = "fog"
	CodeDrizzle      ConditionCode = "drizzle"
	CodeRain         ConditionCode = "rain"
	CodeHeavyRain    ConditionCode = "heavy_rain"
	CodeThunderstorm ConditionCode = "thunderstorm"
	CodeSnow         ConditionCode = "snow"
	CodeSleet        ConditionCode = "sleet"
	CodeHail         ConditionCode = "hail"
	CodeWindy        ConditionCode = "windy"
)

// conditionCodes lists the vocabulary in the order it is presented to the model.
var conditionCodes = []ConditionCode{
	CodeSunny, CodeClear, CodePartlyCloudy, CodeCloudy, CodeOvercast,
	CodeMist, CodeFog, CodeDrizzle, CodeRain, CodeHeavyRain,
	CodeThunderstorm, CodeSnow, CodeSleet, CodeHail, CodeWindy,
}

// ConditionCodes returns a copy of the condition-code vocabulary.
func ConditionCodes() []ConditionCode {
	out := make([]ConditionCode, len(conditionCodes))
	copy(out, conditionCodes)
	return out
}

// Valid reports whether c belongs to the vocabulary.
func (c ConditionCode) Valid() bool {
	for _, v := range conditionCodes {
		if v == c {
			return true
		}
	}
	return false
}

func conditionCodeStrings() []string {
	out := make([]string, len(conditionCodes))
	for i, c := range conditionCodes {
		out[i] = string(c)
	}
	return out
}
