// Package view turns orchestrator state and panel data into the view-models served
// to clients. Every function here is pure.
package view

import (
	"fmt"
	"math"
	"time"

	"github.com/neexbeast/skycast/internal/app"
	"github.com/neexbeast/skycast/internal/panels"
	"github.com/neexbeast/skycast/internal/prefs"
	"github.com/neexbeast/skycast/internal/weather"
)

// AppName is shown on the about page.
const AppName = "Skycast"

// Banner actions.
const (
	ActionDismiss     = "dismiss"
	ActionGrantAccess = "grant_access"
)

// Banner is the dismissible error strip.
type Banner struct {
	Kind    app.ErrorKind `json:"kind"`
	Message string        `json:"message"`
	Action  string        `json:"action"`
}

// Current is the formatted current-conditions card.
type Current struct {
	Location      string                `json:"location"`
	Condition     string                `json:"condition"`
	ConditionCode weather.ConditionCode `json:"conditionCode"`
	Icon          string                `json:"icon"`
	Temperature   string                `json:"temperature"`
	FeelsLike     string                `json:"feelsLike,omitempty"`
	Humidity      string                `json:"humidity"`
	Wind          string                `json:"wind"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// Home is the main screen.
type Home struct {
	Theme          prefs.Theme     `json:"theme"`
	Unit           weather.Unit    `json:"unit"`
	IconSet        weather.IconSet `json:"iconSet"`
	Loading        bool            `json:"loading"`
	Refreshing     bool            `json:"refreshing"`
	Banner         *Banner         `json:"banner"`
	Current        *Current        `json:"current"`
	RecentSearches []string        `json:"recentSearches"`
	Version        uint64          `json:"version"`
}

// NewBanner maps an orchestrator error to a banner; nil yields nil.
func NewBanner(e *app.Error) *Banner {
	if e == nil {
		return nil
	}
	b := &Banner{Kind: e.Kind, Message: e.Message, Action: ActionDismiss}
	if e.Kind == app.KindGeolocationDenied {
		b.Action = ActionGrantAccess
	}
	return b
}

// NewCurrent formats a snapshot in the preferred unit and icon set. nil yields nil.
func NewCurrent(s *weather.Snapshot, p prefs.Preferences) *Current {
	if s == nil {
		return nil
	}
	c := &Current{
		Location:      s.Location.String(),
		Condition:     s.Condition,
		ConditionCode: s.ConditionCode,
		Icon:          weather.Icon(s.ConditionCode, p.IconSet),
		Temperature:   s.Temperature.Format(p.Unit),
		Humidity:      fmt.Sprintf("%d%%", s.Humidity),
		Wind:          s.Wind.Format(p.Unit),
		UpdatedAt:     s.FetchedAt,
	}
	if s.FeelsLike != nil {
		c.FeelsLike = s.FeelsLike.Format(p.Unit)
	}
	return c
}

// NewHome composes the main screen.
func NewHome(s app.State) Home {
	history := s.History
	if history == nil {
		history = []string{}
	}
	return Home{
		Theme:          s.Preferences.Theme,
		Unit:           s.Preferences.Unit,
		IconSet:        s.Preferences.IconSet,
		Loading:        s.Loading,
		Refreshing:     s.Refreshing,
		Banner:         NewBanner(s.Error),
		Current:        NewCurrent(s.Snapshot, s.Preferences),
		RecentSearches: history,
		Version:        s.Version,
	}
}

// DayRow is one formatted row of a forecast or history table.
type DayRow struct {
	Date          string                `json:"date"`
	High          string                `json:"high"`
	Low           string                `json:"low"`
	Condition     string                `json:"condition"`
	ConditionCode weather.ConditionCode `json:"conditionCode"`
	Icon          string                `json:"icon"`
}

// Chart holds the series for a temperature chart, in the preferred unit.
type Chart struct {
	Unit   weather.Unit `json:"unit"`
	Labels []string     `json:"labels"`
	Highs  []float64    `json:"highs"`
	Lows   []float64    `json:"lows"`
}

// Days is the forecast or history page.
type Days struct {
	Kind     panels.Kind `json:"kind"`
	Location string      `json:"location"`
	Days     int         `json:"days"`
	Theme    prefs.Theme `json:"theme"`
	// Loading is set while the primary location is being replaced.
	Loading bool     `json:"loading"`
	Rows    []DayRow `json:"rows"`
	Chart   Chart    `json:"chart"`
	Error   string   `json:"error,omitempty"`
}

// NewDays formats panel entries.
func NewDays(kind panels.Kind, loc weather.Location, days int, entries []weather.DayEntry, p prefs.Preferences) Days {
	d := Days{
		Kind:     kind,
		Location: loc.String(),
		Days:     days,
		Theme:    p.Theme,
		Rows:     make([]DayRow, 0, len(entries)),
		Chart: Chart{
			Unit:   p.Unit,
			Labels: make([]string, 0, len(entries)),
			Highs:  make([]float64, 0, len(entries)),
			Lows:   make([]float64, 0, len(entries)),
		},
	}
	for _, e := range entries {
		d.Rows = append(d.Rows, DayRow{
			Date:          e.Date,
			High:          e.Max.Format(p.Unit),
			Low:           e.Min.Format(p.Unit),
			Condition:     e.Condition,
			ConditionCode: e.ConditionCode,
			Icon:          weather.Icon(e.ConditionCode, p.IconSet),
		})
		d.Chart.Labels = append(d.Chart.Labels, e.Date)
		d.Chart.Highs = append(d.Chart.Highs, round1(e.Max.In(p.Unit)))
		d.Chart.Lows = append(d.Chart.Lows, round1(e.Min.In(p.Unit)))
	}
	return d
}

// NewPendingDays is returned when the requested location is being loaded.
func NewPendingDays(kind panels.Kind, query string, days int, p prefs.Preferences) Days {
	d := NewDays(kind, weather.Location{Name: query}, days, nil, p)
	d.Loading = true
	return d
}

// NewFailedDays carries a panel failure as a user-safe message.
func NewFailedDays(kind panels.Kind, loc weather.Location, days int, err error, p prefs.Preferences) Days {
	d := NewDays(kind, loc, days, nil, p)
	d.Error = weather.AsQueryError(err).Message
	return d
}

// Overview is both panels side by side.
type Overview struct {
	Forecast Days `json:"forecast"`
	History  Days `json:"history"`
}

// NewOverview formats a panels.Overview.
func NewOverview(loc weather.Location, days int, o *panels.Overview, p prefs.Preferences) Overview {
	out := Overview{
		Forecast: NewDays(panels.KindForecast, loc, days, o.Forecast, p),
		History:  NewDays(panels.KindHistory, loc, days, o.History, p),
	}
	if o.ForecastErr != nil {
		out.Forecast = NewFailedDays(panels.KindForecast, loc, days, o.ForecastErr, p)
	}
	if o.HistoryErr != nil {
		out.History = NewFailedDays(panels.KindHistory, loc, days, o.HistoryErr, p)
	}
	return out
}

// About describes the running build.
type About struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Model      string   `json:"model"`
	Conditions []string `json:"conditions"`
}

// NewAbout composes the about page.
func NewAbout(version, model string) About {
	codes := weather.ConditionCodes()
	conditions := make([]string, len(codes))
	for i, c := range codes {
		conditions[i] = string(c)
	}
	return About{Name: AppName, Version: version, Model: model, Conditions: conditions}
}

// Option is one choice of a settings control.
type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Settings lists the preference controls.
type Settings struct {
	Theme    prefs.Theme `json:"theme"`
	Units    []Option    `json:"units"`
	IconSets []Option    `json:"iconSets"`
	Themes   []Option    `json:"themes"`
}

var optionLabels = map[string]string{
	string(weather.Celsius):        "Celsius (°C)",
	string(weather.Fahrenheit):     "Fahrenheit (°F)",
	string(weather.IconSetEmojis):  "Emojis",
	string(weather.IconSetClassic): "Classic",
	string(prefs.ThemeLight):       "Light",
	string(prefs.ThemeDark):        "Dark",
	string(prefs.ThemeOcean):       "Ocean",
}

func options[T ~string](values []T, selected T) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: string(v), Label: optionLabels[string(v)], Selected: v == selected}
	}
	return out
}

// NewSettings composes the settings page.
func NewSettings(p prefs.Preferences) Settings {
	return Settings{
		Theme:    p.Theme,
		Units:    options(prefs.Units, p.Unit),
		IconSets: options(prefs.IconSets, p.IconSet),
		Themes:   options(prefs.Themes, p.Theme),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
