package api

import (
	"context"

	"github.com/neexbeast/skycast/internal/app"
	"github.com/neexbeast/skycast/internal/panels"
	"github.com/neexbeast/skycast/internal/weather"
)

// Orchestrator defines the session operations needed by handlers.
type Orchestrator interface {
	State() app.State
	Subscribe(fn func(app.State)) (func(), error)
	Search(query string) error
	SelectHistory(query string) error
	ChangeLocation(query string) error
	Refresh() error
	Geolocate() error
	DismissError() error
	SetPreferences(ctx context.Context, updates ...app.PreferenceUpdate) error
}

// Panels defines the forecast and history queries needed by handlers.
type Panels interface {
	Forecast(ctx context.Context, loc weather.Location, query string, days int) ([]weather.ForecastEntry, error)
	History(ctx context.Context, loc weather.Location, query string, days int) ([]weather.HistoryEntry, error)
	Overview(ctx context.Context, loc weather.Location, query string, days int) (*panels.Overview, error)
}

// Pinger reports backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
