package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/skycast/internal/app"
	"github.com/neexbeast/skycast/internal/panels"
	"github.com/neexbeast/skycast/internal/prefs"
	"github.com/neexbeast/skycast/internal/view"
	"github.com/neexbeast/skycast/internal/weather"
)

// DefaultPanelDays is used when a panel request has no days parameter.
const DefaultPanelDays = 7

const maxBodyBytes = 1 << 16

// BuildInfo is reported by the about view.
type BuildInfo struct {
	Version string
	Model   string
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	orch     Orchestrator
	panels   Panels
	info     BuildInfo
	validate *validator.Validate
	log      *slog.Logger

	heartbeat time.Duration
	closing   chan struct{}
	closeOnce sync.Once
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(orch Orchestrator, p Panels, info BuildInfo, log *slog.Logger) *Handlers {
	return &Handlers{
		orch:      orch,
		panels:    p,
		info:      info,
		validate:  validator.New(),
		log:       log,
		heartbeat: 25 * time.Second,
		closing:   make(chan struct{}),
	}
}

// Close ends every open event stream. Register it with http.Server.RegisterOnShutdown.
func (h *Handlers) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeIntentError maps orchestrator errors to status codes.
func (h *Handlers) writeIntentError(w http.ResponseWriter, err error) {
	var invalid *app.InvalidPreferenceError
	switch {
	case errors.Is(err, app.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, invalid.Error())
	case errors.Is(err, app.ErrClosed), errors.Is(err, app.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.log.Error("intent failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decode reads a JSON body into dst and validates it.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return fe.Field() + " is required"
	}
	return "invalid " + fe.Field()
}

// GetState handles GET /api/v1/state.
func (h *Handlers) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.State())
}

// HomeView handles GET /api/v1/views/home.
func (h *Handlers) HomeView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, view.NewHome(h.orch.State()))
}

// AboutView handles GET /api/v1/views/about.
func (h *Handlers) AboutView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, view.NewAbout(h.info.Version, h.info.Model))
}

// SettingsView handles GET /api/v1/views/settings.
func (h *Handlers) SettingsView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, view.NewSettings(h.orch.State().Preferences))
}

// ForecastView handles GET /api/v1/views/forecast?days=&location=.
func (h *Handlers) ForecastView(w http.ResponseWriter, r *http.Request) {
	h.daysView(w, r, panels.KindForecast)
}

// HistoryView handles GET /api/v1/views/history?days=&location=.
func (h *Handlers) HistoryView(w http.ResponseWriter, r *http.Request) {
	h.daysView(w, r, panels.KindHistory)
}

// panelTarget resolves the location a panel request is about. ok is false when
// the response has already been written.
func (h *Handlers) panelTarget(w http.ResponseWriter, r *http.Request, kind panels.Kind) (st app.State, days int, ok bool) {
	days, err := parseDays(r.URL.Query().Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return st, 0, false
	}

	st = h.orch.State()
	location := strings.TrimSpace(r.URL.Query().Get("location"))

	if location != "" && !matchesCurrent(st, location) {
		if st.Loading && strings.EqualFold(location, st.Pending) {
			writeJSON(w, http.StatusAccepted, view.NewPendingDays(kind, location, days, st.Preferences))
			return st, 0, false
		}
		if err := h.orch.ChangeLocation(location); err != nil {
			h.writeIntentError(w, err)
			return st, 0, false
		}
		writeJSON(w, http.StatusAccepted, view.NewPendingDays(kind, location, days, st.Preferences))
		return st, 0, false
	}

	if st.Snapshot == nil {
		if st.Loading {
			writeJSON(w, http.StatusAccepted, view.NewPendingDays(kind, st.Pending, days, st.Preferences))
			return st, 0, false
		}
		writeError(w, http.StatusNotFound, "no location selected")
		return st, 0, false
	}
	return st, days, true
}

func (h *Handlers) daysView(w http.ResponseWriter, r *http.Request, kind panels.Kind) {
	st, days, ok := h.panelTarget(w, r, kind)
	if !ok {
		return
	}

	loc := st.Snapshot.Location
	fetch := h.panels.Forecast
	if kind == panels.KindHistory {
		fetch = h.panels.History
	}

	entries, err := fetch(r.Context(), loc, st.Query, days)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, view.NewFailedDays(kind, loc, days, err, st.Preferences))
		return
	}
	writeJSON(w, http.StatusOK, view.NewDays(kind, loc, days, entries, st.Preferences))
}

// OverviewView handles GET /api/v1/views/overview?days=&location=.
func (h *Handlers) OverviewView(w http.ResponseWriter, r *http.Request) {
	st, days, ok := h.panelTarget(w, r, panels.KindForecast)
	if !ok {
		return
	}

	loc := st.Snapshot.Location
	o, err := h.panels.Overview(r.Context(), loc, st.Query, days)
	if err != nil {
		h.log.Error("overview failed", "location", loc.String(), "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, view.NewOverview(loc, days, o, st.Preferences))
}

func parseDays(raw string) (int, error) {
	if raw == "" {
		return DefaultPanelDays, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > weather.MaxDays {
		return 0, errors.New("days must be an integer between 1 and " + strconv.Itoa(weather.MaxDays))
	}
	return n, nil
}

// matchesCurrent reports whether location names the query or place already shown.
func matchesCurrent(st app.State, location string) bool {
	if st.Snapshot == nil {
		return false
	}
	l := st.Snapshot.Location
	for _, candidate := range []string{st.Query, l.Name, l.String()} {
		if strings.EqualFold(location, strings.TrimSpace(candidate)) {
			return true
		}
	}
	return false
}

type queryRequest struct {
	Query string `json:"query" validate:"required"`
}

// Search handles POST /api/v1/search.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.accepted(w, h.orch.Search(req.Query))
}

// SelectHistory handles POST /api/v1/history/select.
func (h *Handlers) SelectHistory(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.accepted(w, h.orch.SelectHistory(req.Query))
}

// Refresh handles POST /api/v1/refresh.
func (h *Handlers) Refresh(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, h.orch.Refresh())
}

// Geolocate handles POST /api/v1/geolocate.
func (h *Handlers) Geolocate(w http.ResponseWriter, _ *http.Request) {
	h.accepted(w, h.orch.Geolocate())
}

// accepted answers an asynchronous intent with the state it committed.
func (h *Handlers) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		h.writeIntentError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.orch.State())
}

// DismissError handles DELETE /api/v1/error.
func (h *Handlers) DismissError(w http.ResponseWriter, _ *http.Request) {
	if err := h.orch.DismissError(); err != nil {
		h.writeIntentError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type preferencesRequest struct {
	Unit    *string `json:"unit" validate:"omitempty,oneof=C F"`
	IconSet *string `json:"iconSet" validate:"omitempty,oneof=emojis classic"`
	Theme   *string `json:"theme" validate:"omitempty,oneof=light dark ocean"`
}

// UpdatePreferences handles PUT /api/v1/preferences. The fields present are
// persisted together before the response is written; on failure none are applied.
func (h *Handlers) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !h.decode(w, r, &req) {
		return
	}

	var updates []app.PreferenceUpdate
	for _, f := range []struct {
		key   string
		value *string
	}{
		{prefs.KeyUnit, req.Unit},
		{prefs.KeyIconSet, req.IconSet},
		{prefs.KeyTheme, req.Theme},
	} {
		if f.value != nil {
			updates = append(updates, app.PreferenceUpdate{Key: f.key, Value: *f.value})
		}
	}
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "no preference given")
		return
	}

	if err := h.orch.SetPreferences(r.Context(), updates...); err != nil {
		h.writeIntentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view.NewSettings(h.orch.State().Preferences))
}

// HealthHandlerFunc returns an http.HandlerFunc that checks the preference backend.
func HealthHandlerFunc(backend Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok", "preferences": "ok"}

		if err := backend.Ping(ctx); err != nil {
			log.Error("health check: preference backend ping failed", "err", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["preferences"] = "error"
		}

		writeJSON(w, status, body)
	}
}
