// Package app holds the session orchestrator: the single owner of current weather,
// loading flags, the error banner, preferences and search history.
package app

import (
	"errors"

	"github.com/neexbeast/skycast/internal/prefs"
	"github.com/neexbeast/skycast/internal/weather"
)

var (
	// ErrEmptyQuery is returned for a search whose trimmed query is empty.
	ErrEmptyQuery = errors.New("location query is empty")
	// ErrClosed is returned by every intent after Close.
	ErrClosed = errors.New("orchestrator closed")
	// ErrNotStarted is returned by intents issued before Start.
	ErrNotStarted = errors.New("orchestrator not started")
)

// ErrorKind classifies the banner shown to the user.
type ErrorKind string

const (
	KindLocationNotFound       ErrorKind = "location_not_found"
	KindTransport              ErrorKind = "transport"
	KindGeolocationDenied      ErrorKind = "geolocation_denied"
	KindGeolocationUnavailable ErrorKind = "geolocation_unavailable"
)

// User-visible geolocation messages.
const (
	GeolocationDeniedMessage      = "Location access was denied. Grant location access to see the weather where you are."
	GeolocationUnavailableMessage = "Geolocation is not supported or is currently unavailable."
)

// Error is a dismissible banner.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// State is an immutable copy of the orchestrator's committed state.
type State struct {
	Snapshot *weather.Snapshot `json:"snapshot"`
	// Query is the location query that produced Snapshot; refreshes re-issue it.
	Query string `json:"query,omitempty"`
	// Pending is the query being resolved while Loading is set.
	Pending              string            `json:"pending,omitempty"`
	Loading              bool              `json:"loading"`
	Refreshing           bool              `json:"refreshing"`
	Error                *Error            `json:"error"`
	Preferences          prefs.Preferences `json:"preferences"`
	History              []string          `json:"history"`
	GeolocationRequested bool              `json:"geolocationRequested"`
	// Version increases by one on every commit.
	Version uint64 `json:"version"`
}

// clone deep-copies the parts of s that the loop may mutate later.
func (s State) clone() State {
	out := s
	out.History = append(make([]string, 0, len(s.History)), s.History...)
	if s.Error != nil {
		e := *s.Error
		out.Error = &e
	}
	return out
}

func errorFromQuery(err error) *Error {
	qe := weather.AsQueryError(err)
	if qe.Kind == weather.KindLocationNotFound {
		return &Error{Kind: KindLocationNotFound, Message: qe.Message}
	}
	return &Error{Kind: KindTransport, Message: weather.GenericFailureMessage}
}
