package geo_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/skycast/internal/geo"
)

const lookupURL = "http://geo.test/json"

func newIPLocator(t *testing.T) (*geo.IPLocator, *httpmock.MockTransport) {
	t.Helper()
	mock := httpmock.NewMockTransport()
	return geo.NewIPLocator(lookupURL, &http.Client{Transport: mock}), mock
}

func TestCoordinates_Query(t *testing.T) {
	c := geo.Coordinates{Latitude: 48.856613, Longitude: -2.352222}
	assert.Equal(t, "48.8566,-2.3522", c.Query())
}

func TestIPLocator_Success(t *testing.T) {
	l, mock := newIPLocator(t)
	mock.RegisterResponder(http.MethodGet, lookupURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"status": "success", "lat": 35.6895, "lon": 139.6917}))

	c, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 35.6895, c.Latitude, 1e-9)
	assert.InDelta(t, 139.6917, c.Longitude, 1e-9)
}

func TestIPLocator_Forbidden(t *testing.T) {
	l, mock := newIPLocator(t)
	mock.RegisterResponder(http.MethodGet, lookupURL, httpmock.NewStringResponder(http.StatusForbidden, "nope"))

	_, err := l.Locate(context.Background())
	require.ErrorIs(t, err, geo.ErrPermissionDenied)
}

func TestIPLocator_FailStatus(t *testing.T) {
	l, mock := newIPLocator(t)
	mock.RegisterResponder(http.MethodGet, lookupURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"status": "fail", "message": "private range"}))

	_, err := l.Locate(context.Background())
	require.ErrorIs(t, err, geo.ErrUnavailable)
	assert.Contains(t, err.Error(), "private range")
}

func TestIPLocator_MissingPosition(t *testing.T) {
	l, mock := newIPLocator(t)
	mock.RegisterResponder(http.MethodGet, lookupURL,
		httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"status": "success"}))

	_, err := l.Locate(context.Background())
	require.ErrorIs(t, err, geo.ErrUnavailable)
}

func TestIPLocator_TransportError(t *testing.T) {
	l, _ := newIPLocator(t) // no responder registered: the mock transport errors

	_, err := l.Locate(context.Background())
	require.ErrorIs(t, err, geo.ErrUnavailable)
}

func TestNew_Modes(t *testing.T) {
	tests := []struct {
		mode    string
		wantErr error
	}{
		{"denied", geo.ErrPermissionDenied},
		{"off", geo.ErrUnavailable},
		{"", geo.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			l, err := geo.New(geo.Options{Mode: tt.mode})
			require.NoError(t, err)
			_, err = l.Locate(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	l, err := geo.New(geo.Options{Mode: "static", Latitude: 1.5, Longitude: 2.5})
	require.NoError(t, err)
	c, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, geo.Coordinates{Latitude: 1.5, Longitude: 2.5}, c)

	_, err = geo.New(geo.Options{Mode: "ip"})
	require.Error(t, err, "ip mode needs a URL")

	_, err = geo.New(geo.Options{Mode: "gps"})
	require.Error(t, err)
}
