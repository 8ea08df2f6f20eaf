// Package geo provides the device-coordinates boundary used by the geolocation flow.
package geo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrPermissionDenied means the user (or operator) refused location access.
	ErrPermissionDenied = errors.New("geolocation permission denied")
	// ErrUnavailable means the capability is unsupported or could not produce a position.
	ErrUnavailable = errors.New("geolocation unavailable")
)

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Query encodes the position as a "lat,lon" location query.
func (c Coordinates) Query() string {
	return strconv.FormatFloat(c.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', 4, 64)
}

// Locator resolves the current position.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Static always returns the configured position.
type Static Coordinates

// Locate implements Locator.
func (s Static) Locate(context.Context) (Coordinates, error) { return Coordinates(s), nil }

// Denied always refuses, as a browser does after the user blocks location access.
type Denied struct{}

// Locate implements Locator.
func (Denied) Locate(context.Context) (Coordinates, error) { return Coordinates{}, ErrPermissionDenied }

// Unavailable models a platform without the capability.
type Unavailable struct{}

// Locate implements Locator.
func (Unavailable) Locate(context.Context) (Coordinates, error) { return Coordinates{}, ErrUnavailable }

const ipLookupTimeout = 5 * time.Second

// IPLocator approximates the position from the public IP using an ip-api.com style
// JSON endpoint.
type IPLocator struct {
	client *resty.Client
	url    string
}

// NewIPLocator constructs an IPLocator. httpClient may be nil.
func NewIPLocator(url string, httpClient *http.Client) *IPLocator {
	var rc *resty.Client
	if httpClient != nil {
		rc = resty.NewWithClient(httpClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(ipLookupTimeout).SetRetryCount(0)
	return &IPLocator{client: rc, url: url}
}

type ipLookupResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// Locate implements Locator.
func (l *IPLocator) Locate(ctx context.Context) (Coordinates, error) {
	var out ipLookupResponse
	resp, err := l.client.R().SetContext(ctx).SetResult(&out).Get(l.url)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: ip lookup: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode() == http.StatusForbidden || strings.EqualFold(out.Status, "denied"):
		return Coordinates{}, ErrPermissionDenied
	case resp.IsError():
		return Coordinates{}, fmt.Errorf("%w: ip lookup returned status %d", ErrUnavailable, resp.StatusCode())
	case strings.EqualFold(out.Status, "fail"):
		return Coordinates{}, fmt.Errorf("%w: ip lookup failed: %s", ErrUnavailable, out.Message)
	case out.Lat == nil || out.Lon == nil:
		return Coordinates{}, fmt.Errorf("%w: ip lookup returned no position", ErrUnavailable)
	}

	return Coordinates{Latitude: *out.Lat, Longitude: *out.Lon}, nil
}

// Options selects and configures a Locator.
type Options struct {
	Mode       string // ip, static, denied, off
	Latitude   float64
	Longitude  float64
	URL        string
	HTTPClient *http.Client
}

// New returns the Locator for opts.Mode.
func New(opts Options) (Locator, error) {
	switch strings.ToLower(opts.Mode) {
	case "ip":
		if opts.URL == "" {
			return nil, errors.New("ip geolocation requires a lookup URL")
		}
		return NewIPLocator(opts.URL, opts.HTTPClient), nil
	case "static":
		return Static{Latitude: opts.Latitude, Longitude: opts.Longitude}, nil
	case "denied":
		return Denied{}, nil
	case "off", "":
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown geolocation mode %q", opts.Mode)
	}
}
