// Package panels serves the forecast and past-weather panels. Results are memoized
// per location, kind and day count, and never touch the orchestrator's state.
package panels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/neexbeast/skycast/internal/weather"
)

// DaysFetcher is satisfied by *weather.Client.
type DaysFetcher interface {
	FetchForecast(ctx context.Context, query string, days int) ([]weather.ForecastEntry, error)
	FetchHistory(ctx context.Context, query string, days int) ([]weather.HistoryEntry, error)
}

// Kind names a panel.
type Kind string

const (
	KindForecast Kind = "forecast"
	KindHistory  Kind = "history"
)

const (
	defaultTTL     = 10 * time.Minute
	defaultTimeout = 30 * time.Second
)

// Service memoizes panel queries. Concurrent requests for the same key share one fetch.
type Service struct {
	fetcher DaysFetcher
	memo    *gocache.Cache
	flight  singleflight.Group
	timeout time.Duration
	log     *slog.Logger
}

// New constructs a Service whose entries live for ttl. A fetch is abandoned after
// timeout, independent of the callers waiting on it.
func New(fetcher DaysFetcher, ttl, timeout time.Duration, log *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		fetcher: fetcher,
		memo:    gocache.New(ttl, 2*ttl),
		timeout: timeout,
		log:     log,
	}
}

func memoKey(kind Kind, loc weather.Location, days int) string {
	return fmt.Sprintf("%s|%s|%d", kind, loc.Key(), days)
}

// Forecast returns the next days of forecast for loc. query is the location query
// that resolved loc.
func (s *Service) Forecast(ctx context.Context, loc weather.Location, query string, days int) ([]weather.ForecastEntry, error) {
	return s.get(ctx, KindForecast, loc, query, days)
}

// History returns the past days of weather for loc.
func (s *Service) History(ctx context.Context, loc weather.Location, query string, days int) ([]weather.HistoryEntry, error) {
	return s.get(ctx, KindHistory, loc, query, days)
}

// fetchPanic carries a panic out of a shared fetch so that each waiter re-raises it.
type fetchPanic struct {
	value any
}

func (p *fetchPanic) Error() string { return fmt.Sprintf("panel fetch panicked: %v", p.value) }

func (s *Service) get(ctx context.Context, kind Kind, loc weather.Location, query string, days int) ([]weather.DayEntry, error) {
	key := memoKey(kind, loc, days)
	if v, ok := s.memo.Get(key); ok {
		return v.([]weather.DayEntry), nil
	}

	// The shared fetch outlives any single caller; each caller only waits on its own ctx.
	ch := s.flight.DoChan(key, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &fetchPanic{value: r}
			}
		}()

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()

		var entries []weather.DayEntry
		switch kind {
		case KindForecast:
			entries, err = s.fetcher.FetchForecast(fetchCtx, query, days)
		case KindHistory:
			entries, err = s.fetcher.FetchHistory(fetchCtx, query, days)
		default:
			return nil, fmt.Errorf("unknown panel kind %q", kind)
		}
		if err != nil {
			return nil, err
		}
		s.memo.SetDefault(key, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		var fp *fetchPanic
		if errors.As(res.Err, &fp) {
			panic(fp.value)
		}
		if res.Err != nil {
			s.log.Warn("panel fetch failed", "panel", string(kind), "location", loc.String(), "days", days, "err", res.Err)
			return nil, res.Err
		}
		if res.Shared {
			s.log.Debug("panel fetch shared", "panel", string(kind), "location", loc.String())
		}
		return res.Val.([]weather.DayEntry), nil
	}
}

// Overview carries both panels. A failed panel leaves its entries nil and sets its error.
type Overview struct {
	Forecast    []weather.ForecastEntry
	History     []weather.HistoryEntry
	ForecastErr error
	HistoryErr  error
}

// Overview fetches both panels in parallel. Panel failures are non-fatal;
// an error is returned only if a fetch panics.
func (s *Service) Overview(ctx context.Context, loc weather.Location, query string, days int) (*Overview, error) {
	g, gCtx := errgroup.WithContext(ctx)
	var out Overview

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("forecast panel panicked", "recover", r)
				err = fmt.Errorf("forecast panel panicked: %v", r)
			}
		}()
		out.Forecast, out.ForecastErr = s.Forecast(gCtx, loc, query, days)
		return nil
	})

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("history panel panicked", "recover", r)
				err = fmt.Errorf("history panel panicked: %v", r)
			}
		}()
		out.History, out.HistoryErr = s.History(gCtx, loc, query, days)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading panels for %s: %w", loc.String(), err)
	}
	return &out, nil
}

// Flush drops every memoized panel.
func (s *Service) Flush() {
	s.memo.Flush()
}
