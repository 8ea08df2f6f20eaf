package panels_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/skycast/internal/panels"
	"github.com/neexbeast/skycast/internal/weather"
)

type mockDays struct {
	forecastFn func(ctx context.Context, query string, days int) ([]weather.ForecastEntry, error)
	historyFn  func(ctx context.Context, query string, days int) ([]weather.HistoryEntry, error)
}

func (m *mockDays) FetchForecast(ctx context.Context, query string, days int) ([]weather.ForecastEntry, error) {
	return m.forecastFn(ctx, query, days)
}

func (m *mockDays) FetchHistory(ctx context.Context, query string, days int) ([]weather.HistoryEntry, error) {
	return m.historyFn(ctx, query, days)
}

func entries(n int, code weather.ConditionCode) []weather.DayEntry {
	out := make([]weather.DayEntry, n)
	for i := range out {
		out[i] = weather.DayEntry{Date: time.Date(2026, 10, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), ConditionCode: code}
	}
	return out
}

var paris = weather.Location{Name: "Paris", Country: "France"}

func newService(m *mockDays, ttl time.Duration) *panels.Service {
	return panels.New(m, ttl, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestForecast_MemoizedPerLocationAndDays(t *testing.T) {
	var calls atomic.Int32
	m := &mockDays{forecastFn: func(_ context.Context, query string, days int) ([]weather.ForecastEntry, error) {
		calls.Add(1)
		assert.Equal(t, "paris", query)
		return entries(days, weather.CodeRain), nil
	}}
	s := newService(m, time.Minute)
	ctx := context.Background()

	got, err := s.Forecast(ctx, paris, "paris", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Same location under a different spelling hits the memo.
	_, err = s.Forecast(ctx, weather.Location{Name: " PARIS", Country: "france"}, "paris", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	_, err = s.Forecast(ctx, paris, "paris", 7)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestForecastAndHistory_SeparateEntries(t *testing.T) {
	m := &mockDays{
		forecastFn: func(_ context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
			return entries(days, weather.CodeSunny), nil
		},
		historyFn: func(_ context.Context, _ string, days int) ([]weather.HistoryEntry, error) {
			return entries(days, weather.CodeSnow), nil
		},
	}
	s := newService(m, time.Minute)

	f, err := s.Forecast(context.Background(), paris, "Paris", 2)
	require.NoError(t, err)
	h, err := s.History(context.Background(), paris, "Paris", 2)
	require.NoError(t, err)

	assert.Equal(t, weather.CodeSunny, f[0].ConditionCode)
	assert.Equal(t, weather.CodeSnow, h[0].ConditionCode)
}

func TestForecast_ErrorsAreNotMemoized(t *testing.T) {
	var calls atomic.Int32
	m := &mockDays{forecastFn: func(_ context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("model unavailable")
		}
		return entries(days, weather.CodeCloudy), nil
	}}
	s := newService(m, time.Minute)

	_, err := s.Forecast(context.Background(), paris, "Paris", 5)
	require.Error(t, err)

	got, err := s.Forecast(context.Background(), paris, "Paris", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestForecast_EntriesExpire(t *testing.T) {
	var calls atomic.Int32
	m := &mockDays{forecastFn: func(_ context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
		calls.Add(1)
		return entries(days, weather.CodeFog), nil
	}}
	s := newService(m, 20*time.Millisecond)

	_, err := s.Forecast(context.Background(), paris, "Paris", 1)
	require.NoError(t, err)
	time.Sleep(40 * time.Millisecond)
	_, err = s.Forecast(context.Background(), paris, "Paris", 1)
	require.NoError(t, err)

	assert.EqualValues(t, 2, calls.Load())
}

func TestForecast_ConcurrentRequestsShareOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	m := &mockDays{forecastFn: func(_ context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
		calls.Add(1)
		<-release
		return entries(days, weather.CodeWindy), nil
	}}
	s := newService(m, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Forecast(context.Background(), paris, "Paris", 4)
			assert.NoError(t, err)
			assert.Len(t, got, 4)
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
}

func TestForecast_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	m := &mockDays{forecastFn: func(ctx context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
		calls.Add(1)
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return entries(days, weather.CodeFog), nil
	}}
	s := newService(m, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := s.Forecast(ctxA, paris, "Paris", 2)
		errA <- err
	}()
	<-started

	type result struct {
		got []weather.ForecastEntry
		err error
	}
	resB := make(chan result, 1)
	go func() {
		got, err := s.Forecast(context.Background(), paris, "Paris", 2)
		resB <- result{got, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Len(t, r.got, 2)
	case <-time.After(time.Second):
		t.Fatal("second caller did not return")
	}
	assert.EqualValues(t, 1, calls.Load())

	// The shared result was memoized even though its first caller left.
	_, err := s.Forecast(context.Background(), paris, "Paris", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestFlush(t *testing.T) {
	var calls atomic.Int32
	m := &mockDays{historyFn: func(_ context.Context, _ string, days int) ([]weather.HistoryEntry, error) {
		calls.Add(1)
		return entries(days, weather.CodeClear), nil
	}}
	s := newService(m, time.Minute)

	_, _ = s.History(context.Background(), paris, "Paris", 3)
	s.Flush()
	_, _ = s.History(context.Background(), paris, "Paris", 3)

	assert.EqualValues(t, 2, calls.Load())
}

func TestOverview_PartialFailureIsNonFatal(t *testing.T) {
	m := &mockDays{
		forecastFn: func(_ context.Context, _ string, days int) ([]weather.ForecastEntry, error) {
			return entries(days, weather.CodeDrizzle), nil
		},
		historyFn: func(context.Context, string, int) ([]weather.HistoryEntry, error) {
			return nil, errors.New("history unavailable")
		},
	}
	s := newService(m, time.Minute)

	o, err := s.Overview(context.Background(), paris, "Paris", 3)
	require.NoError(t, err)
	assert.Len(t, o.Forecast, 3)
	assert.NoError(t, o.ForecastErr)
	assert.Nil(t, o.History)
	assert.EqualError(t, o.HistoryErr, "history unavailable")
}

func TestOverview_PanicIsReported(t *testing.T) {
	m := &mockDays{
		forecastFn: func(context.Context, string, int) ([]weather.ForecastEntry, error) {
			panic("boom")
		},
		historyFn: func(_ context.Context, _ string, days int) ([]weather.HistoryEntry, error) {
			return entries(days, weather.CodeHail), nil
		},
	}
	s := newService(m, time.Minute)

	_, err := s.Overview(context.Background(), paris, "Paris", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forecast panel panicked")
}
