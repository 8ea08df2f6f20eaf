package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/skycast/internal/geo"
	"github.com/neexbeast/skycast/internal/metrics"
	"github.com/neexbeast/skycast/internal/prefs"
	"github.com/neexbeast/skycast/internal/weather"
)

// WeatherFetcher resolves a location query to current conditions.
type WeatherFetcher interface {
	FetchCurrent(ctx context.Context, query string) (*weather.Snapshot, error)
}

// PreferenceStore persists preferences and search history.
type PreferenceStore interface {
	Load(ctx context.Context) (prefs.Preferences, []string)
	SavePreference(ctx context.Context, key, value string) error
	SaveHistory(ctx context.Context, history []string) error
}

// Trigger labels what started a fetch, for logs and metrics.
type Trigger string

const (
	TriggerSearch  Trigger = "search"
	TriggerHistory Trigger = "history"
	TriggerPanel   Trigger = "panel"
	TriggerGeo     Trigger = "geolocation"
	TriggerAuto    Trigger = "auto"
	TriggerUser    Trigger = "user"
)

const (
	defaultRefreshInterval = 15 * time.Minute
	defaultQueryTimeout    = 30 * time.Second
	persistTimeout         = 5 * time.Second
)

// Options configures an Orchestrator. Fetcher and Store are required.
type Options struct {
	Fetcher WeatherFetcher
	Store   PreferenceStore
	// Locator defaults to geo.Unavailable.
	Locator         geo.Locator
	Metrics         *metrics.Metrics
	Log             *slog.Logger
	RefreshInterval time.Duration
	QueryTimeout    time.Duration
}

// Orchestrator serializes every state transition on one loop goroutine.
// Intents block until their immediate transition is committed; fetch results
// are applied later, in arrival order, subject to the generation guard.
type Orchestrator struct {
	fetcher      WeatherFetcher
	store        PreferenceStore
	locator      geo.Locator
	m            *metrics.Metrics
	log          *slog.Logger
	queryTimeout time.Duration

	intents  chan func()
	done     chan struct{}
	loopDone chan struct{}
	closing  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	current atomic.Pointer[State]

	// Owned by the loop goroutine.
	st         State
	started    bool
	generation uint64
	autoGeo    bool
	timer      *refreshTimer
	subs       []subscriber
	nextSubID  int
}

type subscriber struct {
	id int
	fn func(State)
}

// New starts the loop. Call Start to load persisted state and Close to release it.
func New(opts Options) *Orchestrator {
	if opts.Locator == nil {
		opts.Locator = geo.Unavailable{}
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaultQueryTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		fetcher:      opts.Fetcher,
		store:        opts.Store,
		locator:      opts.Locator,
		m:            opts.Metrics,
		log:          opts.Log,
		queryTimeout: opts.QueryTimeout,
		intents:      make(chan func()),
		done:         make(chan struct{}),
		loopDone:     make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
		timer:        newRefreshTimer(opts.RefreshInterval),
		st: State{
			Preferences: prefs.Defaults(),
			History:     []string{},
		},
	}
	o.current.Store(ptr(o.st.clone()))

	go o.loop()
	return o
}

func ptr[T any](v T) *T { return &v }

func (o *Orchestrator) loop() {
	defer close(o.loopDone)
	for {
		select {
		case fn := <-o.intents:
			fn()
		case <-o.done:
			return
		}
	}
}

// dispatch runs fn on the loop and waits for it to finish.
func (o *Orchestrator) dispatch(fn func()) error {
	ack := make(chan struct{})
	select {
	case o.intents <- func() { fn(); close(ack) }:
	case <-o.done:
		return ErrClosed
	}
	<-ack
	return nil
}

// post queues fn on the loop without waiting. It is dropped after Close.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.intents <- fn:
	case <-o.done:
	}
}

// commit publishes the loop's state and notifies subscribers in subscription order.
func (o *Orchestrator) commit() {
	o.st.Version++
	s := o.st.clone()
	o.current.Store(&s)
	for _, sub := range o.subs {
		sub.fn(s)
	}
}

// State returns the latest committed state.
func (o *Orchestrator) State() State {
	return *o.current.Load()
}

// Subscribe registers fn to receive the current state immediately and then every
// committed state. fn runs on the loop goroutine and must not block or call back
// into the Orchestrator. The returned func unregisters it.
func (o *Orchestrator) Subscribe(fn func(State)) (func(), error) {
	var id int
	err := o.dispatch(func() {
		o.nextSubID++
		id = o.nextSubID
		o.subs = append(o.subs, subscriber{id: id, fn: fn})
		fn(o.st.clone())
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = o.dispatch(func() {
				for i, s := range o.subs {
					if s.id == id {
						o.subs = append(o.subs[:i], o.subs[i+1:]...)
						return
					}
				}
			})
		})
	}, nil
}

// Start loads persisted preferences and history, then geolocates automatically
// when there is nothing to show yet. Later calls are no-ops.
func (o *Orchestrator) Start(ctx context.Context) error {
	p, history := o.store.Load(ctx)
	return o.dispatch(func() {
		if o.started {
			return
		}
		o.started = true
		o.st.Preferences = p
		o.st.History = prefs.Normalize(history)

		if o.st.Snapshot == nil && len(o.st.History) == 0 && !o.autoGeo {
			o.autoGeo = true
			o.beginGeolocation(TriggerAuto)
		}
		o.commit()
	})
}

// Search replaces the current snapshot with the result for query.
func (o *Orchestrator) Search(query string) error {
	return o.search(query, TriggerSearch)
}

// SelectHistory re-runs a recent search.
func (o *Orchestrator) SelectHistory(query string) error {
	return o.search(query, TriggerHistory)
}

// ChangeLocation is issued by a panel asking for a location other than the current one.
func (o *Orchestrator) ChangeLocation(query string) error {
	return o.search(query, TriggerPanel)
}

func (o *Orchestrator) search(query string, trigger Trigger) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	var err error
	if derr := o.dispatch(func() {
		if !o.started {
			err = ErrNotStarted
			return
		}
		gen := o.beginLoading(query)
		o.fetch(gen, trigger, query, query)
		o.commit()
	}); derr != nil {
		return derr
	}
	return err
}

// beginLoading hides the current snapshot, clears the banner and starts a new generation.
func (o *Orchestrator) beginLoading(query string) uint64 {
	o.generation++
	o.st.Error = nil
	o.st.Snapshot = nil
	o.st.Query = ""
	o.st.Pending = query
	o.st.Loading = true
	o.st.Refreshing = false
	o.timer.disarm()
	return o.generation
}

// fetch resolves query off-loop and posts the outcome. historyTerm is the entry
// recorded on success; an empty term records the resolved location name.
func (o *Orchestrator) fetch(gen uint64, trigger Trigger, query, historyTerm string) {
	o.spawn(func(ctx context.Context, log *slog.Logger) {
		snap, err := o.fetchCurrent(ctx, query)
		o.post(func() { o.applySearch(gen, trigger, query, historyTerm, snap, err, log) })
	}, trigger, query)
}

// spawn runs fn on a tracked goroutine with a per-request logger.
func (o *Orchestrator) spawn(fn func(ctx context.Context, log *slog.Logger), trigger Trigger, query string) {
	log := o.log.With("request_id", uuid.NewString(), "trigger", string(trigger), "generation", o.generation)
	if query != "" {
		log = log.With("query", query)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		fn(o.ctx, log)
	}()
}

func (o *Orchestrator) fetchCurrent(ctx context.Context, query string) (*weather.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, o.queryTimeout)
	defer cancel()
	return o.fetcher.FetchCurrent(ctx, query)
}

func (o *Orchestrator) stale(gen uint64, kind string, log *slog.Logger) bool {
	if gen == o.generation {
		return false
	}
	log.Info("discarding superseded result", "current_generation", o.generation)
	o.m.RecordStale(kind)
	return true
}

func (o *Orchestrator) applySearch(gen uint64, trigger Trigger, query, historyTerm string, snap *weather.Snapshot, err error, log *slog.Logger) {
	if o.stale(gen, "search", log) {
		return
	}

	o.st.Loading = false
	o.st.Pending = ""
	if err != nil {
		o.st.Error = errorFromQuery(err)
		log.Warn("search failed", "err", err)
		o.commit()
		return
	}

	o.st.Snapshot = snap
	o.st.Query = query
	o.st.Error = nil

	if historyTerm == "" {
		historyTerm = snap.Location.Name
	}
	o.st.History = prefs.Push(o.st.History, historyTerm)
	o.persistHistory(log)

	o.armRefresh(log)
	log.Info("weather updated", "location", snap.Location.String())
	o.commit()
}

func (o *Orchestrator) persistHistory(log *slog.Logger) {
	ctx, cancel := context.WithTimeout(o.ctx, persistTimeout)
	defer cancel()
	if err := o.store.SaveHistory(ctx, o.st.History); err != nil {
		log.Error("persisting search history", "err", err)
	}
}

// armRefresh binds the refresh timer to the current snapshot's location.
func (o *Orchestrator) armRefresh(log *slog.Logger) {
	if o.st.Snapshot == nil {
		o.timer.disarm()
		return
	}
	err := o.timer.arm(o.st.Snapshot.Location.Key(), func() {
		o.post(func() { o.beginRefresh(TriggerAuto) })
	})
	if err != nil {
		log.Error("arming refresh timer", "err", err)
	}
}

// Refresh re-fetches the current location without hiding the snapshot. It is a
// no-op when nothing is shown or a refresh is already running.
func (o *Orchestrator) Refresh() error {
	var err error
	if derr := o.dispatch(func() {
		if !o.started {
			err = ErrNotStarted
			return
		}
		o.beginRefresh(TriggerUser)
	}); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) beginRefresh(trigger Trigger) {
	if o.st.Snapshot == nil || o.st.Refreshing || o.st.Loading {
		o.m.RecordRefresh(string(trigger), "skipped")
		return
	}

	gen := o.generation
	query := o.st.Query
	o.st.Refreshing = true
	o.spawn(func(ctx context.Context, log *slog.Logger) {
		snap, err := o.fetchCurrent(ctx, query)
		o.post(func() { o.applyRefresh(gen, trigger, snap, err, log) })
	}, trigger, query)
	o.commit()
}

func (o *Orchestrator) applyRefresh(gen uint64, trigger Trigger, snap *weather.Snapshot, err error, log *slog.Logger) {
	if o.stale(gen, "refresh", log) {
		o.m.RecordRefresh(string(trigger), "stale")
		return
	}

	o.st.Refreshing = false
	if err != nil {
		log.Warn("refresh failed, keeping current weather", "err", err)
		o.m.RecordRefresh(string(trigger), "failure")
		if trigger == TriggerUser {
			o.st.Error = errorFromQuery(err)
		}
		o.commit()
		return
	}

	o.st.Snapshot = snap
	o.st.Error = nil
	o.m.RecordRefresh(string(trigger), "success")
	o.armRefresh(log)
	o.commit()
}

// Geolocate asks the locator for the current position and searches for it.
func (o *Orchestrator) Geolocate() error {
	var err error
	if derr := o.dispatch(func() {
		if !o.started {
			err = ErrNotStarted
			return
		}
		o.beginGeolocation(TriggerUser)
		o.commit()
	}); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) beginGeolocation(trigger Trigger) {
	o.st.GeolocationRequested = true
	gen := o.beginLoading("")

	o.spawn(func(ctx context.Context, log *slog.Logger) {
		coords, err := o.locator.Locate(ctx)
		if err != nil {
			o.post(func() { o.applyGeolocationFailure(gen, trigger, err, log) })
			return
		}
		o.m.RecordGeolocation(string(trigger), "granted")

		query := coords.Query()
		log = log.With("query", query)
		snap, err := o.fetchCurrent(ctx, query)
		o.post(func() { o.applySearch(gen, TriggerGeo, query, "", snap, err, log) })
	}, trigger, "")
}

func (o *Orchestrator) applyGeolocationFailure(gen uint64, trigger Trigger, err error, log *slog.Logger) {
	if o.stale(gen, "geolocation", log) {
		return
	}

	o.st.Loading = false
	o.st.Pending = ""
	if errors.Is(err, geo.ErrPermissionDenied) {
		o.st.Error = &Error{Kind: KindGeolocationDenied, Message: GeolocationDeniedMessage}
		o.m.RecordGeolocation(string(trigger), "denied")
	} else {
		o.st.Error = &Error{Kind: KindGeolocationUnavailable, Message: GeolocationUnavailableMessage}
		o.m.RecordGeolocation(string(trigger), "unavailable")
	}
	log.Warn("geolocation failed", "err", err)
	o.commit()
}

// DismissError clears the banner.
func (o *Orchestrator) DismissError() error {
	return o.dispatch(func() {
		if o.st.Error == nil {
			return
		}
		o.st.Error = nil
		o.commit()
	})
}

// InvalidPreferenceError reports an unknown preference key or value.
type InvalidPreferenceError struct {
	Err error
}

func (e *InvalidPreferenceError) Error() string { return e.Err.Error() }

func (e *InvalidPreferenceError) Unwrap() error { return e.Err }

// PreferenceUpdate names one preference change.
type PreferenceUpdate struct {
	Key   string
	Value string
}

// SetPreference validates and persists a single preference, then commits it.
// The state is unchanged when persisting fails.
func (o *Orchestrator) SetPreference(ctx context.Context, key, value string) error {
	return o.SetPreferences(ctx, PreferenceUpdate{Key: key, Value: value})
}

// SetPreferences applies updates as one change: all are validated before any is
// persisted, and they are committed together. If persisting one fails, the ones
// already written are restored and the state is unchanged.
func (o *Orchestrator) SetPreferences(ctx context.Context, updates ...PreferenceUpdate) error {
	var err error
	if derr := o.dispatch(func() {
		if !o.started {
			err = ErrNotStarted
			return
		}

		next := o.st.Preferences
		for _, u := range updates {
			n, verr := next.With(u.Key, u.Value)
			if verr != nil {
				err = &InvalidPreferenceError{Err: verr}
				return
			}
			next = n
		}

		for i, u := range updates {
			if serr := o.store.SavePreference(ctx, u.Key, u.Value); serr != nil {
				err = fmt.Errorf("saving preference %s: %w", u.Key, serr)
				o.restorePreferences(ctx, updates[:i])
				return
			}
		}
		if len(updates) == 0 {
			return
		}
		o.st.Preferences = next
		o.commit()
	}); derr != nil {
		return derr
	}
	return err
}

// restorePreferences rewrites the committed values of keys already persisted by a
// failed batch.
func (o *Orchestrator) restorePreferences(ctx context.Context, written []PreferenceUpdate) {
	for _, u := range written {
		if err := o.store.SavePreference(ctx, u.Key, o.st.Preferences.Value(u.Key)); err != nil {
			o.log.Error("restoring preference failed", "key", u.Key, "err", err)
		}
	}
}

// Close stops the refresh timer, cancels in-flight fetches and stops the loop.
// It is safe to call more than once.
func (o *Orchestrator) Close() error {
	o.closing.Do(func() {
		close(o.done)
		<-o.loopDone
		o.cancel()
		o.wg.Wait()
		o.timer.stop()
	})
	return nil
}
