// Package prefs persists user preferences and recent searches across sessions.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/neexbeast/skycast/internal/weather"
)

// Persisted keys.
const (
	KeyUnit    = "unit"
	KeyIconSet = "iconSet"
	KeyTheme   = "theme"
	KeyHistory = "searchHistory"
)

// Theme is the colour scheme of the UI.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
	ThemeOcean Theme = "ocean"
)

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool { return t == ThemeLight || t == ThemeDark || t == ThemeOcean }

// Option lists, in display order.
var (
	Units    = []weather.Unit{weather.Celsius, weather.Fahrenheit}
	IconSets = []weather.IconSet{weather.IconSetEmojis, weather.IconSetClassic}
	Themes   = []Theme{ThemeLight, ThemeDark, ThemeOcean}
)

// Preferences are the user's display choices.
type Preferences struct {
	Unit    weather.Unit    `json:"unit"`
	IconSet weather.IconSet `json:"iconSet"`
	Theme   Theme           `json:"theme"`
}

// Defaults returns the preferences used when nothing is stored.
func Defaults() Preferences {
	return Preferences{Unit: weather.Celsius, IconSet: weather.IconSetEmojis, Theme: ThemeLight}
}

// With returns a copy of p with key set to value, or an error for an unknown key or value.
func (p Preferences) With(key, value string) (Preferences, error) {
	switch key {
	case KeyUnit:
		u := weather.Unit(value)
		if !u.Valid() {
			return p, fmt.Errorf("invalid unit %q", value)
		}
		p.Unit = u
	case KeyIconSet:
		s := weather.IconSet(value)
		if !s.Valid() {
			return p, fmt.Errorf("invalid icon set %q", value)
		}
		p.IconSet = s
	case KeyTheme:
		th := Theme(value)
		if !th.Valid() {
			return p, fmt.Errorf("invalid theme %q", value)
		}
		p.Theme = th
	default:
		return p, fmt.Errorf("unknown preference %q", key)
	}
	return p, nil
}

// Value returns the stored string form of key.
func (p Preferences) Value(key string) string {
	switch key {
	case KeyUnit:
		return string(p.Unit)
	case KeyIconSet:
		return string(p.IconSet)
	case KeyTheme:
		return string(p.Theme)
	}
	return ""
}

// KV is a durable string key/value backend. Set must not return before the value
// is durably stored.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Store reads and writes preferences through a KV backend. Reads fail soft.
type Store struct {
	kv  KV
	log *slog.Logger
}

// NewStore constructs a Store.
func NewStore(kv KV, log *slog.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Get returns the stored value for key, or def when it is missing or unreadable.
func (s *Store) Get(ctx context.Context, key, def string) string {
	v, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Warn("preference read failed, using default", "key", key, "err", err)
		return def
	}
	if !found {
		return def
	}
	return v
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("storing preference %s: %w", key, err)
	}
	return nil
}

// Load reads preferences and search history. Invalid or corrupt entries fall back
// to defaults; Load never fails.
func (s *Store) Load(ctx context.Context) (Preferences, []string) {
	def := Defaults()
	p := def
	for _, key := range []string{KeyUnit, KeyIconSet, KeyTheme} {
		next, err := p.With(key, s.Get(ctx, key, def.Value(key)))
		if err != nil {
			s.log.Warn("ignoring invalid stored preference", "key", key, "err", err)
			continue
		}
		p = next
	}

	return p, s.LoadHistory(ctx)
}

// LoadHistory reads the search history; corrupt data yields an empty history.
func (s *Store) LoadHistory(ctx context.Context) []string {
	raw := s.Get(ctx, KeyHistory, "")
	if raw == "" {
		return []string{}
	}

	var h []string
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		s.log.Warn("stored search history is corrupt, starting empty", "err", err)
		return []string{}
	}
	return Normalize(h)
}

// SavePreference validates and stores a single preference.
func (s *Store) SavePreference(ctx context.Context, key, value string) error {
	if _, err := Defaults().With(key, value); err != nil {
		return err
	}
	return s.Set(ctx, key, value)
}

// SaveHistory stores the search history as a JSON array.
func (s *Store) SaveHistory(ctx context.Context, history []string) error {
	if history == nil {
		history = []string{}
	}
	b, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshaling search history: %w", err)
	}
	return s.Set(ctx, KeyHistory, string(b))
}
