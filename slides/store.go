// Package slides owns the slide collection and display preferences and keeps
// them persisted in a key/value store.
package slides

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aouyang1/quoteframe/store"
	mapset "github.com/deckarep/golang-set/v2"
)

var preferenceKeys = mapset.NewSet(
	PrefGlowColor,
	PrefSlideDuration,
	PrefMuted,
	PrefSoundEnabled,
)

// keyLister is implemented by stores that can enumerate keys by prefix.
type keyLister interface {
	Keys(prefix string) ([]string, error)
}

type subscription struct {
	id int
	fn Listener
}

// Store is the single writer of the slide collection and preferences. Every
// mutation is written to the key/value store before it returns; write
// failures are logged and the in-memory state stays authoritative.
//
// Listeners run synchronously, in registration order, while the store is
// locked. They must not call back into the Store.
type Store struct {
	mu  sync.Mutex
	kv  store.KeyValueStore
	cfg Config

	slides []Slide
	prefs  Preferences

	listeners []subscription
	nextID    int
}

func NewStore(kv store.KeyValueStore, cfg Config) *Store {
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	s := &Store{kv: kv, cfg: cfg}
	s.Load()
	return s
}

func (s *Store) Config() Config {
	return s.cfg
}

// Load reads every persisted key independently. A missing or malformed value
// falls back to its default without affecting the other keys.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slides = s.loadSlides()
	s.prefs = Preferences{
		GlowColor:     s.loadString(s.cfg.GlowColorKey(), s.cfg.DefaultPreferences.GlowColor),
		SlideDuration: min(s.loadInt(s.cfg.SlideDurationKey(), s.cfg.DefaultPreferences.SlideDuration), MaxSlideDuration),
		Muted:         s.loadBool(s.cfg.MutedKey(), s.cfg.DefaultPreferences.Muted),
		SoundEnabled:  s.loadBool(s.cfg.SoundEnabledKey(), s.cfg.DefaultPreferences.SoundEnabled),
	}
	slog.Debug("loaded slide store", "slides", len(s.slides), "preferences", s.prefs)
}

func (s *Store) read(key string) (string, bool) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		slog.Warn("unable to read persisted value, using default", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *Store) loadSlides() []Slide {
	raw, ok := s.read(s.cfg.SlidesKey())
	if !ok {
		return slices.Clone(s.cfg.DefaultSlides)
	}
	var loaded []Slide
	if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
		slog.Error("failed to parse slides from storage, using defaults", "key", s.cfg.SlidesKey(), "error", err)
		return slices.Clone(s.cfg.DefaultSlides)
	}
	if loaded == nil {
		slog.Warn("persisted slides were null, using defaults", "key", s.cfg.SlidesKey())
		return slices.Clone(s.cfg.DefaultSlides)
	}
	return loaded
}

func (s *Store) loadString(key, def string) string {
	v, ok := s.read(key)
	if !ok || v == "" {
		return def
	}
	return v
}

func (s *Store) loadInt(key string, def int) int {
	v, ok := s.read(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("unable to parse persisted integer, using default", "key", key, "value", v, "default", def)
		return def
	}
	return max(n, 0)
}

func (s *Store) loadBool(key string, def bool) bool {
	v, ok := s.read(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		slog.Warn("unable to parse persisted boolean, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

// write persists one key. Failures are logged and never roll back memory.
func (s *Store) write(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		slog.Error("failed to save to storage", "key", key, "error", err)
	}
}

func (s *Store) writeSlides() {
	data, err := json.Marshal(s.slides)
	if err != nil {
		slog.Error("failed to encode slides", "error", err)
		return
	}
	s.write(s.cfg.SlidesKey(), string(data))
}

// OnChange registers l to be called after every successful mutation. The
// returned func removes the registration.
func (s *Store) OnChange(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

func (s *Store) notify(kind ChangeKind, index int) {
	c := Change{
		Kind:        kind,
		Index:       index,
		Len:         len(s.slides),
		Preferences: s.prefs,
	}
	for _, sub := range s.listeners {
		sub.fn(c)
	}
}

// Slides returns a copy of the collection in display order.
func (s *Store) Slides() []Slide {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.slides)
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slides)
}

func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// AddSlide appends slide and returns the new collection length.
func (s *Store) AddSlide(slide Slide) (int, error) {
	if err := slide.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slides = append(s.slides, slide)
	s.writeSlides()
	s.notify(SlideAdded, len(s.slides)-1)

	slog.Info("added slide", "author", slide.Author, "length", len(s.slides))
	return len(s.slides), nil
}

func (s *Store) RemoveSlide(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.slides) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(s.slides))
	}

	s.slides = slices.Delete(s.slides, index, index+1)
	s.writeSlides()
	s.notify(SlideRemoved, index)

	slog.Info("removed slide", "index", index, "length", len(s.slides))
	return nil
}

func validateCollection(collection []Slide) error {
	for i, slide := range collection {
		if strings.TrimSpace(slide.ImageURL) == "" {
			return fmt.Errorf("%w: slide %d has no imageUrl", ErrMalformedBackup, i)
		}
	}
	return nil
}

// ReplaceAll swaps the whole collection. Nothing is changed if any slide is
// malformed.
func (s *Store) ReplaceAll(collection []Slide) error {
	if err := validateCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slides = slices.Clone(collection)
	if s.slides == nil {
		s.slides = []Slide{}
	}
	s.writeSlides()
	s.notify(SlidesReplaced, 0)

	slog.Info("replaced slides", "length", len(s.slides))
	return nil
}

func (s *Store) SetGlowColor(color string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.GlowColor = color
	s.write(s.cfg.GlowColorKey(), color)
	s.notify(PreferencesChanged, 0)
}

// SetSlideDuration stores the rotation interval in milliseconds. Negative
// values are stored as 0 and values above MaxSlideDuration are capped.
func (s *Store) SetSlideDuration(ms int) {
	ms = min(max(ms, 0), MaxSlideDuration)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.SlideDuration = ms
	s.write(s.cfg.SlideDurationKey(), strconv.Itoa(ms))
	s.notify(PreferencesChanged, 0)
}

func (s *Store) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.Muted = muted
	s.write(s.cfg.MutedKey(), strconv.FormatBool(muted))
	s.notify(PreferencesChanged, 0)
}

func (s *Store) SetSoundEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prefs.SoundEnabled = enabled
	s.write(s.cfg.SoundEnabledKey(), strconv.FormatBool(enabled))
	s.notify(PreferencesChanged, 0)
}

// SetPreference parses raw for key and stores it.
func (s *Store) SetPreference(key PreferenceKey, raw string) error {
	if !preferenceKeys.Contains(key) {
		return fmt.Errorf("%w: %q", ErrUnknownPreference, key)
	}

	switch key {
	case PrefGlowColor:
		s.SetGlowColor(raw)
	case PrefSlideDuration:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: %s must be a number of milliseconds, got %q", ErrInvalidPreference, key, raw)
		}
		// clamp before converting, int() of an out of range float is undefined
		s.SetSlideDuration(int(min(max(f, 0), MaxSlideDuration)))
	case PrefMuted, PrefSoundEnabled:
		b, err := parseBool(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPreference, key, err)
		}
		if key == PrefMuted {
			s.SetMuted(b)
		} else {
			s.SetSoundEnabled(b)
		}
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("must be one of: 1, true, yes, on, 0, false, no, off; got %q", raw)
}

// ResetAll clears every persisted key in the namespace and restores the
// defaults. Callers confirm with the user before calling it.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := mapset.NewSet(s.cfg.keys()...)
	if lister, ok := s.kv.(keyLister); ok {
		extra, err := lister.Keys(s.cfg.Namespace + "-")
		if err != nil {
			slog.Warn("unable to list namespace keys for reset", "namespace", s.cfg.Namespace, "error", err)
		}
		keys.Append(extra...)
	}
	for key := range keys.Iter() {
		if err := s.kv.Remove(key); err != nil {
			slog.Error("failed to remove key from storage", "key", key, "error", err)
		}
	}

	s.slides = slices.Clone(s.cfg.DefaultSlides)
	s.prefs = s.cfg.DefaultPreferences
	s.notify(StoreReset, 0)

	slog.Info("reset all data", "namespace", s.cfg.Namespace)
}
