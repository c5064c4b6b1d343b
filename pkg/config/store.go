package config

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/fsnotify.v1"
)

// fileSchema is the HCL surface of a settings file. Durations are carried
// as milliseconds; HCL has no native duration type.
type fileSchema struct {
	Enabled           *bool    `hcl:"enabled,optional"`
	HighlightPriority *int     `hcl:"highlight_priority,optional"`
	FiletypePatterns  []string `hcl:"filetypes,optional"`
	CombinedModifiers []string `hcl:"combined_modifiers,optional"`
	IncrementTypes    []string `hcl:"increment_types,optional"`
	DebounceMs        *int     `hcl:"debounce_ms,optional"`
	RetryDelayMs      *int     `hcl:"retry_delay_ms,optional"`
	WaitTimeoutMs     *int     `hcl:"wait_timeout_ms,optional"`
	SpanThreshold     *int     `hcl:"span_threshold,optional"`
	ExpandAbove       *float64 `hcl:"expand_above,optional"`
	ExpandBelow       *float64 `hcl:"expand_below,optional"`
}

// Load reads and validates a settings file, layering it over the
// defaults. A missing file yields the defaults unchanged.
func Load(fs afero.Fs, path string) (Settings, error) {
	out := DefaultSettings()

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return out, errors.Errorf("checking settings file %s: %w", path, err)
	}
	if !exists {
		return out, nil
	}

	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return out, errors.Errorf("reading settings file %s: %w", path, err)
	}

	var file fileSchema
	if err := hclsimple.Decode(path, src, nil, &file); err != nil {
		return out, errors.Errorf("parsing settings file %s: %w", path, err)
	}

	file.applyTo(&out)
	if err := out.Validate(); err != nil {
		return out, errors.Errorf("validating settings file %s: %w", path, err)
	}
	return out, nil
}

func (f *fileSchema) applyTo(s *Settings) {
	if f.Enabled != nil {
		s.Enabled = *f.Enabled
	}
	if f.HighlightPriority != nil {
		s.HighlightPriority = *f.HighlightPriority
	}
	if f.FiletypePatterns != nil {
		s.FiletypePatterns = f.FiletypePatterns
	}
	if f.CombinedModifiers != nil {
		s.CombinedModifiers = f.CombinedModifiers
	}
	if f.IncrementTypes != nil {
		s.IncrementTypes = f.IncrementTypes
	}
	if f.DebounceMs != nil {
		s.DebounceInterval = msToDuration(*f.DebounceMs)
	}
	if f.RetryDelayMs != nil {
		s.RetryDelay = msToDuration(*f.RetryDelayMs)
	}
	if f.WaitTimeoutMs != nil {
		s.WaitTimeout = msToDuration(*f.WaitTimeoutMs)
	}
	if f.SpanThreshold != nil {
		s.SpanThreshold = *f.SpanThreshold
	}
	if f.ExpandAbove != nil {
		s.ExpandAbove = *f.ExpandAbove
	}
	if f.ExpandBelow != nil {
		s.ExpandBelow = *f.ExpandBelow
	}
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Store publishes the current settings and notifies subscribers on
// reload. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	fs          afero.Fs
	path        string
	current     Settings
	subscribers []func(Settings)
}

// NewStore builds a store holding the given initial settings.
func NewStore(fs afero.Fs, path string, initial Settings) *Store {
	return &Store{
		fs:      fs,
		path:    path,
		current: initial,
	}
}

// Current returns the settings in effect.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Subscribe registers fn to run on every successful reload. Subscribers
// run synchronously on the reloading goroutine.
func (s *Store) Subscribe(fn func(Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Reload re-reads the settings file and, on success, publishes the new
// settings to every subscriber. A failed reload leaves the current
// settings in place.
func (s *Store) Reload(ctx context.Context) error {
	next, err := Load(s.fs, s.path)
	if err != nil {
		return errors.Errorf("reloading settings: %w", err)
	}

	s.mu.Lock()
	s.current = next
	subs := make([]func(Settings), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	zerolog.Ctx(ctx).Debug().
		Bool("enabled", next.Enabled).
		Int("span_threshold", next.SpanThreshold).
		Msg("settings reloaded")

	for _, fn := range subs {
		fn(next)
	}
	return nil
}

// Watch reloads the store whenever the settings file changes on disk,
// until ctx is done. It only works against the OS filesystem; stores
// backed by an in-memory afero.Fs should call Reload directly.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating settings watcher: %w", err)
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return errors.Errorf("watching settings file %s: %w", s.path, err)
	}

	logger := zerolog.Ctx(ctx)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.Reload(ctx); err != nil {
					logger.Warn().Err(err).Msg("settings reload failed, keeping previous settings")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("settings watcher error")
			}
		}
	}()
	return nil
}
