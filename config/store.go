package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"murmur/hotkey"
	"murmur/log"
	"murmur/session"
	"murmur/transform"
)

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// Store holds the current configuration snapshot. Snapshots are never
// modified after they are published.
type Store struct {
	path string
	cur  atomic.Pointer[Config]

	mu       sync.Mutex
	onChange []func(Config)
}

// NewStore loads path and returns a store holding the result.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStoreFrom(path, cfg), nil
}

func NewStoreFrom(path string, cfg Config) *Store {
	s := &Store{path: path}
	s.cur.Store(&cfg)
	return s
}

func (s *Store) Path() string { return s.path }

// Config returns the current snapshot.
func (s *Store) Config() Config {
	return *s.cur.Load()
}

// OnChange registers fn to run after each successful reload.
func (s *Store) OnChange(fn func(Config)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Reload re-reads the file. On error the previous snapshot stays current.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.cur.Store(&cfg)
	s.mu.Lock()
	fns := append([]func(Config){}, s.onChange...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(cfg)
	}
	return nil
}

// Watch reloads the file whenever it changes, until ctx is done. The parent
// directory is watched so atomic saves (write then rename) are seen.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(s.path) {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDelay)
				} else {
					timer.Reset(reloadDelay)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warnf("config watcher: %v", err)
			case <-fire:
				fire = nil
				if err := s.Reload(); err != nil {
					log.Warnf("config reload rejected, keeping previous settings: %v", err)
					continue
				}
				log.Info("config reloaded")
			}
		}
	}()
	return nil
}

// Settings adapts the current snapshot for the session controller.
func (s *Store) Settings() session.Settings {
	c := s.Config()
	st := session.Settings{
		ContinuousDictation: c.Dictation.Continuous,
		Style:               transform.ParseStyle(c.Dictation.Style),
		Category:            transform.ParseCategory(c.Dictation.Category),
		LLMProcessing:       c.LLM.Enabled,
		LowLatency:          c.Dictation.LowLatency,
		NoiseReduction:      c.Dictation.NoiseReduction,
	}
	if combo, err := hotkey.ParseCombo(c.Hotkeys.Hold); err == nil {
		st.HoldKeys = combo.String()
	}
	return st
}
