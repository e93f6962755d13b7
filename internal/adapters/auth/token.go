// Package auth provides the bearer-token sources the dashboard polls with.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/ghalamif/CityPulse/internal/ports"
)

// StaticToken is a token fixed at startup. An empty token means logged out.
type StaticToken string

func (s StaticToken) IsAuthenticated() bool { return s != "" }
func (s StaticToken) Token() string         { return string(s) }

// FileToken reads the bearer token from a file and reloads it whenever the
// file changes, so `citypulse login` takes effect without a restart.
type FileToken struct {
	path    string
	token   atomic.Pointer[string]
	watcher *fsnotify.Watcher
	obs     ports.Observability
	done    chan struct{}
	once    sync.Once
}

// NewFileToken loads path and starts watching it. A missing file is not an
// error: the provider reports unauthenticated until the file appears.
func NewFileToken(path string, obs ports.Observability) (*FileToken, error) {
	if path == "" {
		return nil, fmt.Errorf("token file path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("token watcher: %w", err)
	}
	// Watch the directory: editors and WriteToken replace the file by rename.
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	f := &FileToken{
		path:    abs,
		watcher: w,
		obs:     obs,
		done:    make(chan struct{}),
	}
	empty := ""
	f.token.Store(&empty)
	if err := f.reload(); err != nil {
		_ = w.Close()
		return nil, err
	}

	go f.watch()
	return f, nil
}

func (f *FileToken) IsAuthenticated() bool { return f.Token() != "" }

func (f *FileToken) Token() string { return *f.token.Load() }

// Close stops watching the file.
func (f *FileToken) Close() error {
	var err error
	f.once.Do(func() {
		err = f.watcher.Close()
		<-f.done
	})
	return err
}

func (f *FileToken) watch() {
	defer close(f.done)
	for {
		select {
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := f.reload(); err != nil && f.obs != nil {
				f.obs.LogError("token_reload_failed", err, ports.Field{Key: "path", Value: f.path})
			}
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			if f.obs != nil {
				f.obs.LogError("token_watch_error", err)
			}
		}
	}
}

func (f *FileToken) reload() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			empty := ""
			f.token.Store(&empty)
			return nil
		}
		return err
	}
	tok := strings.TrimSpace(string(data))
	f.token.Store(&tok)
	return nil
}

// WriteToken replaces the token file atomically with owner-only permissions.
func WriteToken(path, token string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(token + "\n"); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var (
	_ ports.Authenticator = StaticToken("")
	_ ports.Authenticator = (*FileToken)(nil)
)
