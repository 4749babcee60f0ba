// Package admins holds the set of admin-designated email addresses.
package admins

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Allowlist is a concurrency-safe set of admin emails. Lookups are
// case-insensitive. A nil Allowlist contains nobody.
type Allowlist struct {
	mu     sync.RWMutex
	static []string
	emails map[string]struct{}
}

func New(emails ...string) *Allowlist {
	a := &Allowlist{static: append([]string(nil), emails...)}
	a.Replace(nil)
	return a
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *Allowlist) Contains(email string) bool {
	if a == nil {
		return false
	}
	e := normalize(email)
	if e == "" {
		return false
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.emails[e]
	return ok
}

// Replace swaps the file-sourced entries. Emails passed to New are always kept.
func (a *Allowlist) Replace(fromFile []string) {
	next := make(map[string]struct{}, len(a.static)+len(fromFile))
	for _, list := range [][]string{a.static, fromFile} {
		for _, e := range list {
			if n := normalize(e); n != "" {
				next[n] = struct{}{}
			}
		}
	}
	a.mu.Lock()
	a.emails = next
	a.mu.Unlock()
}

func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.emails)
}

// ParseFile reads one email per line (commas also separate); '#' starts a comment.
func ParseFile(data []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, part := range strings.Split(line, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Load reads path and replaces the file-sourced entries.
func (a *Allowlist) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read admin list: %w", err)
	}
	a.Replace(ParseFile(data))
	return nil
}

// Watch reloads path whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are picked up.
func (a *Allowlist) Watch(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	if err := a.Load(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch admin list: %w", err)
	}
	log.Info().Str("path", path).Int("admins", a.Len()).Msg("Watching admin list")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := a.Load(path); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Failed to reload admin list")
				continue
			}
			log.Info().Str("path", path).Int("admins", a.Len()).Msg("Admin list reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Admin list watcher error")
		}
	}
}
