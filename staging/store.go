// Package staging makes synthesized audio artifacts reachable by URL before
// a play instruction may reference them. Artifacts are written under a
// directory served over HTTP; filenames are derived from call and turn
// identity plus a random suffix, so no two calls ever collide and no name is
// reused.
package staging

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/outreachlabs/hirecall/engine"
)

// Verify interface compliance at compile time.
var _ engine.Stager = (*Store)(nil)

// Error is a staging failure.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("staging %q failed: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Store stages audio artifacts on the local filesystem.
type Store struct {
	dir     string
	baseURL string
}

// Option configures the Store.
type Option func(*options)

type options struct {
	dir     string
	baseURL string
}

// WithDir sets the artifact directory.
func WithDir(dir string) Option {
	return func(o *options) {
		o.dir = dir
	}
}

// WithBaseURL sets the public URL prefix under which artifacts are served,
// e.g. "https://example.com/audio".
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// New creates a staging store, creating the artifact directory if needed.
func New(opts ...Option) (*Store, error) {
	cfg := &options{
		dir: "audio",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.baseURL == "" {
		return nil, fmt.Errorf("staging base URL is required")
	}

	if err := os.MkdirAll(cfg.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}

	return &Store{
		dir:     cfg.dir,
		baseURL: strings.TrimRight(cfg.baseURL, "/"),
	}, nil
}

// Stage writes the artifact and returns its public URL. The artifact is
// confirmed present on disk before the URL is handed out.
func (s *Store) Stage(ctx context.Context, name string, audio engine.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", &Error{Name: name, Err: fmt.Errorf("empty artifact")}
	}

	ext := audio.Format
	if ext == "" {
		ext = "wav"
	}
	filename := fmt.Sprintf("%s-%s.%s", sanitize(name), uuid.NewString(), ext)
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, audio.Data, 0o644); err != nil {
		return "", &Error{Name: name, Err: err}
	}

	// The play instruction must never reference a URL whose artifact is
	// not present; verify before returning.
	if _, err := os.Stat(path); err != nil {
		return "", &Error{Name: name, Err: err}
	}

	return s.baseURL + "/" + filename, nil
}

// Handler serves the staged artifacts. Mount it at the path component of the
// base URL.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// sanitize keeps filenames to a safe character set.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
