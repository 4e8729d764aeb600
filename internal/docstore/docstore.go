// Package docstore stores rendered documents on an afero filesystem and
// publishes the public ones under a base URL.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/edgard/scribrbot/internal/logger"
)

const (
	publicDir  = "public"
	privateDir = "private"
)

// ErrInvalidKey is returned for empty keys or keys escaping the store root.
var ErrInvalidKey = errors.New("invalid document key")

// Store puts documents under a key and returns their address.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string, public bool) (string, error)
}

// FSStore writes documents with afero. Public documents land under public/
// and are reachable through PublicHandler; private ones under private/.
type FSStore struct {
	fs      afero.Fs
	baseURL *url.URL
	logger  *slog.Logger
}

// NewFSStore creates a store rooted at fs. Public addresses are baseURL + "/" + key.
func NewFSStore(fs afero.Fs, baseURL string, log *slog.Logger) (*FSStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid public base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("public base url %q must be absolute", baseURL)
	}
	if log == nil {
		log = logger.Discard()
	}
	for _, dir := range []string{publicDir, privateDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}
	return &FSStore{
		fs:      fs,
		baseURL: u,
		logger:  log.With("component", "docstore"),
	}, nil
}

// NewOsStore creates a store on the local disk below root.
func NewOsStore(root, baseURL string, log *slog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", root, err)
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), root), baseURL, log)
}

// Put writes content at key, replacing any previous document. Concurrent
// writers of one key all succeed and the last rename wins. contentType is
// logged but not stored: PublicHandler sniffs the served type from the
// first bytes of the file, so callers should store self-describing content
// such as HTML starting with a doctype.
func (s *FSStore) Put(ctx context.Context, key string, content []byte, contentType string, public bool) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := privateDir
	if public {
		dir = publicDir
	}
	target := path.Join(dir, clean)

	if err := s.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", clean, err)
	}

	// Each write gets its own temp file, so concurrent writers of one key
	// never share bytes and the last rename wins.
	if err := s.writeAtomic(target, content); err != nil {
		return "", fmt.Errorf("failed to publish document %s: %w", clean, err)
	}

	address := s.address(clean, public)
	s.logger.InfoContext(ctx, "Stored document",
		"key", clean, "bytes", len(content), "content_type", contentType, "public", public)
	return address, nil
}

func (s *FSStore) writeAtomic(target string, content []byte) error {
	f, err := afero.TempFile(s.fs, path.Dir(target), path.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Chmod(tmp, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	if err := s.fs.Rename(tmp, target); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

// PublicHandler serves public documents at /{key}. Mount it on the key
// namespace without stripping the path.
func (s *FSStore) PublicHandler() http.Handler {
	return http.FileServer(afero.NewHttpFs(afero.NewBasePathFs(s.fs, publicDir)).Dir("/"))
}

func (s *FSStore) address(key string, public bool) string {
	if !public {
		return "private/" + key
	}
	u := *s.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + key
	u.RawPath = ""
	return u.String()
}

func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != strings.TrimPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}
