package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func newMemStore(t *testing.T) *FSStore {
	t.Helper()
	s, err := NewFSStore(afero.NewMemMapFs(), "https://bot.example.com", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	return s
}

func readDoc(t *testing.T, s *FSStore, key string, public bool) []byte {
	t.Helper()
	dir := privateDir
	if public {
		dir = publicDir
	}
	content, err := afero.ReadFile(s.fs, path.Join(dir, key))
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", key, err)
	}
	return content
}

func TestPutPublicReturnsAddressAndOverwrites(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)
	ctx := context.Background()

	addr, err := s.Put(ctx, "summaries/42/cats", []byte("<p>one</p>"), "text/html", true)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if want := "https://bot.example.com/summaries/42/cats"; addr != want {
		t.Errorf("address = %q, want %q", addr, want)
	}

	if _, err := s.Put(ctx, "summaries/42/cats", []byte("<p>two</p>"), "text/html", true); err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	if got := readDoc(t, s, "summaries/42/cats", true); string(got) != "<p>two</p>" {
		t.Errorf("content = %q, want overwritten document", got)
	}
}

func TestPutEscapesNonASCIIKeys(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)

	addr, err := s.Put(context.Background(), "summaries/-100/café", []byte("x"), "text/html", true)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasSuffix(addr, "/summaries/-100/caf%C3%A9") {
		t.Errorf("address = %q, want escaped path", addr)
	}
}

func TestPutPrivateIsNotServed(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)

	addr, err := s.Put(context.Background(), "drafts/1", []byte("secret"), "text/plain", false)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if strings.HasPrefix(addr, "http") {
		t.Errorf("private address %q looks public", addr)
	}

	rec := httptest.NewRecorder()
	s.PublicHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/drafts/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("private document served with status %d", rec.Code)
	}
}

func TestPublicHandlerServesHTML(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)

	doc := "<!DOCTYPE html><html><body>hi</body></html>"
	if _, err := s.Put(context.Background(), "summaries/42/cats", []byte(doc), "text/html", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	rec := httptest.NewRecorder()
	s.PublicHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summaries/42/cats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != doc {
		t.Errorf("body = %q", body)
	}
}

func TestPutRejectsBadKeys(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)

	for _, key := range []string{"", "  ", "../etc/passwd", "a/../../b", `a\b`} {
		_, err := s.Put(context.Background(), key, []byte("x"), "text/plain", true)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestNewFSStoreRequiresAbsoluteURL(t *testing.T) {
	t.Parallel()
	if _, err := NewFSStore(afero.NewMemMapFs(), "/relative", nil); err == nil {
		t.Error("NewFSStore() with relative url error = nil")
	}
}

func TestConcurrentPutsOfOneKey(t *testing.T) {
	t.Parallel()
	s, err := NewOsStore(t.TempDir(), "https://bot.example.com", nil)
	if err != nil {
		t.Fatalf("NewOsStore() error = %v", err)
	}
	const key = "summaries/1/cats"
	const writers = 8

	bodies := make(map[string]bool, writers)
	for i := range writers {
		bodies[fmt.Sprintf("<!DOCTYPE html><p>writer %d %s</p>", i, strings.Repeat("x", 4096))] = true
	}

	for round := range 20 {
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for body := range bodies {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.Put(context.Background(), key, []byte(body), "text/html", true); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("round %d: Put() error = %v", round, err)
		}

		if got := readDoc(t, s, key, true); !bodies[string(got)] {
			t.Fatalf("round %d: document is not one writer's complete content (%d bytes)", round, len(got))
		}
	}

	entries, err := afero.ReadDir(s.fs, path.Join(publicDir, "summaries/1"))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "cats" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory holds %v, want only cats", names)
	}
}

func TestPublicHandlerSniffsContentType(t *testing.T) {
	t.Parallel()
	s := newMemStore(t)

	// The declared type is not stored; the served one comes from the bytes.
	if _, err := s.Put(context.Background(), "summaries/42/cats", []byte("<!DOCTYPE html><p>hi</p>"), "text/plain", true); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	rec := httptest.NewRecorder()
	s.PublicHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/summaries/42/cats", nil))
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want sniffed text/html", ct)
	}
}
