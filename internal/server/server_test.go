package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"

	"github.com/edgard/scribrbot/internal/config"
	"github.com/edgard/scribrbot/internal/docstore"
	"github.com/edgard/scribrbot/internal/scribe"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeWebhook struct {
	status string
	err    error
	got    []byte
}

func (f *fakeWebhook) Handle(_ context.Context, raw []byte) (string, error) {
	f.got = raw
	return f.status, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func serverConfig() config.ServerConfig {
	return config.ServerConfig{WebhookPath: "/webhook", MaxBodyBytes: 1024}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		secret     string
		header     string
		body       string
		status     string
		err        error
		wantCode   int
		wantStatus string
		wantCalled bool
	}{
		{
			name:       "success",
			body:       `{"update_id":1}`,
			status:     scribe.StatusNothingToDo,
			wantCode:   http.StatusOK,
			wantStatus: scribe.StatusNothingToDo,
			wantCalled: true,
		},
		{
			name:       "secret matches",
			secret:     "s3cret",
			header:     "s3cret",
			body:       `{"update_id":1}`,
			status:     scribe.StatusStored,
			wantCode:   http.StatusOK,
			wantStatus: scribe.StatusStored,
			wantCalled: true,
		},
		{
			name:     "secret mismatch",
			secret:   "s3cret",
			header:   "wrong",
			body:     `{"update_id":1}`,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:       "malformed event",
			body:       `{nope`,
			err:        fmt.Errorf("%w: bad json", scribe.ErrMalformedEvent),
			wantCode:   http.StatusBadRequest,
			wantCalled: true,
		},
		{
			name:       "entity out of range",
			body:       `{}`,
			err:        scribe.ErrEntityOutOfRange,
			wantCode:   http.StatusBadRequest,
			wantCalled: true,
		},
		{
			name:       "store fault",
			body:       `{}`,
			err:        errors.New("database is locked"),
			wantCode:   http.StatusInternalServerError,
			wantCalled: true,
		},
		{
			name:     "body too large",
			body:     `{"text":"` + strings.Repeat("x", 2048) + `"}`,
			wantCode: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			webhook := &fakeWebhook{status: tc.status, err: tc.err}
			router := NewRouter(Deps{Config: serverConfig(), Secret: tc.secret, Webhook: webhook})

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tc.body))
			if tc.header != "" {
				req.Header.Set(SecretTokenHeader, tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("status code = %d, want %d (body %s)", rec.Code, tc.wantCode, rec.Body.String())
			}
			if called := webhook.got != nil; called != tc.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tc.wantCalled)
			}
			if tc.wantCalled && string(webhook.got) != tc.body {
				t.Errorf("handler got body %q, want %q", webhook.got, tc.body)
			}
			if tc.wantStatus != "" {
				if got := decodeBody(t, rec)["status"]; got != tc.wantStatus {
					t.Errorf("status = %q, want %q", got, tc.wantStatus)
				}
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		err  error
		code int
	}{
		"up":   {nil, http.StatusOK},
		"down": {errors.New("closed"), http.StatusServiceUnavailable},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			router := NewRouter(Deps{Config: serverConfig(), Webhook: &fakeWebhook{}, Health: fakePinger{tc.err}})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tc.code {
				t.Errorf("status code = %d, want %d", rec.Code, tc.code)
			}
		})
	}
}

func TestPublishedSummariesAreServed(t *testing.T) {
	t.Parallel()
	docs, err := docstore.NewFSStore(afero.NewMemMapFs(), "https://bot.example.com", nil)
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	page := []byte("<!DOCTYPE html><html><body>#cats</body></html>")
	address, err := docs.Put(context.Background(), "summaries/42/cats", page, "text/html; charset=utf-8", true)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if address != "https://bot.example.com/summaries/42/cats" {
		t.Fatalf("address = %q", address)
	}
	if _, err := docs.Put(context.Background(), "summaries/42/secret", page, "text/html", false); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	router := NewRouter(Deps{Config: serverConfig(), Webhook: &fakeWebhook{}, Documents: docs.PublicHandler()})

	tests := []struct {
		path string
		code int
	}{
		{"/summaries/42/cats", http.StatusOK},
		{"/summaries/42/secret", http.StatusNotFound},
		{"/summaries/42/", http.StatusNotFound},
		{"/summaries/42/dogs", http.StatusNotFound},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.code)
		}
		if tc.code == http.StatusOK {
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("GET %s Content-Type = %q", tc.path, ct)
			}
			if rec.Body.String() != string(page) {
				t.Errorf("GET %s body = %q", tc.path, rec.Body.String())
			}
		}
	}
}

func TestServerRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := serverConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second
	s := New(Deps{Config: cfg, Webhook: &fakeWebhook{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
