package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/screening-license/internal/boxoffice"
	"github.com/iliyamo/screening-license/internal/catalog"
	"github.com/iliyamo/screening-license/internal/formstate"
	"github.com/iliyamo/screening-license/internal/handler"
	"github.com/iliyamo/screening-license/internal/i18n"
	"github.com/iliyamo/screening-license/internal/model"
	"github.com/iliyamo/screening-license/internal/queue"
	"github.com/iliyamo/screening-license/internal/records"
	"github.com/iliyamo/screening-license/internal/repository"
	"github.com/iliyamo/screening-license/internal/securestore"
	"github.com/iliyamo/screening-license/internal/wizard"
	"github.com/iliyamo/screening-license/pkg/logger"
)

const secret = "router-test-secret"

type nopPublisher struct{}

func (nopPublisher) PublishSubmissionCreated(context.Context, queue.SubmissionCreatedEvent) error {
	return nil
}
func (nopPublisher) PublishBoxOfficeLocked(context.Context, queue.BoxOfficeLockedEvent) error {
	return nil
}

type titles struct{}

func (titles) SearchPrefix(_ context.Context, prefix, _ string, _ int) ([]model.CatalogTitle, error) {
	return []model.CatalogTitle{{ID: "movie-1", Title: "Alien", TitleNorm: "alien", Year: 1979}}, nil
}

func (titles) Get(_ context.Context, id string) (model.CatalogTitle, error) {
	if id != "movie-1" {
		return model.CatalogTitle{}, repository.ErrNotFound
	}
	return model.CatalogTitle{ID: "movie-1", Title: "Alien", Year: 1979}, nil
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func newServer(t *testing.T, db pinger) *echo.Echo {
	t.Helper()
	log := logger.NewNop()
	rc := records.NewMySQL(records.NewMemoryStore())
	reg := wizard.NewRegistry(wizard.Config{
		Backend:     securestore.NewMemoryBackend(),
		Secret:      []byte("storage-secret-storage-secret-32"),
		Form:        formstate.Options{PersistDebounce: -1},
		SettleDelay: -1,
	}, wizard.Deps{
		Records:   rc,
		Publisher: nopPublisher{},
		Bundle:    i18n.Default(),
		Tokens:    func(id string, _ model.RecordKind) (string, error) { return "tok-" + id, nil },
		Kind:      model.KindRegional,
		Log:       log,
	})
	t.Cleanup(reg.Close)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/poster-1/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png"))
	}))
	t.Cleanup(upstream.Close)

	form := handler.NewFormHandler(reg)
	pass := func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	e := echo.New()
	RegisterRoutes(e, Handlers{
		Session:   handler.NewSessionHandler(reg, secret, time.Hour),
		Form:      form,
		Lists:     handler.NewListHandler(form, titles{}),
		BoxOffice: handler.NewBoxOfficeHandler(boxoffice.NewService(rc, nopPublisher{}, log, nil)),
		Catalog: handler.NewCatalogHandler(
			catalog.NewSearcher(titles{}, catalog.SearchOptions{Debounce: -1}, log, nil),
			catalog.NewImageFetcher(catalog.ImageOptions{BaseURL: upstream.URL, Attempts: 1, RetryDelay: time.Millisecond}, log)),
		Health: handler.Health(db),
	}, Middleware{RateLimit: pass, Cache: pass}, secret)
	return e
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func startSession(t *testing.T, e *echo.Echo) string {
	t.Helper()
	rec := do(e, http.MethodPost, "/v1/sessions", "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: %d %s", rec.Code, rec.Body)
	}
	var out struct {
		Token string `json:"token"`
		State struct {
			Step int `json:"step"`
		} `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if out.Token == "" || out.State.Step != 1 {
		t.Fatalf("session = %+v", out)
	}
	return out.Token
}

func TestWizardRoutes(t *testing.T) {
	e := newServer(t, pinger{})
	tok := startSession(t, e)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"no token", http.MethodGet, "/v1/form", "", "", http.StatusUnauthorized},
		{"read form", http.MethodGet, "/v1/form", tok, "", http.StatusOK},
		{"unknown patch key", http.MethodPatch, "/v1/form", tok, `{"bogus": 1}`, http.StatusBadRequest},
		{"consent missing", http.MethodPost, "/v1/form/next", tok, `{"privacyConsent": false}`, http.StatusUnprocessableEntity},
		{"forward jump", http.MethodPost, "/v1/form/step", tok, `{"step": 4}`, http.StatusBadRequest},
		{"remove last film", http.MethodDelete, "/v1/form/films/0", tok, "", http.StatusConflict},
		{"unknown catalog title", http.MethodPost, "/v1/form/films/0/catalog", tok, `{"id": "nope"}`, http.StatusNotFound},
		{"apply catalog title", http.MethodPost, "/v1/form/films/0/catalog", tok, `{"id": "movie-1"}`, http.StatusOK},
		{"session token on box office", http.MethodGet, "/v1/box-office/rec-1", tok, "", http.StatusForbidden},
		{"set locale", http.MethodPut, "/v1/locale", tok, `{"locale": "de"}`, http.StatusOK},
		{"unknown locale", http.MethodPut, "/v1/locale", tok, `{"locale": "xx"}`, http.StatusBadRequest},
		{"activity", http.MethodPost, "/v1/activity", tok, "", http.StatusNoContent},
	}
	for _, tc := range tests {
		rec := do(e, tc.method, tc.path, tc.token, tc.body)
		if rec.Code != tc.want {
			t.Fatalf("%s: code=%d want %d body=%s", tc.name, rec.Code, tc.want, rec.Body)
		}
	}
}

func TestCatalogAndImageRoutes(t *testing.T) {
	e := newServer(t, pinger{})
	tok := startSession(t, e)

	rec := do(e, http.MethodGet, "/v1/catalog/search?q=Al", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Alien"`) {
		t.Fatalf("search: %d %s", rec.Code, rec.Body)
	}

	rec = do(e, http.MethodGet, "/v1/images/poster-1", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png" {
		t.Fatalf("image: %d %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Cache-Control"); got != catalog.ImageCacheControl {
		t.Fatalf("cache-control = %q", got)
	}
	if rec := do(e, http.MethodGet, "/v1/images/missing", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing image: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	if rec := do(newServer(t, pinger{}), http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthy: %d", rec.Code)
	}
	if rec := do(newServer(t, pinger{err: errors.New("down")}), http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy: %d", rec.Code)
	}
}
