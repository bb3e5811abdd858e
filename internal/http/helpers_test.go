package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/DrMneff/digital-unlock-oasis/internal/config"
	"github.com/DrMneff/digital-unlock-oasis/internal/domain"
	"github.com/DrMneff/digital-unlock-oasis/internal/http/handlers"
	applog "github.com/DrMneff/digital-unlock-oasis/internal/log"
	"github.com/DrMneff/digital-unlock-oasis/internal/notify"
	"github.com/DrMneff/digital-unlock-oasis/internal/repos"
)

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Kind   string         `json:"kind"`
	Status int            `json:"status"`
	UserID string         `json:"user_id"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuf) entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(strings.TrimSpace(l.b.String()), "\n") {
		var e logEntry
		if json.Unmarshal([]byte(line), &e) == nil && e.Action != "" {
			out = append(out, e)
		}
	}
	return out
}

func (l *lockedBuf) find(action string) (logEntry, bool) {
	for _, e := range l.entries() {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

type testApp struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
	logs *lockedBuf
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, string, any) {}

var _ notify.Dispatcher = nopDispatcher{}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logs := &lockedBuf{}
	applog.SetOutput(logs)
	t.Cleanup(func() { applog.SetOutput(os.Stdout) })

	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		PublicURL:     "http://shop.test",
		RateLimit:     500,
		WhatsAppPhone: "966500000000",
		PayPalEmail:   "pay@example.com",
		Store:         config.DefaultStore(),
	}
	deps := handlers.NewDeps(db, cfg, nopDispatcher{})
	app, err := handlers.NewApp(deps, cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testApp{app: app, db: db, deps: deps, logs: logs}
}

// addUser inserts a confirmed account and binds a session to it.
func (ta *testApp) addUser(t *testing.T, email, password, role string) (*domain.User, string) {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := domain.User{ID: uuid.NewString(), Email: email, Name: "Test", Hash: string(h), Role: role, Confirmed: true}
	users := repos.NewUserRepo(ta.db)
	if err := users.Create(u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	sid := uuid.NewString()
	if err := users.BindSession(sid, u.ID); err != nil {
		t.Fatalf("bind session: %v", err)
	}
	return &u, sid
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrfToken fetches a token from the login form.
func (ta *testApp) csrfToken(t *testing.T) string {
	t.Helper()
	resp, err := ta.app.Test(httptest.NewRequest(http.MethodGet, "/login", nil))
	if err != nil {
		t.Fatal(err)
	}
	tok := cookieValue(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

func (ta *testApp) get(t *testing.T, path, sid string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

// post sends a form with a valid CSRF token.
func (ta *testApp) post(t *testing.T, path, sid, csrf string, form url.Values) *http.Response {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf", csrf)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrf})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
