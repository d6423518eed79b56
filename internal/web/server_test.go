package web_test

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/avdeyev/roster/assets"
	"github.com/avdeyev/roster/internal/auth"
	authdb "github.com/avdeyev/roster/internal/auth/db"
	"github.com/avdeyev/roster/internal/db/testdb"
	"github.com/avdeyev/roster/internal/i18n"
	"github.com/avdeyev/roster/internal/krypto"
	"github.com/avdeyev/roster/internal/web"
	"github.com/avdeyev/roster/internal/web/sessions"
	"github.com/avdeyev/roster/internal/web/view"
	gsessions "github.com/gorilla/sessions"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db := testdb.RunTestDB(t)

	svc, err := auth.NewService(authdb.New(db, db))
	if err != nil {
		t.Fatalf("failed to create auth service: %v", err)
	}

	translator, err := i18n.New("en")
	if err != nil {
		t.Fatalf("failed to create translator: %v", err)
	}

	renderer, err := view.NewMemRenderer(assets.TemplateFS, template.FuncMap{
		"t": translator.T,
	})
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	csrfKey, err := krypto.ParseKey(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("failed to parse csrf key: %v", err)
	}

	cookieStore := gsessions.NewCookieStore(
		[]byte(strings.Repeat("c", 32)),
		[]byte(strings.Repeat("d", 32)),
	)

	srv := web.NewServer(&web.ServerDeps{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ViewRenderer: renderer,
		AuthService:  svc,
		SessionStore: sessions.NewStore(cookieStore),
		DistFS:       http.FS(assets.DistFS),
	}, web.ServerConfig{
		CSRFKey:      csrfKey,
		SecureCookie: false,
	})

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return ts
}

// testClient is a http client with a cookie jar that does not follow
// redirects, so each response can be asserted on.
type testClient struct {
	t  *testing.T
	ts *httptest.Server
	c  *http.Client
}

func newTestClient(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	return &testClient{
		t:  t,
		ts: ts,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// get requests the path and returns the status code and body.
func (tc *testClient) get(path string) (int, string) {
	tc.t.Helper()

	resp, err := tc.c.Get(tc.ts.URL + path)
	if err != nil {
		tc.t.Fatalf("failed to GET %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.t.Fatalf("failed to read body of %s: %v", path, err)
	}

	return resp.StatusCode, string(body)
}

var csrfTokenPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// csrfToken requests the path and scrapes the CSRF token from the form
// on the page.
func (tc *testClient) csrfToken(path string) string {
	tc.t.Helper()

	status, body := tc.get(path)
	if status != http.StatusOK {
		tc.t.Fatalf("failed to GET %s: status %d", path, status)
	}

	match := csrfTokenPattern.FindStringSubmatch(body)
	if match == nil {
		tc.t.Fatalf("no csrf token found on %s", path)
	}

	// The attribute value is HTML-escaped; decode it like a browser would.
	return html.UnescapeString(match[1])
}

// postForm posts the form with a CSRF token scraped from tokenPath and
// returns the status code, Location header and body.
func (tc *testClient) postForm(path, tokenPath string, form url.Values) (int, string, string) {
	tc.t.Helper()

	form.Set("csrf_token", tc.csrfToken(tokenPath))

	resp, err := tc.c.PostForm(tc.ts.URL+path, form)
	if err != nil {
		tc.t.Fatalf("failed to POST %s: %v", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tc.t.Fatalf("failed to read body of %s: %v", path, err)
	}

	return resp.StatusCode, resp.Header.Get("Location"), string(body)
}

func (tc *testClient) register(firstName, lastName, email, password string) {
	tc.t.Helper()

	status, location, _ := tc.postForm("/users", "/users/new", url.Values{
		"FirstName": {firstName},
		"LastName":  {lastName},
		"Email":     {email},
		"Password":  {password},
	})
	if status != http.StatusFound || location != "/" {
		tc.t.Fatalf("failed to register: status %d location %q", status, location)
	}
}

func (tc *testClient) signIn(email, password string) (int, string) {
	tc.t.Helper()

	status, location, _ := tc.postForm("/session", "/session/new", url.Values{
		"Email":    {email},
		"Password": {password},
	})

	return status, location
}

func Test_Server_RegisterSignInEditDelete(t *testing.T) {
	ts := newTestServer(t)
	tc := newTestClient(t, ts)

	// An anonymous visitor registers an account.
	tc.register("Jane", "Doe", "jane@example.com", "some password")

	// The homepage welcomes them with a flash message.
	status, body := tc.get("/")
	if status != http.StatusOK {
		t.Fatalf("got status %d want %d", status, http.StatusOK)
	}
	if !strings.Contains(body, "Welcome Jane Doe, your account was created.") {
		t.Errorf("homepage is missing the registration flash")
	}

	// The flash is gone on the next request.
	_, body = tc.get("/")
	if strings.Contains(body, "your account was created") {
		t.Errorf("flash was not consumed")
	}

	// They sign in.
	status, location := tc.signIn("jane@example.com", "some password")
	if status != http.StatusFound || location != "/" {
		t.Fatalf("failed to sign in: status %d location %q", status, location)
	}

	// The member list shows them.
	_, body = tc.get("/users")
	if !strings.Contains(body, "Jane Doe") {
		t.Errorf("member list is missing the new member")
	}

	// The nav now links to their profile, follow it to the edit form.
	userID := scrapeOwnID(t, body)
	editPath := fmt.Sprintf("/users/%d/edit", userID)

	status, body = tc.get(editPath)
	if status != http.StatusOK {
		t.Fatalf("got status %d want %d", status, http.StatusOK)
	}
	if !strings.Contains(body, `value="jane@example.com"`) {
		t.Errorf("edit form is not prefilled")
	}

	// They update their name via the PATCH override.
	status, location, _ = tc.postForm(fmt.Sprintf("/users/%d", userID), editPath, url.Values{
		"_method":   {"PATCH"},
		"FirstName": {"Janet"},
		"LastName":  {"Doe"},
		"Email":     {"jane@example.com"},
	})
	if status != http.StatusFound || location != "/users" {
		t.Fatalf("failed to update: status %d location %q", status, location)
	}

	_, body = tc.get("/users")
	if !strings.Contains(body, "Janet Doe") {
		t.Errorf("member list is missing the updated name")
	}

	// They delete their account via the DELETE override.
	status, location, _ = tc.postForm(fmt.Sprintf("/users/%d", userID), editPath, url.Values{
		"_method": {"DELETE"},
	})
	if status != http.StatusFound || location != "/users" {
		t.Fatalf("failed to delete: status %d location %q", status, location)
	}

	// Their session is gone, the edit page now denies them.
	status, _ = tc.get(editPath)
	if status != http.StatusForbidden {
		t.Errorf("got status %d want %d", status, http.StatusForbidden)
	}

	// And the member list no longer shows them.
	_, body = tc.get("/users")
	if strings.Contains(body, "Janet Doe") {
		t.Errorf("member list still shows the deleted member")
	}
}

// scrapeOwnID extracts the user id from the profile link in the nav.
func scrapeOwnID(t *testing.T, body string) int {
	t.Helper()

	match := regexp.MustCompile(`href="/users/(\d+)/edit"`).FindStringSubmatch(body)
	if match == nil {
		t.Fatalf("no profile link found")
	}

	var id int
	if _, err := fmt.Sscanf(match[1], "%d", &id); err != nil {
		t.Fatalf("failed to parse user id: %v", err)
	}

	return id
}

func Test_Server_RegisterValidation(t *testing.T) {
	t.Run("fail, missing fields re-render the form", func(t *testing.T) {
		ts := newTestServer(t)
		tc := newTestClient(t, ts)

		status, _, body := tc.postForm("/users", "/users/new", url.Values{
			"FirstName": {"Jane"},
		})
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("got status %d want %d", status, http.StatusUnprocessableEntity)
		}

		// The submitted values survive the round trip.
		if !strings.Contains(body, `value="Jane"`) {
			t.Errorf("form is missing the submitted first name")
		}

		if !strings.Contains(body, "field-error") {
			t.Errorf("form is missing the field errors")
		}
	})

	t.Run("fail, duplicate email re-renders the form", func(t *testing.T) {
		ts := newTestServer(t)
		tc := newTestClient(t, ts)

		tc.register("Jane", "Doe", "jane@example.com", "some password")

		status, _, body := tc.postForm("/users", "/users/new", url.Values{
			"FirstName": {"Other"},
			"LastName":  {"Jane"},
			"Email":     {"jane@example.com"},
			"Password":  {"other password"},
		})
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("got status %d want %d", status, http.StatusUnprocessableEntity)
		}

		if !strings.Contains(body, "email already taken") {
			t.Errorf("form is missing the duplicate email error")
		}
	})
}

func Test_Server_SignInFailures(t *testing.T) {
	// Unknown emails and wrong passwords must be indistinguishable.
	tests := map[string]struct {
		email    string
		password string
	}{
		"unknown email":  {"nobody@example.com", "some password"},
		"wrong password": {"jane@example.com", "other password"},
		"empty password": {"jane@example.com", ""},
	}

	for name, tc := range tests {
		t.Run("fail, "+name, func(t *testing.T) {
			ts := newTestServer(t)
			client := newTestClient(t, ts)

			client.register("Jane", "Doe", "jane@example.com", "some password")

			status, location := client.signIn(tc.email, tc.password)
			if status != http.StatusFound || location != "/session/new" {
				t.Fatalf("got status %d location %q", status, location)
			}

			_, body := client.get("/session/new")
			if !strings.Contains(body, "Invalid email or password.") {
				t.Errorf("sign in page is missing the failure flash")
			}
		})
	}
}

func Test_Server_OwnerGuard(t *testing.T) {
	t.Run("fail, anonymous visitors are denied", func(t *testing.T) {
		ts := newTestServer(t)
		tc := newTestClient(t, ts)

		// Same response whether the account exists or not.
		for _, path := range []string{"/users/1/edit", "/users/999/edit"} {
			status, _ := tc.get(path)
			if status != http.StatusForbidden {
				t.Errorf("%s: got status %d want %d", path, status, http.StatusForbidden)
			}
		}
	})

	t.Run("fail, other users are denied", func(t *testing.T) {
		ts := newTestServer(t)

		other := newTestClient(t, ts)
		other.register("John", "Doe", "john@example.com", "some password")

		tc := newTestClient(t, ts)
		tc.register("Jane", "Doe", "jane@example.com", "some password")
		tc.signIn("jane@example.com", "some password")

		_, body := tc.get("/users")
		ownID := scrapeOwnID(t, body)

		// Probe ids around our own, the only allowed one is our own.
		for id := 1; id <= 3; id++ {
			status, _ := tc.get(fmt.Sprintf("/users/%d/edit", id))

			want := http.StatusForbidden
			if id == ownID {
				want = http.StatusOK
			}

			if status != want {
				t.Errorf("id %d: got status %d want %d", id, status, want)
			}
		}
	})

	t.Run("fail, non-numeric id is not found", func(t *testing.T) {
		ts := newTestServer(t)
		tc := newTestClient(t, ts)

		status, _ := tc.get("/users/abc/edit")
		if status != http.StatusNotFound {
			t.Errorf("got status %d want %d", status, http.StatusNotFound)
		}
	})
}

func Test_Server_SignOut(t *testing.T) {
	ts := newTestServer(t)
	tc := newTestClient(t, ts)

	tc.register("Jane", "Doe", "jane@example.com", "some password")
	tc.signIn("jane@example.com", "some password")

	_, body := tc.get("/")
	ownID := scrapeOwnID(t, body)

	status, location, _ := tc.postForm("/session", "/", url.Values{
		"_method": {"DELETE"},
	})
	if status != http.StatusFound || location != "/" {
		t.Fatalf("failed to sign out: status %d location %q", status, location)
	}

	// The session is gone.
	status, _ = tc.get(fmt.Sprintf("/users/%d/edit", ownID))
	if status != http.StatusForbidden {
		t.Errorf("got status %d want %d", status, http.StatusForbidden)
	}
}

func Test_Server_TamperedSessionCookie(t *testing.T) {
	ts := newTestServer(t)
	tc := newTestClient(t, ts)

	tc.register("Jane", "Doe", "jane@example.com", "some password")
	tc.signIn("jane@example.com", "some password")

	_, body := tc.get("/")
	ownID := scrapeOwnID(t, body)

	// Corrupt the session cookie.
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("failed to parse server url: %v", err)
	}

	tc.c.Jar.SetCookies(u, []*http.Cookie{{
		Name:  sessions.CookieName,
		Value: "garbage",
	}})

	// The request continues as an anonymous visitor.
	status, body := tc.get("/")
	if status != http.StatusOK {
		t.Fatalf("got status %d want %d", status, http.StatusOK)
	}
	if strings.Contains(body, "/session/new") == false {
		t.Errorf("homepage does not show the anonymous nav")
	}

	status, _ = tc.get(fmt.Sprintf("/users/%d/edit", ownID))
	if status != http.StatusForbidden {
		t.Errorf("got status %d want %d", status, http.StatusForbidden)
	}
}

func Test_Server_CSRFProtection(t *testing.T) {
	ts := newTestServer(t)
	tc := newTestClient(t, ts)

	// A POST without a CSRF token is rejected.
	resp, err := tc.c.PostForm(ts.URL+"/users", url.Values{
		"FirstName": {"Jane"},
		"LastName":  {"Doe"},
		"Email":     {"jane@example.com"},
		"Password":  {"some password"},
	})
	if err != nil {
		t.Fatalf("failed to POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("got status %d want %d", resp.StatusCode, http.StatusForbidden)
	}
}

func Test_Server_StaticFiles(t *testing.T) {
	ts := newTestServer(t)
	tc := newTestClient(t, ts)

	status, body := tc.get("/static/style.css")
	if status != http.StatusOK {
		t.Fatalf("got status %d want %d", status, http.StatusOK)
	}

	if !strings.Contains(body, "font-family") {
		t.Errorf("stylesheet looks wrong")
	}
}
