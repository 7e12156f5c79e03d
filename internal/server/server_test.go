package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"myblog/internal/config"
	"myblog/internal/models"
	"myblog/internal/service"
	"myblog/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "server-test-secret-0123456789abcdef"
	testPassword = "correct-horse-battery"
)

type fixture struct {
	srv *Server
	app *fiber.App
	mr  *miniredis.Miniredis
}

func testConfig() *config.Config {
	return &config.Config{
		Env:               "test",
		Port:              "8375",
		JWTSecret:         testSecret,
		PasswordHasher:    "bcrypt",
		SessionTTLMinutes: 60,
		TokenTTLHours:     1,
		AllowedOrigins:    "http://localhost:8375",
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	db := testutil.NewSQLiteDB(t)
	mr, rdb := testutil.NewRedis(t)

	srv, err := NewServerWithDeps(cfg, db, rdb)
	require.NoError(t, err)
	return &fixture{srv: srv, app: srv.App(), mr: mr}
}

func (f *fixture) user(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	u, err := f.srv.userService.CreateUser(context.Background(), service.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) post(t *testing.T, author *models.User, title string) *models.Post {
	t.Helper()
	p, err := f.srv.postService.CreatePost(context.Background(), service.CreatePostInput{
		AuthorID: author.ID,
		Title:    title,
		Content:  "Body of " + title,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func formRequest(method, target string, form url.Values, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func getRequest(target string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func jsonRequest(method, target, body, bearer string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+bearer)
	}
	return req
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

// login signs username in through the form and returns the session cookie.
func (f *fixture) login(t *testing.T, username string) *http.Cookie {
	t.Helper()
	resp := f.do(t, formRequest(http.MethodPost, "/user/login", url.Values{
		"username": {username},
		"password": {testPassword},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	cookie := cookieNamed(resp, "myblog_session")
	require.NotNil(t, cookie)
	return cookie
}

func (f *fixture) token(t *testing.T, username string) string {
	t.Helper()
	resp := f.do(t, jsonRequest(http.MethodPost, "/api/auth/token",
		`{"username":"`+username+`","password":"`+testPassword+`"}`, ""))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestIndex_ListsPostsEscaped(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	f.post(t, bob, "P1")
	f.post(t, bob, "<script>alert(1)</script>")

	resp := f.do(t, getRequest("/"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)

	assert.Contains(t, body, "P1")
	assert.Contains(t, body, "by bob")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `href="/user/login"`)
}

func TestLogin_WrongPasswordKeepsClientAnonymous(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)

	for _, form := range []url.Values{
		{"username": {"bob"}, "password": {"wrong-password"}},
		{"username": {"nobody"}, "password": {testPassword}},
		{"username": {""}, "password": {""}},
	} {
		resp := f.do(t, formRequest(http.MethodPost, "/user/login", form))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "Invalid username or password")
		assert.Nil(t, cookieNamed(resp, "myblog_session"))
	}
}

func TestLogin_SuccessBindsSession(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)

	resp := f.do(t, formRequest(http.MethodPost, "/user/login", url.Values{
		"username": {"bob"},
		"password": {testPassword},
	}))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))
	cookie := cookieNamed(resp, "myblog_session")
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	page := f.do(t, getRequest("/user/profile", cookie))
	require.Equal(t, http.StatusOK, page.StatusCode)
	body := readBody(t, page)
	assert.Contains(t, body, "bob@example.com")
	assert.Contains(t, body, "Welcome back, bob!")

	// Flashes are shown once.
	again := f.do(t, getRequest("/user/profile", cookie))
	assert.NotContains(t, readBody(t, again), "Welcome back")
}

func TestLogin_NextRedirectStaysLocal(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)

	tests := []struct {
		next     string
		location string
	}{
		{"/user/posts", "/user/posts"},
		{"//evil.example.com/", "/"},
		{"https://evil.example.com/", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.next, func(t *testing.T) {
			resp := f.do(t, formRequest(http.MethodPost, "/user/login", url.Values{
				"username": {"bob"},
				"password": {testPassword},
				"next":     {tt.next},
			}))
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.location, resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestProtectedPages_RedirectAnonymousToLogin(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/user/profile", "/user/posts", "/user/posts/new", "/admin/dashboard"} {
		t.Run(path, func(t *testing.T) {
			resp := f.do(t, getRequest(path))
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/user/login?next="+url.QueryEscape(path), resp.Header.Get(fiber.HeaderLocation))
		})
	}
}

func TestLoginPage_CarriesNext(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, getRequest("/user/login?next=%2Fuser%2Fposts"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `name="next" value="/user/posts"`)
}

func TestLogout_EndsSession(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)
	cookie := f.login(t, "bob")

	resp := f.do(t, formRequest(http.MethodPost, "/user/logout", url.Values{}, cookie))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	stale := f.do(t, getRequest("/user/profile", cookie))
	assert.Equal(t, http.StatusFound, stale.StatusCode)

	fresh := cookieNamed(resp, "myblog_session")
	require.NotNil(t, fresh)
	home := f.do(t, getRequest("/", fresh))
	assert.Contains(t, readBody(t, home), "You have been logged out.")
}

func TestLogin_DeletedUserSessionIsCleared(t *testing.T) {
	f := newFixture(t)
	carol := f.user(t, "carol", models.RoleUser)
	cookie := f.login(t, "carol")

	require.NoError(t, f.srv.userService.DeleteUser(context.Background(), 0, carol.ID))

	resp := f.do(t, getRequest("/user/profile", cookie))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderLocation), "/user/login")
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	f.user(t, "alice", models.RoleUser)

	t.Run("creates and signs in", func(t *testing.T) {
		resp := f.do(t, formRequest(http.MethodPost, "/user/register", url.Values{
			"username":         {"dave"},
			"email":            {"dave@example.com"},
			"password":         {testPassword},
			"confirm_password": {testPassword},
		}))
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/user/profile", resp.Header.Get(fiber.HeaderLocation))

		cookie := cookieNamed(resp, "myblog_session")
		require.NotNil(t, cookie)
		page := f.do(t, getRequest("/user/profile", cookie))
		assert.Equal(t, http.StatusOK, page.StatusCode)
		assert.Contains(t, readBody(t, page), "Welcome to myblog, dave!")
	})

	t.Run("duplicate username", func(t *testing.T) {
		resp := f.do(t, formRequest(http.MethodPost, "/user/register", url.Values{
			"username":         {"alice"},
			"email":            {"other@example.com"},
			"password":         {testPassword},
			"confirm_password": {testPassword},
		}))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "username already taken")

		n, err := f.srv.userService.CountUsers(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		resp := f.do(t, formRequest(http.MethodPost, "/user/register", url.Values{
			"username":         {"erin"},
			"email":            {"erin@example.com"},
			"password":         {testPassword},
			"confirm_password": {"something-else"},
		}))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		body := readBody(t, resp)
		assert.Contains(t, body, "passwords must match")
		assert.NotContains(t, body, testPassword)
	})
}

func TestRegister_DisabledByFlag(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.FeatureFlags = "open_registration=off" })

	resp := f.do(t, getRequest("/user/register"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePost_AppendsToAuthorsPosts(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)
	cookie := f.login(t, "bob")

	for _, title := range []string{"P1", "P2"} {
		resp := f.do(t, formRequest(http.MethodPost, "/user/posts/new", url.Values{
			"title":   {title},
			"content": {"Content of " + title},
		}, cookie))
		require.Equal(t, http.StatusFound, resp.StatusCode)
		assert.Equal(t, "/user/posts", resp.Header.Get(fiber.HeaderLocation))
	}

	resp := f.do(t, getRequest("/user/posts", cookie))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	p1, p2 := strings.Index(body, "<h2>P1</h2>"), strings.Index(body, "<h2>P2</h2>")
	require.NotEqual(t, -1, p1)
	require.NotEqual(t, -1, p2)
	assert.Less(t, p1, p2)
}

func TestCreatePost_ValidationRerendersForm(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)
	cookie := f.login(t, "bob")

	resp := f.do(t, formRequest(http.MethodPost, "/user/posts/new", url.Values{
		"title":   {"   "},
		"content": {"kept text"},
	}, cookie))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "kept text")
	assert.Contains(t, body, "field-error")
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)
	f.user(t, "root", models.RoleAdmin)

	bob := f.login(t, "bob")
	for _, path := range []string{"/admin/dashboard", "/admin/manage_users", "/admin/manage_posts"} {
		resp := f.do(t, getRequest(path, bob))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}

	root := f.login(t, "root")
	resp := f.do(t, getRequest("/admin/dashboard", root))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Users: 2")
	assert.Contains(t, body, "Admins: 1")
}

func TestAdmin_DeleteUserIsRestrictedByPosts(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	quiet := f.user(t, "quiet", models.RoleUser)
	f.user(t, "root", models.RoleAdmin)
	f.post(t, bob, "P1")
	root := f.login(t, "root")

	resp := f.do(t, formRequest(http.MethodPost, "/admin/users/"+itoa(bob.ID)+"/delete", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/manage_users", resp.Header.Get(fiber.HeaderLocation))

	_, err := f.srv.userService.GetUserByID(context.Background(), bob.ID)
	require.NoError(t, err, "bob owns posts and must survive")

	page := f.do(t, getRequest("/admin/manage_users", root))
	assert.Contains(t, readBody(t, page), "user still owns posts")

	resp = f.do(t, formRequest(http.MethodPost, "/admin/users/"+itoa(quiet.ID)+"/delete", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	_, err = f.srv.userService.GetUserByID(context.Background(), quiet.ID)
	assert.True(t, models.IsNotFound(err))
}

func TestAdmin_PromoteDemoteAndDeletePost(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	rootUser := f.user(t, "root", models.RoleAdmin)
	p := f.post(t, bob, "P1")
	root := f.login(t, "root")

	resp := f.do(t, formRequest(http.MethodPost, "/admin/users/"+itoa(bob.ID)+"/promote", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	got, err := f.srv.userService.GetUserByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	resp = f.do(t, formRequest(http.MethodPost, "/admin/users/"+itoa(bob.ID)+"/demote", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	got, err = f.srv.userService.GetUserByID(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, got.Role)

	// Self-demotion is refused and reported.
	resp = f.do(t, formRequest(http.MethodPost, "/admin/users/"+itoa(rootUser.ID)+"/demote", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	got, err = f.srv.userService.GetUserByID(context.Background(), rootUser.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, got.Role)

	resp = f.do(t, formRequest(http.MethodPost, "/admin/posts/"+itoa(p.ID)+"/delete", url.Values{}, root))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/admin/manage_posts", resp.Header.Get(fiber.HeaderLocation))
	_, err = f.srv.postService.GetPost(context.Background(), p.ID)
	assert.True(t, models.IsNotFound(err))

	resp = f.do(t, formRequest(http.MethodPost, "/admin/posts/abc/delete", url.Values{}, root))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_AnonymousGetsJSON401(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, getRequest("/api/me"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, models.CodeUnauthorized, body.Code)
}

func TestAPI_TokenLifecycle(t *testing.T) {
	f := newFixture(t)
	f.user(t, "bob", models.RoleUser)

	bad := f.do(t, jsonRequest(http.MethodPost, "/api/auth/token", `{"username":"bob","password":"nope"}`, ""))
	require.Equal(t, http.StatusUnauthorized, bad.StatusCode)
	var failure models.ErrorResponse
	require.NoError(t, json.NewDecoder(bad.Body).Decode(&failure))
	assert.Equal(t, models.CodeAuthenticationFailure, failure.Code)

	token := f.token(t, "bob")

	me := f.do(t, jsonRequest(http.MethodGet, "/api/me", "", token))
	require.Equal(t, http.StatusOK, me.StatusCode)
	var user models.User
	require.NoError(t, json.NewDecoder(me.Body).Decode(&user))
	assert.Equal(t, "bob", user.Username)
	assert.Empty(t, user.Password)

	revoke := f.do(t, jsonRequest(http.MethodPost, "/api/auth/revoke", "", token))
	require.Equal(t, http.StatusNoContent, revoke.StatusCode)

	after := f.do(t, jsonRequest(http.MethodGet, "/api/me", "", token))
	assert.Equal(t, http.StatusUnauthorized, after.StatusCode)
}

func TestAPI_PostsByAuthor(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	token := f.token(t, "bob")

	for _, title := range []string{"P1", "P2"} {
		resp := f.do(t, jsonRequest(http.MethodPost, "/api/posts",
			`{"title":"`+title+`","content":"text"}`, token))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	invalid := f.do(t, jsonRequest(http.MethodPost, "/api/posts", `{"title":"","content":"text"}`, token))
	require.Equal(t, http.StatusBadRequest, invalid.StatusCode)
	var verr models.ErrorResponse
	require.NoError(t, json.NewDecoder(invalid.Body).Decode(&verr))
	assert.Equal(t, "title", verr.Field)

	resp := f.do(t, getRequest("/api/users/"+itoa(bob.ID)+"/posts"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Posts []models.Post `json:"posts"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Posts, 2)
	assert.Equal(t, "P1", body.Posts[0].Title)
	assert.Equal(t, "P2", body.Posts[1].Title)
	assert.Equal(t, bob.ID, body.Posts[0].AuthorID)

	missing := f.do(t, getRequest("/api/users/9999/posts"))
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestAPI_PublicPostsHideAuthorDetails(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	root := f.user(t, "root", models.RoleAdmin)
	f.post(t, bob, "Hello")
	f.post(t, root, "Notice")

	for _, target := range []string{"/api/posts", "/api/users/" + itoa(bob.ID) + "/posts"} {
		t.Run(target, func(t *testing.T) {
			resp := f.do(t, getRequest(target))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			raw := readBody(t, resp)
			assert.NotContains(t, raw, "@example.com")
			assert.NotContains(t, raw, `"email"`)
			assert.NotContains(t, raw, `"role"`)

			var body struct {
				Posts []PostResponse `json:"posts"`
			}
			require.NoError(t, json.Unmarshal([]byte(raw), &body))
			require.NotEmpty(t, body.Posts)
			for _, p := range body.Posts {
				if target != "/api/posts" {
					assert.Equal(t, bob.ID, p.AuthorID)
					continue
				}
				require.NotNil(t, p.Author)
				assert.Equal(t, p.AuthorID, p.Author.ID)
				assert.NotEmpty(t, p.Author.Username)
			}
		})
	}
}

func TestAPI_AdminRoutes(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", models.RoleUser)
	f.user(t, "root", models.RoleAdmin)

	userToken := f.token(t, "bob")
	resp := f.do(t, jsonRequest(http.MethodGet, "/api/admin/users", "", userToken))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	adminToken := f.token(t, "root")
	resp = f.do(t, jsonRequest(http.MethodGet, "/api/admin/users", "", adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Users []models.User `json:"users"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list.Users, 2)

	resp = f.do(t, jsonRequest(http.MethodPut, "/api/admin/users/"+itoa(bob.ID)+"/role", `{"role":"admin"}`, adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, jsonRequest(http.MethodPut, "/api/admin/users/"+itoa(bob.ID)+"/role", `{"role":"owner"}`, adminToken))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, jsonRequest(http.MethodGet, "/api/admin/stats", "", adminToken))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats service.DashboardStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Admins)
}

func TestAPI_DisabledByFlag(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.FeatureFlags = "api_tokens=off" })

	resp := f.do(t, jsonRequest(http.MethodPost, "/api/auth/token", `{"username":"x","password":"y"}`, ""))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCSRF_FormPostsNeedToken(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CSRFEnabled = true })
	f.user(t, "bob", models.RoleUser)

	form := url.Values{"username": {"bob"}, "password": {testPassword}}
	resp := f.do(t, formRequest(http.MethodPost, "/user/login", form))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	page := f.do(t, getRequest("/user/login"))
	require.Equal(t, http.StatusOK, page.StatusCode)
	csrfCookie := cookieNamed(page, "myblog_csrf")
	require.NotNil(t, csrfCookie)
	assert.Contains(t, readBody(t, page), `name="_csrf" value="`+csrfCookie.Value+`"`)

	form.Set("_csrf", csrfCookie.Value)
	resp = f.do(t, formRequest(http.MethodPost, "/user/login", form, csrfCookie))
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	// Bearer API calls are exempt.
	token := f.token(t, "bob")
	resp = f.do(t, jsonRequest(http.MethodPost, "/api/posts", `{"title":"T","content":"C"}`, token))
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestCSRF_SessionCannotRideOnBearerExemption(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.CSRFEnabled = true })
	bob := f.user(t, "bob", models.RoleUser)

	page := f.do(t, getRequest("/user/login"))
	csrfCookie := cookieNamed(page, "myblog_csrf")
	require.NotNil(t, csrfCookie)
	form := url.Values{"username": {"bob"}, "password": {testPassword}, "_csrf": {csrfCookie.Value}}
	resp := f.do(t, formRequest(http.MethodPost, "/user/login", form, csrfCookie))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	session := cookieNamed(resp, "myblog_session")
	require.NotNil(t, session)

	req := jsonRequest(http.MethodPost, "/api/posts", `{"title":"T","content":"C"}`, "")
	req.AddCookie(session)
	resp = f.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req = jsonRequest(http.MethodPost, "/api/posts", `{"title":"T","content":"C"}`, "garbage")
	req.AddCookie(session)
	resp = f.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	n, err := f.srv.postService.CountPostsByAuthor(context.Background(), bob.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	live := f.do(t, getRequest("/health/live"))
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready := f.do(t, getRequest("/health/ready"))
	require.Equal(t, http.StatusOK, ready.StatusCode)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(ready.Body).Decode(&body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "sqlite", body.Checks["dialect"])

	f.mr.Close()
	down := f.do(t, getRequest("/health/ready"))
	assert.Equal(t, http.StatusServiceUnavailable, down.StatusCode)
}

func TestHealth_ReadinessReportsRedisStatus(t *testing.T) {
	decode := func(t *testing.T, resp *http.Response) (string, string) {
		t.Helper()
		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Status, body.Checks["redis"]
	}

	srv, err := NewServerWithDeps(testConfig(), testutil.NewSQLiteDB(t), nil)
	require.NoError(t, err)
	f := &fixture{srv: srv, app: srv.App()}

	resp := f.do(t, getRequest("/health/ready"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status, redisStatus := decode(t, resp)
	assert.Equal(t, "healthy", status)
	assert.Equal(t, "disabled", redisStatus)

	srv.redisErr = errors.New("redis ping failed: connection refused")
	resp = f.do(t, getRequest("/health/ready"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status, redisStatus = decode(t, resp)
	assert.Equal(t, "degraded", status)
	assert.Equal(t, "degraded", redisStatus)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, getRequest("/health/live"))

	resp := f.do(t, getRequest("/metrics"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "http_requests_total")
}

func TestAPIDocs(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, getRequest("/api/swagger/doc.json"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "myblog API")
	assert.Contains(t, body, "/auth/token")
}

func TestUnknownRoute_RendersErrorPage(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, getRequest("/no/such/page"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), fiber.MIMETextHTML)
}
