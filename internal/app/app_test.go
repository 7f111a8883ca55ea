package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/http/dto"
	"github.com/dropDatabas3/authority/internal/rbac"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("JWT_SIGNING_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("BOOTSTRAP_ADMIN_EMAIL", "root@example.com")
	t.Setenv("BOOTSTRAP_ADMIN_PASSWORD", "correct-horse")
	t.Setenv("OAUTH_SINGLE_USE_CODES", "true")
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Password.Argon2.Memory = 1024
	cfg.Password.Argon2.Iterations = 1
	return cfg
}

func post(t *testing.T, h http.Handler, path, ct, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAppWiresBootstrapAdminAndLedger(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	rec := post(t, a.Handler, "/authorize", "application/json",
		`{"provider":"local","redirect_uri":"https://client/cb","state":"st","username":"root@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var az dto.AuthorizeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&az))

	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {az.AuthorizationCode},
		"redirect_uri": {"https://client/cb"},
	}.Encode()
	rec = post(t, a.Handler, "/token", "application/x-www-form-urlencoded", form)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok dto.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tok))

	rec = post(t, a.Handler, "/token", "application/x-www-form-urlencoded", form)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "replayed code")

	req := httptest.NewRequest(http.MethodGet, "/userinfo", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var ui dto.UserInfoResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ui))
	assert.Equal(t, []string{rbac.RoleAdmin}, ui.Roles)

	rec = httptest.NewRecorder()
	a.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBuildRegistry(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Google.Enabled = true
	cfg.Providers.Google.ClientID = "cid"
	cfg.Providers.Google.ClientSecret = "secret"
	cfg.Providers.Google.RedirectURL = "https://authority/cb"

	reg := BuildRegistry(cfg)
	assert.Equal(t, []string{"github", "google", "microsoft"}, reg.Names())

	p, err := reg.Create("google")
	require.NoError(t, err)
	assert.Equal(t, "google", p.Name())
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
	var nilApp *App
	assert.NoError(t, nilApp.Close())
}

func TestAppRateLimitsAuthorize(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	t.Setenv("RATE_LIMIT_AUTHORIZE", "1")
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	body := `{"provider":"local","redirect_uri":"https://client/cb","state":"st","username":"nobody@example.com","password":"whatever-pass"}`
	rec := post(t, a.Handler, "/authorize", "application/json", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(t, a.Handler, "/authorize", "application/json", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
