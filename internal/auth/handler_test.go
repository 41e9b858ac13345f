package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T) (*httptest.Server, *fixture) {
	t.Helper()
	f := newFixture(t, 2)
	handler := NewHandler(nil, f.service, NewMiddleware(f.codec, nil))

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, f
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

var signUpBody = map[string]any{
	"firstName":  "Alice",
	"secondName": "Liddell",
	"nickName":   "alice",
	"email":      "alice@example.com",
	"password":   "secret1",
}

func TestSignUpAndSignInFlow(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/sign-up", "", signUpBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var pair TokenPair
	decodeBody(t, resp, &pair)
	require.Greater(t, len(pair.AccessToken), 100)
	require.Greater(t, len(pair.RefreshToken), 100)

	resp = postJSON(t, srv.URL+"/auth/sign-in", "", map[string]any{
		"nickName": "alice",
		"password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var login LoginResult
	decodeBody(t, resp, &login)
	require.Equal(t, "alice", login.Name)
	require.Equal(t, "trainee", login.Role)
	require.NotEmpty(t, login.AccessToken)
}

func TestSignUpValidation(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/sign-up", "", map[string]any{
		"firstName":  "Alice",
		"secondName": "Liddell",
		"nickName":   "alice",
		"email":      "not-an-email",
		"password":   "short",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignUpDuplicateNickname(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/sign-up", "", signUpBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = postJSON(t, srv.URL+"/auth/sign-up", "", signUpBody)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRefreshEndpointRotates(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/sign-up", "", signUpBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pair TokenPair
	decodeBody(t, resp, &pair)

	resp = postJSON(t, srv.URL+"/auth/refresh", "", map[string]any{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The original token is rotated out and no longer exchangeable.
	resp = postJSON(t, srv.URL+"/auth/refresh", "", map[string]any{"refresh_token": pair.RefreshToken})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutRequiresAuth(t *testing.T) {
	srv, _ := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/logout", "", map[string]any{"userId": 2})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutEndpoint(t *testing.T) {
	srv, f := newAuthServer(t)

	resp := postJSON(t, srv.URL+"/auth/sign-up", "", signUpBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var pair TokenPair
	decodeBody(t, resp, &pair)

	resp = postJSON(t, srv.URL+"/auth/logout", pair.AccessToken, map[string]any{"userId": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack map[string]string
	decodeBody(t, resp, &ack)
	require.Equal(t, "Successfully logged out", ack["message"])

	require.False(t, f.mr.Exists("refreshToken:2"))
	revoked, err := f.mr.List("revokedAccessToken:2")
	require.NoError(t, err)
	require.Equal(t, []string{pair.AccessToken}, revoked)
}
