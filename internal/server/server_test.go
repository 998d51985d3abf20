package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/purr4furr/purr-backend/internal/auth"
	"github.com/purr4furr/purr-backend/internal/db"
	"github.com/purr4furr/purr-backend/internal/repository"
	"github.com/purr4furr/purr-backend/internal/server"
	"github.com/purr4furr/purr-backend/internal/service/dating"
)

type fixture struct {
	ts      *httptest.Server
	backend *dating.MemoryBackend
	tokens  *auth.TokenManager
}

func setupServer(t *testing.T) *fixture {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.Profile{}))

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authSvc := auth.NewService(repository.NewProfileRepository(database), tokens, nil)

	backend := dating.NewMemoryBackend()
	backend.AddProfile(dating.Profile{ID: "me", FirstName: "Alex", DisplayName: "Alex Wolf", Age: 27})
	backend.AddProfile(dating.Profile{ID: "u2", FirstName: "Luna", DisplayName: "Luna Fox", Age: 25})
	backend.AddProfile(dating.Profile{ID: "u3", FirstName: "Riley", DisplayName: "Riley Cat", Age: 30})
	backend.SeedLike("u2", "me")

	srv := server.New(backend, authSvc, tokens, nil, server.Options{FeedLimit: 20})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{ts: ts, backend: backend, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.ts.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.tokens.Issue(userID)
	require.NoError(t, err)
	return token
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	f := setupServer(t)

	resp := f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email":           "alex@example.com",
		"password":        "hunter2hunter2",
		"first_name":      "Alex",
		"age":             27,
		"bio":             "husky, hiking",
		"profile_picture": "https://cdn.example.com/alex.jpg",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	creds := decode[auth.Credentials](t, resp)
	assert.NotEmpty(t, creds.Token)

	resp = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "alex@example.com",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	logged := decode[auth.Credentials](t, resp)
	assert.Equal(t, creds.UserID, logged.UserID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := setupServer(t)

	f.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"email": "alex@example.com", "password": "hunter2hunter2", "first_name": "Alex", "age": 27,
	})

	resp := f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alex@example.com", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := setupServer(t)

	resp := f.do(t, http.MethodGet, "/api/v1/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/matches", "bad-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestFeedEndpoint(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodGet, "/api/v1/feed", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Profiles []dating.Profile `json:"profiles"`
	}](t, resp)
	assert.Len(t, body.Profiles, 2)
}

func TestLikeAndMatchFlow(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	// u3 has not liked me
	resp := f.do(t, http.MethodPost, "/api/v1/likes/u3", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[struct {
		Matched bool `json:"matched"`
	}](t, resp).Matched)

	// u2 has, so this produces a match
	resp = f.do(t, http.MethodPost, "/api/v1/likes/u2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[struct {
		Matched bool `json:"matched"`
	}](t, resp).Matched)

	resp = f.do(t, http.MethodGet, "/api/v1/matches", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	matches := decode[struct {
		Matches []dating.Match `json:"matches"`
	}](t, resp).Matches
	require.Len(t, matches, 1)
	assert.Equal(t, "u2", matches[0].OtherUserID)
}

func TestSelfLikeIsRejected(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodPost, "/api/v1/likes/me", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestMessagingFlow(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodPost, "/api/v1/likes/u2", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/matches", token, nil)
	matchID := decode[struct {
		Matches []dating.Match `json:"matches"`
	}](t, resp).Matches[0].MatchID

	resp = f.do(t, http.MethodPost, "/api/v1/matches/"+matchID+"/messages", token, map[string]string{
		"receiver_id": "u2",
		"content":     "hey there",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	msg := decode[dating.Message](t, resp)
	assert.Equal(t, "hey there", msg.Content)
	assert.Equal(t, "me", msg.SenderID)

	resp = f.do(t, http.MethodGet, "/api/v1/matches/"+matchID+"/messages", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msgs := decode[struct {
		Messages []dating.Message `json:"messages"`
	}](t, resp).Messages
	require.Len(t, msgs, 1)

	resp = f.do(t, http.MethodPost, "/api/v1/matches/"+matchID+"/read", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

func TestMessagesHiddenFromOutsiders(t *testing.T) {
	f := setupServer(t)
	meToken := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodPost, "/api/v1/likes/u2", meToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/matches", meToken, nil)
	matchID := decode[struct {
		Matches []dating.Match `json:"matches"`
	}](t, resp).Matches[0].MatchID

	// u3 is not part of the match
	resp = f.do(t, http.MethodGet, "/api/v1/matches/"+matchID+"/messages", f.tokenFor(t, "u3"), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/v1/matches/"+matchID+"/messages", f.tokenFor(t, "u3"), map[string]string{
		"receiver_id": "me", "content": "let me in",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()
}

func TestUnlikeAndPass(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodPost, "/api/v1/likes/u3", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/api/v1/likes/u3", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/v1/passes/u3", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// passed profile no longer appears in the feed
	resp = f.do(t, http.MethodGet, "/api/v1/feed", token, nil)
	profiles := decode[struct {
		Profiles []dating.Profile `json:"profiles"`
	}](t, resp).Profiles
	for _, p := range profiles {
		assert.NotEqual(t, "u3", p.ID)
	}
}

func TestLikedYouUnavailableWithoutPagedBackend(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodGet, "/api/v1/liked-you", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodGet, "/api/v1/liked-you/count", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestPresenceEndpoints(t *testing.T) {
	f := setupServer(t)
	token := f.tokenFor(t, "me")

	resp := f.do(t, http.MethodPost, "/api/v1/presence/heartbeat", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = f.do(t, http.MethodDelete, "/api/v1/presence", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}
