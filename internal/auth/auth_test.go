package auth_test

import (
	"context"
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
	svcErr "github.com/purr4furr/purr-backend/internal/errors"
	"github.com/purr4furr/purr-backend/internal/repository"
)

func setupService(t *testing.T) (*auth.Service, *gorm.DB) {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&db.Profile{}))

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	return auth.NewService(repository.NewProfileRepository(database), tokens, nil), database
}

func validInput() auth.RegisterInput {
	return auth.RegisterInput{
		Email:          "alex@example.com",
		Password:       "hunter2hunter2",
		FirstName:      "Alex",
		Age:            27,
		Bio:            "husky, hiking, bad puns",
		ProfilePicture: "https://cdn.example.com/alex.jpg",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	creds, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, creds.UserID)
	assert.NotEmpty(t, creds.Token)

	logged, err := svc.Login(ctx, "Alex@Example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, creds.UserID, logged.UserID)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	cases := []struct {
		name   string
		mutate func(*auth.RegisterInput)
	}{
		{"bad email", func(in *auth.RegisterInput) { in.Email = "not-an-email" }},
		{"short password", func(in *auth.RegisterInput) { in.Password = "short" }},
		{"no first name", func(in *auth.RegisterInput) { in.FirstName = "  " }},
		{"underage", func(in *auth.RegisterInput) { in.Age = 17 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Register(ctx, in)
			assert.ErrorIs(t, err, svcErr.ErrInvalidInput)
		})
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Register(ctx, validInput())
	assert.ErrorIs(t, err, svcErr.ErrInvalidInput)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupService(t)

	_, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alex@example.com", "wrong-password")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestRegisterCompletionFlag(t *testing.T) {
	ctx := context.Background()
	svc, database := setupService(t)

	// a bare card stays out of feeds until filled in
	in := validInput()
	in.Bio = ""
	creds, err := svc.Register(ctx, in)
	require.NoError(t, err)

	var p db.Profile
	require.NoError(t, database.First(&p, "id = ?", creds.UserID).Error)
	assert.False(t, p.ProfileCompleted)

	full, err := svc.Register(ctx, func() auth.RegisterInput {
		in := validInput()
		in.Email = "luna@example.com"
		return in
	}())
	require.NoError(t, err)
	p = db.Profile{}
	require.NoError(t, database.First(&p, "id = ?", full.UserID).Error)
	assert.True(t, p.ProfileCompleted)
}

func TestTokenRoundtrip(t *testing.T) {
	tm := auth.NewTokenManager("s3cret", time.Hour)

	token, err := tm.Issue("u1")
	require.NoError(t, err)

	userID, err := tm.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestTokenVerifyRejectsBadTokens(t *testing.T) {
	tm := auth.NewTokenManager("s3cret", time.Hour)

	_, err := tm.Verify("garbage")
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	// token signed by someone else
	other := auth.NewTokenManager("different", time.Hour)
	foreign, err := other.Issue("u1")
	require.NoError(t, err)
	_, err = tm.Verify(foreign)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)

	// expired token
	stale := auth.NewTokenManager("s3cret", -time.Minute)
	expired, err := stale.Issue("u1")
	require.NoError(t, err)
	_, err = tm.Verify(expired)
	assert.ErrorIs(t, err, svcErr.ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	tm := auth.NewTokenManager("s3cret", time.Hour)
	token, err := tm.Issue("u1")
	require.NoError(t, err)

	var gotUser string
	handler := auth.Middleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = auth.UserID(r.Context())
	}))

	// bearer header
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotUser)

	// query param fallback for websocket clients
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// no token
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// bad token
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/feed", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
