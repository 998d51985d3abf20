// Package server exposes the dating backend over HTTP and websocket.
// Handlers stay thin: decode, delegate to a service, map the error.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/purr4furr/purr-backend/internal/auth"
	"github.com/purr4furr/purr-backend/internal/service/dating"
)

// pagedBackend is the optional surface only the store-backed service
// implements: cursor pagination and the liked-you counter.
type pagedBackend interface {
	GetMatchMessagesPage(ctx context.Context, matchID string, token *string, limit int) ([]dating.Message, *string, error)
	LikedYou(ctx context.Context, userID string, token *string, limit int) ([]dating.Profile, *string, error)
	CountLikedYou(ctx context.Context, userID string) (int64, error)
}

// Server wires auth and the dating backend into an HTTP router.
type Server struct {
	backend dating.Backend
	paged   pagedBackend // nil when the backend has no paginated surface
	authSvc *auth.Service
	tokens  *auth.TokenManager
	log     *slog.Logger

	feedLimit int
}

type Options struct {
	FeedLimit int
}

func New(backend dating.Backend, authSvc *auth.Service, tokens *auth.TokenManager, log *slog.Logger, opts Options) *Server {
	if log == nil {
		log = slog.Default()
	}
	feedLimit := opts.FeedLimit
	if feedLimit <= 0 {
		feedLimit = 20
	}
	s := &Server{
		backend:   backend,
		authSvc:   authSvc,
		tokens:    tokens,
		log:       log,
		feedLimit: feedLimit,
	}
	if p, ok := backend.(pagedBackend); ok {
		s.paged = p
	}
	return s
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.tokens))

			r.Get("/feed", s.handleFeed)

			r.Post("/likes/{userID}", s.handleLike)
			r.Delete("/likes/{userID}", s.handleUnlike)
			r.Get("/likes", s.handleLikedProfiles)
			r.Post("/passes/{userID}", s.handlePass)

			r.Get("/liked-you", s.handleLikedYou)
			r.Get("/liked-you/count", s.handleLikedYouCount)

			r.Get("/matches", s.handleMatches)
			r.Get("/matches/{matchID}/messages", s.handleMessages)
			r.Post("/matches/{matchID}/messages", s.handleSendMessage)
			r.Post("/matches/{matchID}/read", s.handleMarkRead)

			r.Post("/presence/heartbeat", s.handleHeartbeat)
			r.Delete("/presence", s.handleGoInactive)
		})
	})

	// websocket does its own token handling (query param)
	r.Get("/ws", s.handleWebSocket)

	return r
}
