// Package session holds the per-user dating state cache and sequences
// multi-step actions against a dating.Backend, so the presentation layer
// never talks to the backend directly. The cache is derived and best-effort:
// it is rebuilt from the backend on every session start and holds no
// durability of its own.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/purr4furr/purr-backend/internal/service/dating"
)

const (
	defaultTimeout           = 10 * time.Second
	defaultHeartbeatInterval = 5 * time.Minute
	defaultFeedLimit         = 20
)

// Options tune a session. Zero values fall back to defaults.
type Options struct {
	Logger            *slog.Logger
	CallTimeout       time.Duration
	HeartbeatInterval time.Duration
	FeedLimit         int
}

// Session is the live orchestration layer for one authenticated user.
// It owns three cached collections (feed, likes, matches) exclusively;
// realtime callbacks and actions mutate them only through its lock, with
// last-write-wins semantics between in-flight refreshes.
type Session struct {
	userID    string
	backend   dating.Backend
	log       *slog.Logger
	timeout   time.Duration
	feedLimit int

	mu             sync.Mutex
	feed           []dating.Profile
	likedProfiles  []dating.Profile
	matches        []dating.Match
	loadingFeed    bool
	loadingLikes   bool
	loadingMatches bool
	closed         bool

	stopHeartbeat chan struct{}
	closeOnce     sync.Once
}

// Start opens a session for the user: loads feed, likes and matches, stamps
// the presence heartbeat and keeps stamping it on a fixed interval until
// Close.
func Start(userID string, backend dating.Backend, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	feedLimit := opts.FeedLimit
	if feedLimit <= 0 {
		feedLimit = defaultFeedLimit
	}

	s := &Session{
		userID:        userID,
		backend:       backend,
		log:           log.With("user", userID),
		timeout:       timeout,
		feedLimit:     feedLimit,
		stopHeartbeat: make(chan struct{}),
	}

	// initial loads; each degrades independently
	if err := s.RefreshFeed(); err != nil {
		s.log.Error("initial feed load failed", "err", err)
	}
	if err := s.refreshLikes(); err != nil {
		s.log.Error("initial likes load failed", "err", err)
	}
	if err := s.RefreshMatches(); err != nil {
		s.log.Error("initial matches load failed", "err", err)
	}

	s.beat()
	go s.heartbeatLoop(interval)

	return s
}

// Close ends the session: cancels the heartbeat, clears all cached
// collections synchronously and marks the user inactive on a best-effort
// basis. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stopHeartbeat)

		s.mu.Lock()
		s.closed = true
		s.feed = nil
		s.likedProfiles = nil
		s.matches = nil
		s.mu.Unlock()

		// fire-and-forget: presence cleanup must never block logout
		ctx, cancel := s.callCtx()
		defer cancel()
		if err := s.backend.SetUserInactive(ctx, s.userID); err != nil {
			s.log.Warn("set-inactive failed", "err", err)
		}
	})
}

func (s *Session) callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopHeartbeat:
			return
		case <-ticker.C:
			s.beat()
		}
	}
}

// beat stamps the presence heartbeat. Failures are logged, never surfaced:
// presence tracking must not block or alert the user.
func (s *Session) beat() {
	ctx, cancel := s.callCtx()
	defer cancel()
	if err := s.backend.UpdateLastActive(ctx, s.userID); err != nil {
		s.log.Warn("heartbeat failed", "err", err)
	}
}

// RefreshFeed replaces the cached feed wholesale with the backend result.
// A failed fetch degrades to an empty feed rather than keeping stale data.
func (s *Session) RefreshFeed() error {
	if s.isClosed() {
		return nil
	}

	s.setLoading(&s.loadingFeed, true)
	defer s.setLoading(&s.loadingFeed, false)

	ctx, cancel := s.callCtx()
	defer cancel()

	feed, err := s.backend.GetFeed(ctx, s.userID, s.feedLimit)
	if err != nil {
		s.log.Error("feed refresh failed", "err", err)
		feed = []dating.Profile{}
	}

	s.mu.Lock()
	s.feed = feed
	s.mu.Unlock()
	return err
}

func (s *Session) refreshLikes() error {
	if s.isClosed() {
		return nil
	}

	s.setLoading(&s.loadingLikes, true)
	defer s.setLoading(&s.loadingLikes, false)

	ctx, cancel := s.callCtx()
	defer cancel()

	likes, err := s.backend.GetLikedProfiles(ctx, s.userID)
	if err != nil {
		s.log.Error("likes refresh failed", "err", err)
		return err
	}

	s.mu.Lock()
	s.likedProfiles = likes
	s.mu.Unlock()
	return nil
}

// RefreshMatches reloads the cached match list.
func (s *Session) RefreshMatches() error {
	if s.isClosed() {
		return nil
	}

	s.setLoading(&s.loadingMatches, true)
	defer s.setLoading(&s.loadingMatches, false)

	ctx, cancel := s.callCtx()
	defer cancel()

	matches, err := s.backend.GetMatches(ctx, s.userID)
	if err != nil {
		s.log.Error("matches refresh failed", "err", err)
		return err
	}

	s.mu.Lock()
	s.matches = matches
	s.mu.Unlock()
	return nil
}

// LikeUser likes a profile and reports whether it produced a match.
//
// Sequencing: the like itself decides success/failure; the liked profile is
// pruned from the cached feed immediately so it cannot be shown twice in
// one session, then the likes cache (and on a match, the matches cache) is
// refreshed. Refresh failures after a successful like are logged, never
// escalated; a like is not rolled back over a cache hiccup.
func (s *Session) LikeUser(userID string) (bool, error) {
	ctx, cancel := s.callCtx()
	defer cancel()

	matched, err := s.backend.LikeUser(ctx, s.userID, userID)
	if err != nil {
		s.log.Error("like failed", "liked", userID, "err", err)
		return false, err
	}

	s.pruneFeed(userID)

	if err := s.refreshLikes(); err != nil {
		s.log.Warn("likes refresh after like failed", "err", err)
	}
	if matched {
		if err := s.RefreshMatches(); err != nil {
			s.log.Warn("matches refresh after match failed", "err", err)
		}
	}

	return matched, nil
}

// UnlikeUser withdraws a like. The profile is pruned from the cached likes
// immediately, ahead of the refresh.
func (s *Session) UnlikeUser(userID string) error {
	ctx, cancel := s.callCtx()
	defer cancel()

	if err := s.backend.UnlikeUser(ctx, s.userID, userID); err != nil {
		s.log.Error("unlike failed", "liked", userID, "err", err)
		return err
	}

	s.mu.Lock()
	s.likedProfiles = pruneProfiles(s.likedProfiles, userID)
	s.mu.Unlock()

	if err := s.refreshLikes(); err != nil {
		s.log.Warn("likes refresh after unlike failed", "err", err)
	}
	return nil
}

// PassUser skips a profile and prunes it from the cached feed immediately.
func (s *Session) PassUser(userID string) error {
	ctx, cancel := s.callCtx()
	defer cancel()

	if err := s.backend.PassUser(ctx, s.userID, userID); err != nil {
		s.log.Error("pass failed", "passed", userID, "err", err)
		return err
	}

	s.pruneFeed(userID)
	return nil
}

// SendMessage sends a chat message, then refreshes matches so last-message
// previews and ordering stay current.
func (s *Session) SendMessage(matchID, receiverID, content string) error {
	ctx, cancel := s.callCtx()
	defer cancel()

	if _, err := s.backend.SendMessage(ctx, matchID, s.userID, receiverID, content); err != nil {
		s.log.Error("send message failed", "match", matchID, "err", err)
		return err
	}

	if err := s.RefreshMatches(); err != nil {
		s.log.Warn("matches refresh after send failed", "err", err)
	}
	return nil
}

// MarkMessagesAsRead clears the unread state of a conversation, then
// refreshes matches so unread badges clear.
func (s *Session) MarkMessagesAsRead(matchID string) error {
	ctx, cancel := s.callCtx()
	defer cancel()

	if err := s.backend.MarkMessagesAsRead(ctx, matchID, s.userID); err != nil {
		s.log.Error("mark read failed", "match", matchID, "err", err)
		return err
	}

	if err := s.RefreshMatches(); err != nil {
		s.log.Warn("matches refresh after mark-read failed", "err", err)
	}
	return nil
}

// Messages returns a match's history straight from the backend.
func (s *Session) Messages(matchID string) ([]dating.Message, error) {
	ctx, cancel := s.callCtx()
	defer cancel()
	return s.backend.GetMatchMessages(ctx, matchID)
}

// SubscribeToMessages opens a realtime message feed for a match. The caller
// owns the subscription.
func (s *Session) SubscribeToMessages(matchID string, cb func(dating.Message)) (dating.Subscription, error) {
	return s.backend.SubscribeToMessages(matchID, cb)
}

// SubscribeToMatches opens a realtime feed of this user's new matches.
func (s *Session) SubscribeToMatches(cb func(dating.Match)) (dating.Subscription, error) {
	return s.backend.SubscribeToMatches(s.userID, cb)
}

// --- cached state accessors ---

func (s *Session) UserID() string { return s.userID }

// Feed returns a copy of the cached feed.
func (s *Session) Feed() []dating.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dating.Profile(nil), s.feed...)
}

// LikedProfiles returns a copy of the cached liked profiles.
func (s *Session) LikedProfiles() []dating.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dating.Profile(nil), s.likedProfiles...)
}

// Matches returns a copy of the cached match list.
func (s *Session) Matches() []dating.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]dating.Match(nil), s.matches...)
}

func (s *Session) LoadingFeed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingFeed
}

func (s *Session) LoadingLikes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingLikes
}

func (s *Session) LoadingMatches() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingMatches
}

// --- helpers ---

func (s *Session) setLoading(flag *bool, v bool) {
	s.mu.Lock()
	*flag = v
	s.mu.Unlock()
}

func (s *Session) pruneFeed(userID string) {
	s.mu.Lock()
	s.feed = pruneProfiles(s.feed, userID)
	s.mu.Unlock()
}

func pruneProfiles(in []dating.Profile, userID string) []dating.Profile {
	out := in[:0]
	for _, p := range in {
		if p.ID != userID {
			out = append(out, p)
		}
	}
	return out
}
