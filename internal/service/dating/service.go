package dating

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/purr4furr/purr-backend/internal/app"
	"github.com/purr4furr/purr-backend/internal/db"
	svcErr "github.com/purr4furr/purr-backend/internal/errors"
	"github.com/purr4furr/purr-backend/internal/realtime"
	"github.com/purr4furr/purr-backend/internal/repository"
)

const messageTypeText = "text"

var (
	_ Backend = (*Service)(nil)
	_ Backend = (*MemoryBackend)(nil)
)

// Service is the live, store-backed Backend. It is the single translation
// point between domain intents and store calls; the capability set decides
// which optional surfaces exist so callers never see partial-deployment
// errors.
type Service struct {
	appCtx *app.AppContext
	caps   db.Capabilities
	hub    *realtime.Hub

	profileRepo *repository.ProfileRepository
	likeRepo    *repository.LikeRepository
	passRepo    *repository.PassRepository
	matchRepo   *repository.MatchRepository
	messageRepo *repository.MessageRepository
}

// NewService creates the live dating service with dependencies from
// AppContext and the startup capability probe.
func NewService(appCtx *app.AppContext, caps db.Capabilities) *Service {
	return &Service{
		appCtx:      appCtx,
		caps:        caps,
		hub:         realtime.NewHub(appCtx.RedisCache.Client, appCtx.Logger),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		likeRepo:    repository.NewLikeRepository(appCtx.DB),
		passRepo:    repository.NewPassRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		messageRepo: repository.NewMessageRepository(appCtx.DB),
	}
}

// GetFeed returns up to limit shuffled candidate profiles.
//
// Behavior:
//   - Precomputed user_feed surface first (over-fetched at 2x limit, most
//     recently active first), when the capability probe found it. The
//     precomputed rows lag live decisions, so liked/passed/incomplete
//     profiles are still filtered out at read time.
//   - Falls back to a direct profile query excluding the viewer, incomplete
//     profiles and already liked/passed users.
//   - Fisher-Yates shuffle before truncating to limit, so a stable recency
//     ordering does not always surface the same users first.
//   - Resolves to an empty slice, never an error, so callers can render an
//     empty state instead of crashing.
func (s *Service) GetFeed(ctx context.Context, userID string, limit int) ([]Profile, error) {
	if userID == "" {
		s.appCtx.Logger.Debug("GetFeed without user, returning empty feed")
		return []Profile{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	pool, err := s.feedPool(ctx, userID, limit*2)
	if err != nil {
		s.appCtx.Logger.Error("feed fetch failed", "user", userID, "err", err)
		return []Profile{}, nil
	}

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

func (s *Service) feedPool(ctx context.Context, userID string, fetch int) ([]Profile, error) {
	if s.caps.FeedView {
		ids, err := s.profileRepo.FeedEntryIDs(ctx, userID, fetch, s.caps.Likes, s.caps.Passes)
		if err == nil && len(ids) > 0 {
			rows, err := s.profileRepo.ByIDs(ctx, ids)
			if err == nil {
				return toProfiles(rows), nil
			}
			s.appCtx.Logger.Debug("feed view hydration failed, falling back", "err", err)
		} else if err != nil {
			s.appCtx.Logger.Debug("feed view query failed, falling back", "err", err)
		}
	}

	rows, err := s.profileRepo.Candidates(ctx, userID, fetch, s.caps.Likes, s.caps.Passes)
	if err != nil {
		return nil, err
	}
	return toProfiles(rows), nil
}

// LikeUser inserts the like edge and reports whether the pair is now
// matched.
//
// Behavior:
//   - Missing likes table is tolerated as a successful no-match like.
//   - After insert, checks for the reciprocal edge and, when mutual,
//     materializes the Match row idempotently. Match creation is an explicit
//     service responsibility, not a store-side trigger.
//   - Match-detection failures degrade to "no match" rather than failing the
//     like that was already persisted.
//   - Publishes a match event to both participants when a match is created.
func (s *Service) LikeUser(ctx context.Context, userID, likedID string) (bool, error) {
	if userID == likedID {
		return false, svcErr.ErrSelfTarget
	}
	if !s.caps.Likes {
		s.appCtx.Logger.Debug("likes table not provisioned, skipping like", "user", userID)
		return false, nil
	}

	if err := s.likeRepo.Create(ctx, userID, likedID); err != nil {
		s.appCtx.Logger.Error("like insert failed", "user", userID, "liked", likedID, "err", err)
		return false, err
	}

	// The insert is idempotent and does not report whether a row landed, so
	// the cached liked-you counter is invalidated rather than bumped; the
	// next CountLikedYou repopulates it from the store.
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(likedID))

	mutual, err := s.likeRepo.Exists(ctx, likedID, userID)
	if err != nil {
		s.appCtx.Logger.Error("mutual-like check failed", "user", userID, "liked", likedID, "err", err)
		return false, nil
	}
	if !mutual {
		return false, nil
	}

	if !s.caps.Matches {
		s.appCtx.Logger.Debug("matches table not provisioned, mutual like not materialized")
		return false, nil
	}

	m, created, err := s.matchRepo.CreateIfAbsent(ctx, userID, likedID)
	if err != nil {
		s.appCtx.Logger.Error("match creation failed", "user", userID, "liked", likedID, "err", err)
		return false, nil
	}

	if created {
		s.publishMatch(ctx, m, userID)
		s.publishMatch(ctx, m, likedID)
	}

	return true, nil
}

// publishMatch pushes the new match to one participant's channel, shaped
// from that participant's point of view. Fire-and-forget.
func (s *Service) publishMatch(ctx context.Context, m *db.Match, recipientID string) {
	otherID := m.User1ID
	if otherID == recipientID {
		otherID = m.User2ID
	}

	entry := Match{
		MatchID:       m.ID,
		MatchedAt:     m.MatchedAt,
		LastMessageAt: m.LastMessageAt,
		OtherUserID:   otherID,
	}
	if p, err := s.profileRepo.GetByID(ctx, otherID); err == nil {
		entry.FirstName = p.FirstName
		entry.DisplayName = p.DisplayName
		entry.Age = p.Age
		entry.ProfilePicture = p.ProfilePicture
		entry.Bio = p.Bio
		entry.LastActive = p.LastActive
		entry.IsActive = p.IsActive
	}

	if err := s.hub.Publish(ctx, realtime.MatchChannel(recipientID), entry); err != nil {
		s.appCtx.Logger.Warn("match event publish failed", "user", recipientID, "err", err)
	}
}

// PassUser records a skip so the profile never resurfaces in the feed.
// Missing passes table is tolerated as a no-op.
func (s *Service) PassUser(ctx context.Context, userID, passedID string) error {
	if userID == passedID {
		return svcErr.ErrSelfTarget
	}
	if !s.caps.Passes {
		s.appCtx.Logger.Debug("user_passes table not provisioned, skipping pass", "user", userID)
		return nil
	}
	if err := s.passRepo.Create(ctx, userID, passedID); err != nil {
		s.appCtx.Logger.Error("pass insert failed", "user", userID, "passed", passedID, "err", err)
		return err
	}

	// passed users are excluded from the passer's liked-you count
	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(userID))
	return nil
}

// UnlikeUser deletes the like edge and retracts any match for the pair,
// messages included. Retracting the match mirrors what unliking means to
// the user: the relationship is withdrawn, not just the edge.
func (s *Service) UnlikeUser(ctx context.Context, userID, likedID string) error {
	if !s.caps.Likes {
		return nil
	}
	if err := s.likeRepo.Delete(ctx, userID, likedID); err != nil {
		s.appCtx.Logger.Error("unlike failed", "user", userID, "liked", likedID, "err", err)
		return err
	}

	_ = s.appCtx.RedisCache.Del(ctx, s.appCtx.RedisCache.KeyForLikedYouCount(likedID))

	if s.caps.Matches {
		if err := s.matchRepo.DeleteByPair(ctx, userID, likedID); err != nil {
			s.appCtx.Logger.Error("match retraction failed", "user", userID, "liked", likedID, "err", err)
			return err
		}
	}
	return nil
}

// GetLikedProfiles returns the profiles the user has liked: liked ids first,
// then a profiles-by-id fetch, preserving most-recent-like order. An empty
// liker list short-circuits to an empty result.
func (s *Service) GetLikedProfiles(ctx context.Context, userID string) ([]Profile, error) {
	if !s.caps.Likes {
		return []Profile{}, nil
	}

	ids, err := s.likeRepo.LikedIDs(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("liked ids fetch failed", "user", userID, "err", err)
		return nil, err
	}
	if len(ids) == 0 {
		return []Profile{}, nil
	}

	rows, err := s.profileRepo.ByIDs(ctx, ids)
	if err != nil {
		s.appCtx.Logger.Error("liked profiles fetch failed", "user", userID, "err", err)
		return nil, err
	}

	byID := make(map[string]db.Profile, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]Profile, 0, len(rows))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, toProfile(p))
		}
	}
	return out, nil
}

// GetMatches returns the user's match list ordered by last-message recency,
// hydrated with the other participant's card, last-message preview and
// unread count. A missing matches table resolves to an empty list.
func (s *Service) GetMatches(ctx context.Context, userID string) ([]Match, error) {
	if !s.caps.Matches {
		s.appCtx.Logger.Debug("matches table not provisioned, returning empty list")
		return []Match{}, nil
	}

	rows, err := s.matchRepo.ListForUser(ctx, userID)
	if err != nil {
		s.appCtx.Logger.Error("matches fetch failed", "user", userID, "err", err)
		return nil, err
	}

	out := make([]Match, 0, len(rows))
	for _, m := range rows {
		otherID := m.User1ID
		if otherID == userID {
			otherID = m.User2ID
		}

		entry := Match{
			MatchID:       m.ID,
			MatchedAt:     m.MatchedAt,
			LastMessageAt: m.LastMessageAt,
			OtherUserID:   otherID,
		}

		p, err := s.profileRepo.GetByID(ctx, otherID)
		if err != nil {
			s.appCtx.Logger.Warn("match participant missing, skipping entry", "match", m.ID, "other", otherID)
			continue
		}
		entry.FirstName = p.FirstName
		entry.DisplayName = p.DisplayName
		entry.Age = p.Age
		entry.ProfilePicture = p.ProfilePicture
		entry.Bio = p.Bio
		entry.LastActive = p.LastActive
		entry.IsActive = p.IsActive

		if s.caps.Messages {
			if last, err := s.messageRepo.Last(ctx, m.ID); err == nil && last != nil {
				t := last.CreatedAt
				entry.LastMessageContent = last.Content
				entry.LastMessageTime = &t
				entry.LastMessageSender = last.SenderID
			}
			if unread, err := s.messageRepo.UnreadCount(ctx, m.ID, userID); err == nil {
				entry.UnreadCount = unread
			}
		}

		out = append(out, entry)
	}
	return out, nil
}

// GetMatchMessages returns a match's full history, oldest first.
func (s *Service) GetMatchMessages(ctx context.Context, matchID string) ([]Message, error) {
	if !s.caps.Messages {
		return []Message{}, nil
	}
	rows, err := s.messageRepo.ListByMatch(ctx, matchID)
	if err != nil {
		s.appCtx.Logger.Error("messages fetch failed", "match", matchID, "err", err)
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// GetMatchMessagesPage returns one newest-first page of a match's history.
// Not part of the Backend interface; used by the HTTP layer for infinite
// scroll.
func (s *Service) GetMatchMessagesPage(ctx context.Context, matchID string, token *string, limit int) ([]Message, *string, error) {
	if !s.caps.Messages {
		return []Message{}, nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, next, err := s.messageRepo.ListByMatchPage(ctx, matchID, token, limit)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, toMessage(m))
	}
	return out, next, nil
}

// SendMessage appends a text message to the match, bumps the match's
// last-message timestamp and publishes the stored row to the match channel.
func (s *Service) SendMessage(ctx context.Context, matchID, senderID, receiverID, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, svcErr.Invalid("message content must not be empty")
	}
	if !s.caps.Messages {
		return nil, svcErr.ErrNotProvisioned
	}

	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		s.appCtx.Logger.Error("match lookup failed", "match", matchID, "err", err)
		return nil, err
	}
	if senderID != m.User1ID && senderID != m.User2ID {
		return nil, svcErr.ErrForbidden
	}

	// the receiver is always the other participant; the caller-supplied id
	// is not trusted for read-state bookkeeping
	receiverID = m.User1ID
	if receiverID == senderID {
		receiverID = m.User2ID
	}

	row := db.Message{
		ID:          uuid.NewString(),
		MatchID:     matchID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: messageTypeText,
	}
	if err := s.messageRepo.Create(ctx, &row); err != nil {
		s.appCtx.Logger.Error("message insert failed", "match", matchID, "err", err)
		return nil, err
	}

	if err := s.matchRepo.TouchLastMessage(ctx, matchID, row.CreatedAt); err != nil {
		s.appCtx.Logger.Warn("last-message bump failed", "match", matchID, "err", err)
	}

	msg := toMessage(row)
	if err := s.hub.Publish(ctx, realtime.MessageChannel(matchID), msg); err != nil {
		s.appCtx.Logger.Warn("message event publish failed", "match", matchID, "err", err)
	}

	return &msg, nil
}

// MarkMessagesAsRead stamps every unread message in the match addressed to
// the user. A fully read match is a no-op and issues no row writes.
func (s *Service) MarkMessagesAsRead(ctx context.Context, matchID, userID string) error {
	if !s.caps.Messages {
		return nil
	}
	n, err := s.messageRepo.MarkRead(ctx, matchID, userID, time.Now().UTC())
	if err != nil {
		s.appCtx.Logger.Error("mark-read failed", "match", matchID, "user", userID, "err", err)
		return err
	}
	if n > 0 {
		s.appCtx.Logger.Debug("messages marked read", "match", matchID, "count", n)
	}
	return nil
}

// SubscribeToMessages delivers each message inserted into the match.
// The returned subscription is owned by the caller.
func (s *Service) SubscribeToMessages(matchID string, cb func(Message)) (Subscription, error) {
	return realtime.SubscribeJSON(s.hub, realtime.MessageChannel(matchID), cb), nil
}

// SubscribeToMatches delivers each new match involving the user.
func (s *Service) SubscribeToMatches(userID string, cb func(Match)) (Subscription, error) {
	return realtime.SubscribeJSON(s.hub, realtime.MatchChannel(userID), cb), nil
}

// UpdateLastActive stamps the presence heartbeat. Missing activity columns
// are tolerated silently.
func (s *Service) UpdateLastActive(ctx context.Context, userID string) error {
	if userID == "" || !s.caps.Activity {
		return nil
	}
	if err := s.profileRepo.TouchLastActive(ctx, userID); err != nil {
		s.appCtx.Logger.Error("heartbeat update failed", "user", userID, "err", err)
		return err
	}
	return nil
}

// SetUserInactive clears the presence flag. Same tolerance as the heartbeat.
func (s *Service) SetUserInactive(ctx context.Context, userID string) error {
	if userID == "" || !s.caps.Activity {
		return nil
	}
	if err := s.profileRepo.SetInactive(ctx, userID); err != nil {
		s.appCtx.Logger.Error("inactive update failed", "user", userID, "err", err)
		return err
	}
	return nil
}

// LikedYou returns one page of profiles that liked the user, excluding
// anyone the user passed. Not part of the Backend interface.
func (s *Service) LikedYou(ctx context.Context, userID string, token *string, limit int) ([]Profile, *string, error) {
	if !s.caps.Likes {
		return []Profile{}, nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	likes, next, err := s.likeRepo.Likers(ctx, userID, token, limit)
	if err != nil {
		return nil, nil, err
	}
	if len(likes) == 0 {
		return []Profile{}, nil, nil
	}

	ids := make([]string, 0, len(likes))
	for _, l := range likes {
		ids = append(ids, l.LikerID)
	}
	rows, err := s.profileRepo.ByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]db.Profile, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, toProfile(p))
		}
	}
	return out, next, nil
}

// CountLikedYou returns how many users liked the given profile.
// Cache-first strategy:
//  1. Attempts the Redis counter (likedyou:count:userID).
//  2. On cache miss, falls back to the DB and repopulates the counter with
//     a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, userID string) (int64, error) {
	if !s.caps.Likes {
		return 0, nil
	}

	if n, ok, err := s.appCtx.RedisCache.GetLikedYouCount(ctx, userID); err == nil && ok {
		return n, nil
	}

	count, err := s.likeRepo.CountLikers(ctx, userID)
	if err != nil {
		return 0, err
	}

	_ = s.appCtx.RedisCache.UpdateLikedYouCount(ctx, userID, count)

	return count, nil
}

// --- conversions ---

func toProfile(p db.Profile) Profile {
	return Profile{
		ID:             p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		DisplayName:    p.DisplayName,
		Age:            p.Age,
		Gender:         p.Gender,
		Sexuality:      p.Sexuality,
		Fursona:        p.Fursona,
		Pronouns:       p.Pronouns,
		Bio:            p.Bio,
		Interests:      p.Interests,
		ProfilePicture: p.ProfilePicture,
		LocationCity:   p.LocationCity,
		LocationState:  p.LocationState,
		LastActive:     p.LastActive,
		IsActive:       p.IsActive,
	}
}

func toProfiles(rows []db.Profile) []Profile {
	out := make([]Profile, 0, len(rows))
	for _, p := range rows {
		out = append(out, toProfile(p))
	}
	return out
}

func toMessage(m db.Message) Message {
	return Message{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
		ReadAt:      m.ReadAt,
	}
}
