package dating

import (
	"context"
	"time"
)

// Profile is the outward-facing view of a user profile. Credentials never
// leave the repository layer.
type Profile struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	DisplayName    string    `json:"display_name"`
	Age            int       `json:"age"`
	Gender         string    `json:"gender"`
	Sexuality      string    `json:"sexuality"`
	Fursona        string    `json:"fursona"`
	Pronouns       string    `json:"pronouns"`
	Bio            string    `json:"bio"`
	Interests      []string  `json:"interests"`
	ProfilePicture string    `json:"profile_picture"`
	LocationCity   string    `json:"location_city"`
	LocationState  string    `json:"location_state"`
	LastActive     time.Time `json:"last_active"`
	IsActive       bool      `json:"is_active"`
}

// Match is one entry of a user's match list: the relationship plus the other
// participant's card and last-message metadata for sorting and previews.
type Match struct {
	MatchID            string     `json:"match_id"`
	MatchedAt          time.Time  `json:"matched_at"`
	LastMessageAt      time.Time  `json:"last_message_at"`
	OtherUserID        string     `json:"other_user_id"`
	FirstName          string     `json:"first_name"`
	DisplayName        string     `json:"display_name"`
	Age                int        `json:"age"`
	ProfilePicture     string     `json:"profile_picture"`
	Bio                string     `json:"bio"`
	LastActive         time.Time  `json:"last_active"`
	IsActive           bool       `json:"is_active"`
	LastMessageContent string     `json:"last_message_content"`
	LastMessageTime    *time.Time `json:"last_message_time"`
	LastMessageSender  string     `json:"last_message_sender_id"`
	UnreadCount        int64      `json:"unread_count"`
}

// Message is a single chat message within a match.
type Message struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	SenderID    string     `json:"sender_id"`
	ReceiverID  string     `json:"receiver_id"`
	Content     string     `json:"content"`
	MessageType string     `json:"message_type"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`
}

// Subscription is a live event feed handle. The subscriber owns it and must
// Close it; backends never tear subscriptions down on their own.
type Subscription interface {
	Close() error
}

// Backend is the dating state machine: feed retrieval, like/pass/match
// transitions and chat read-state bookkeeping. Two implementations exist:
// the live store-backed Service and the in-memory MemoryBackend used as a
// fixture. Every operation takes the acting user's id explicitly; backends
// hold no ambient auth state.
type Backend interface {
	// GetFeed returns up to limit shuffled candidate profiles for the user,
	// excluding themselves, incomplete profiles and anyone already liked or
	// passed. Returns an empty slice, never an error, on total failure.
	GetFeed(ctx context.Context, userID string, limit int) ([]Profile, error)

	// LikeUser records userID liking likedID and reports whether the pair is
	// now matched.
	LikeUser(ctx context.Context, userID, likedID string) (bool, error)

	// PassUser records userID skipping passedID.
	PassUser(ctx context.Context, userID, passedID string) error

	// UnlikeUser withdraws the like edge and retracts any match for the pair.
	UnlikeUser(ctx context.Context, userID, likedID string) error

	// GetLikedProfiles returns the profiles userID has liked.
	GetLikedProfiles(ctx context.Context, userID string) ([]Profile, error)

	// GetMatches returns the user's matches ordered by conversation recency.
	GetMatches(ctx context.Context, userID string) ([]Match, error)

	// GetMatchMessages returns a match's full history, oldest first.
	GetMatchMessages(ctx context.Context, matchID string) ([]Message, error)

	// SendMessage appends a message to the match and returns the stored row.
	// The sender must be a participant; the stored receiver is always the
	// match's other participant regardless of the receiverID argument.
	SendMessage(ctx context.Context, matchID, senderID, receiverID, content string) (*Message, error)

	// MarkMessagesAsRead stamps every unread message addressed to userID in
	// the match. Re-invocation on a fully read match is a no-op.
	MarkMessagesAsRead(ctx context.Context, matchID, userID string) error

	// SubscribeToMessages delivers each message inserted into the match.
	SubscribeToMessages(matchID string, cb func(Message)) (Subscription, error)

	// SubscribeToMatches delivers each new match involving the user.
	SubscribeToMatches(userID string, cb func(Match)) (Subscription, error)

	// UpdateLastActive stamps the user's presence heartbeat.
	UpdateLastActive(ctx context.Context, userID string) error

	// SetUserInactive clears the user's presence flag.
	SetUserInactive(ctx context.Context, userID string) error
}
