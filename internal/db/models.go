package db

import (
	"time"
)

// Profile table. One row per signed-up user; mutated by the owning user only.
type Profile struct {
	ID               string `gorm:"primaryKey;size:36"`
	Email            string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash     string `gorm:"size:255;not null"`
	FirstName        string `gorm:"size:64;not null"`
	LastName         string `gorm:"size:64"`
	DisplayName      string `gorm:"size:64"`
	Age              int    `gorm:"not null"`
	Gender           string `gorm:"size:32"`
	Sexuality        string `gorm:"size:32"`
	Fursona          string `gorm:"size:64"`
	Pronouns         string `gorm:"size:32"`
	Bio              string `gorm:"size:1024"`
	Interests        []string `gorm:"serializer:json;type:text"`
	ProfilePicture   string   `gorm:"size:512"`
	LocationCity     string   `gorm:"size:64"`
	LocationState    string   `gorm:"size:64"`
	LastActive       time.Time `gorm:"index"`
	IsActive         bool
	ProfileCompleted bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// Like is a directed edge liker -> liked.
//
// Composite PK: (LikerID, LikedID)
//   - Ensures a single row per ordered pair (idempotent like guarantee).
//
// Indexes:
//   - idx_liked_created(liked_id, created_at DESC)
//     Optimizes "who liked me" listings with pagination.
type Like struct {
	LikerID   string    `gorm:"primaryKey;size:36"`
	LikedID   string    `gorm:"primaryKey;size:36;index:idx_liked_created,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_liked_created,priority:2,sort:desc"`
}

// Pass is a directed edge user -> passed user. Only used to exclude the
// passed profile from future feed results; append-only.
type Pass struct {
	UserID       string    `gorm:"primaryKey;size:36"`
	PassedUserID string    `gorm:"primaryKey;size:36"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (Pass) TableName() string { return "user_passes" }

// Match materializes a mutual like between two users.
//
// Canonical pair ordering: User1ID < User2ID, enforced by the repository on
// create. The unique index on the ordered pair makes creation idempotent
// regardless of which side liked last.
type Match struct {
	ID            string    `gorm:"primaryKey;size:36"`
	User1ID       string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:1;index"`
	User2ID       string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:2;index"`
	MatchedAt     time.Time `gorm:"autoCreateTime"`
	LastMessageAt time.Time `gorm:"index"`
}

// Message belongs to exactly one match. ReadAt is set only by the receiver,
// only once.
type Message struct {
	ID          string    `gorm:"primaryKey;size:36"`
	MatchID     string    `gorm:"size:36;not null;index:idx_match_created,priority:1"`
	SenderID    string    `gorm:"size:36;not null"`
	ReceiverID  string    `gorm:"size:36;not null;index"`
	Content     string    `gorm:"size:2048;not null"`
	MessageType string    `gorm:"size:16;not null;default:text"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_match_created,priority:2"`
	ReadAt      *time.Time
}

// FeedEntry maps the optional precomputed user_feed table: one candidate
// profile id per viewer, refreshed out-of-band, ordered by recent activity.
// Not part of AutoMigrate; its presence is detected by the capability probe.
type FeedEntry struct {
	ViewerID   string    `gorm:"primaryKey;size:36"`
	ProfileID  string    `gorm:"primaryKey;size:36"`
	LastActive time.Time `gorm:"index"`
}

func (FeedEntry) TableName() string { return "user_feed" }
