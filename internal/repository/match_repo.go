package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/purr4furr/purr-backend/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository provides data access methods for the Match relationship.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// canonicalPair orders two user ids so that a match row is unique
// regardless of which side liked last.
func canonicalPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// CreateIfAbsent materializes the match for a user pair.
//
// Behavior:
//   - Pair is canonicalized (user1_id < user2_id) before insert.
//   - ON CONFLICT DO NOTHING against the unique pair index makes creation
//     idempotent: concurrent mutual likes cannot produce duplicates.
//   - Returns the match row and whether this call created it.
//
// Example:
//
//	m, created, err := repo.CreateIfAbsent(ctx, "u2", "u1")
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b string) (*db.Match, bool, error) {
	u1, u2 := canonicalPair(a, b)

	m := db.Match{
		ID:            uuid.NewString(),
		User1ID:       u1,
		User2ID:       u2,
		LastMessageAt: time.Now().UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := r.FindByPair(ctx, u1, u2)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &m, true, nil
}

// FindByPair looks up the match for two users in either order.
// Returns gorm.ErrRecordNotFound when no match exists.
func (r *MatchRepository) FindByPair(ctx context.Context, a, b string) (*db.Match, error) {
	u1, u2 := canonicalPair(a, b)
	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", u1, u2).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListForUser returns all matches involving the user, most recent message
// first. Last-message metadata and unread counts are hydrated by the service.
func (r *MatchRepository) ListForUser(ctx context.Context, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&matches).Error
	return matches, err
}

// DeleteByPair retracts the match between two users together with its
// messages. Used when a like is withdrawn.
func (r *MatchRepository) DeleteByPair(ctx context.Context, a, b string) error {
	u1, u2 := canonicalPair(a, b)

	m, err := r.FindByPair(ctx, u1, u2)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("match_id = ?", m.ID).Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Match{}, "id = ?", m.ID).Error
	})
}

// TouchLastMessage bumps the match's last-message timestamp so match lists
// sort by conversation recency.
func (r *MatchRepository) TouchLastMessage(ctx context.Context, matchID string, t time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		Update("last_message_at", t).Error
}
