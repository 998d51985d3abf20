package repository

import (
	"context"
	"time"

	"github.com/purr4furr/purr-backend/internal/db"
	"github.com/purr4furr/purr-backend/internal/utils/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository provides data access methods for the Like edge.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// Create inserts a like edge liker -> liked.
//
// Behavior:
//   - Composite PK on (liker_id, liked_id) plus ON CONFLICT DO NOTHING makes
//     the call idempotent: liking the same profile twice leaves exactly one
//     row and returns no error.
//
// Example:
//
//	repo.Create(ctx, "u1", "u2") // u1 liked u2
func (r *LikeRepository) Create(ctx context.Context, likerID, likedID string) error {
	like := db.Like{LikerID: likerID, LikedID: likedID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like).Error
}

// Delete removes the like edge for the (liker, liked) pair.
func (r *LikeRepository) Delete(ctx context.Context, likerID, likedID string) error {
	return r.db.WithContext(ctx).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Delete(&db.Like{}).Error
}

// Exists reports whether liker has liked liked.
// Used for the O(1) mutual-like check after an insert.
func (r *LikeRepository) Exists(ctx context.Context, likerID, likedID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ? AND liked_id = ?", likerID, likedID).
		Count(&count).Error
	return count > 0, err
}

// LikedIDs returns the ids the given user has liked, most recent first.
func (r *LikeRepository) LikedIDs(ctx context.Context, likerID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("liker_id = ?", likerID).
		Order("created_at DESC").
		Pluck("liked_id", &ids).Error
	return ids, err
}

// Likers returns all users who liked the given profile.
//
// Behavior:
//   - Excludes users that the profile owner explicitly passed.
//   - Ordered by created_at DESC, liker_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.Likers(ctx, "u1", nil, 20) // first 20 people who liked u1
func (r *LikeRepository) Likers(
	ctx context.Context,
	likedID string,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	var likes []db.Like

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ?", likedID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM user_passes p
				WHERE p.user_id = ?
				  AND p.passed_user_id = l.liker_id
			)`, likedID).
		Order("l.created_at DESC, l.liker_id DESC").
		Limit(limit + 1)

	// apply cursor
	if cursor.ID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(l.created_at < ? OR (l.created_at = ? AND l.liker_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(likes) > limit {
		last := likes[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.LikerID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		likes = likes[:limit]
	}

	return likes, nextToken, nil
}

// CountLikers returns how many users liked the given profile, excluding
// users the profile owner explicitly passed. Used in conjunction with the
// Redis counter cache (DB is fallback).
func (r *LikeRepository) CountLikers(ctx context.Context, likedID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.liked_id = ?", likedID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM user_passes p
				WHERE p.user_id = ?
				  AND p.passed_user_id = l.liker_id
			)`, likedID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
