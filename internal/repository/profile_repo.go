package repository

import (
	"context"
	"time"

	"github.com/purr4furr/purr-backend/internal/db"

	"gorm.io/gorm"
)

// ProfileRepository provides data access methods for the Profile model.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*db.Profile, error) {
	var p db.Profile
	if err := r.db.WithContext(ctx).First(&p, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ByIDs loads profiles for the given id set. Order of the result is not
// guaranteed to follow the input order.
func (r *ProfileRepository) ByIDs(ctx context.Context, ids []string) ([]db.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var profiles []db.Profile
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error
	return profiles, err
}

// Candidates returns feed candidates for a viewer.
//
// Behavior:
//   - Excludes the viewer themselves and incomplete profiles.
//   - Excludes profiles the viewer already liked or passed; either exclusion
//     is skipped when the corresponding table is not provisioned.
//   - Limited to `limit` rows; ordering is left to the caller (the service
//     shuffles the result anyway).
//
// Example:
//
//	repo.Candidates(ctx, "u1", 40, true, true) // up to 40 fresh profiles for u1
func (r *ProfileRepository) Candidates(ctx context.Context, viewerID string, limit int, excludeLiked, excludePassed bool) ([]db.Profile, error) {
	var profiles []db.Profile
	query := r.db.WithContext(ctx).
		Where("id <> ?", viewerID).
		Where("profile_completed = ?", true)

	if excludeLiked {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM likes l
				WHERE l.liker_id = ?
				  AND l.liked_id = profiles.id
			)`, viewerID)
	}
	if excludePassed {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM user_passes p
				WHERE p.user_id = ?
				  AND p.passed_user_id = profiles.id
			)`, viewerID)
	}

	err := query.Limit(limit).Find(&profiles).Error
	return profiles, err
}

// FeedEntryIDs reads candidate ids for a viewer from the precomputed
// user_feed table, most recently active first. Callers must have verified
// the table is provisioned via the capability probe.
//
// The table is refreshed out-of-band and lags behind live decisions, so the
// same liked/passed/incomplete exclusions as Candidates are applied here
// against the current tables rather than trusting the precomputed rows.
func (r *ProfileRepository) FeedEntryIDs(ctx context.Context, viewerID string, limit int, excludeLiked, excludePassed bool) ([]string, error) {
	var ids []string
	query := r.db.WithContext(ctx).
		Table("user_feed").
		Joins("JOIN profiles ON profiles.id = user_feed.profile_id").
		Where("user_feed.viewer_id = ?", viewerID).
		Where("profiles.profile_completed = ?", true)

	if excludeLiked {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM likes l
				WHERE l.liker_id = ?
				  AND l.liked_id = user_feed.profile_id
			)`, viewerID)
	}
	if excludePassed {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM user_passes p
				WHERE p.user_id = ?
				  AND p.passed_user_id = user_feed.profile_id
			)`, viewerID)
	}

	err := query.
		Order("user_feed.last_active DESC").
		Limit(limit).
		Pluck("user_feed.profile_id", &ids).Error
	return ids, err
}

// TouchLastActive stamps the heartbeat columns for a profile.
func (r *ProfileRepository) TouchLastActive(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_active": time.Now().UTC(),
			"is_active":   true,
		}).Error
}

// SetInactive clears the activity flag for a profile.
func (r *ProfileRepository) SetInactive(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
