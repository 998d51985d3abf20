package repository

import (
	"context"

	"github.com/purr4furr/purr-backend/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PassRepository provides data access methods for the Pass edge.
type PassRepository struct {
	db *gorm.DB
}

// NewPassRepository creates a new repository bound to the given DB connection.
func NewPassRepository(database *gorm.DB) *PassRepository {
	return &PassRepository{db: database}
}

// Create inserts a pass edge user -> passed user. Idempotent under the
// composite PK, same as LikeRepository.Create.
func (r *PassRepository) Create(ctx context.Context, userID, passedUserID string) error {
	pass := db.Pass{UserID: userID, PassedUserID: passedUserID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pass).Error
}

// Exists reports whether user has passed on passedUser.
func (r *PassRepository) Exists(ctx context.Context, userID, passedUserID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Pass{}).
		Where("user_id = ? AND passed_user_id = ?", userID, passedUserID).
		Count(&count).Error
	return count > 0, err
}
