package repository

import (
	"context"
	"errors"
	"time"

	"github.com/purr4furr/purr-backend/internal/db"
	"github.com/purr4furr/purr-backend/internal/utils/pagination"

	"gorm.io/gorm"
)

// MessageRepository provides data access methods for chat messages.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByMatch returns the full message history for a match, oldest first.
func (r *MessageRepository) ListByMatch(ctx context.Context, matchID string) ([]db.Message, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// ListByMatchPage returns one page of a match's history, newest first.
//
// Behavior:
//   - Ordered by created_at DESC, id DESC.
//   - Supports cursor-based pagination via paginationToken; the returned
//     token is nil on the last page.
func (r *MessageRepository) ListByMatchPage(
	ctx context.Context,
	matchID string,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	var messages []db.Message

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Table("messages m").
		Where("m.match_id = ?", matchID).
		Order("m.created_at DESC, m.id DESC").
		Limit(limit + 1)

	if cursor.ID != "" && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(m.created_at < ? OR (m.created_at = ? AND m.id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ID:          last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// MarkRead stamps read_at=now on every unread message in the match that is
// addressed to the given receiver.
//
// Behavior:
//   - Only rows with read_at IS NULL are touched, so re-invoking on a fully
//     read match is a no-op (returns 0 rows affected, issues no row writes).
//   - A message's read time is therefore set at most once, and only by the
//     receiver.
func (r *MessageRepository) MarkRead(ctx context.Context, matchID, receiverID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND read_at IS NULL", matchID, receiverID).
		Update("read_at", now)
	return res.RowsAffected, res.Error
}

// UnreadCount counts unread messages addressed to the receiver in a match.
func (r *MessageRepository) UnreadCount(ctx context.Context, matchID, receiverID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("match_id = ? AND receiver_id = ? AND read_at IS NULL", matchID, receiverID).
		Count(&count).Error
	return count, err
}

// Last returns the most recent message in a match, or nil when the
// conversation is empty.
func (r *MessageRepository) Last(ctx context.Context, matchID string) (*db.Message, error) {
	var m db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
