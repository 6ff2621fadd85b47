package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/user/release-tracker/internal/tracker"
)

// NotificationLog persists the notifier's observed release changes.
type NotificationLog struct {
	db *gorm.DB
}

func NewNotificationLog(db *gorm.DB) *NotificationLog {
	return &NotificationLog{db: db}
}

func (l *NotificationLog) Record(ctx context.Context, n tracker.Notification) error {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}

	row := Notification{
		ID:          uuid.New().String(),
		Repo:        n.Repo,
		PreviousTag: n.PreviousTag,
		Tag:         n.Tag,
		Status:      n.Status,
		Error:       n.Error,
		CreatedAt:   at.UnixMilli(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("recording notification: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *NotificationLog) Recent(ctx context.Context, limit int) ([]tracker.Notification, error) {
	var rows []Notification
	query := l.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	out := make([]tracker.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, tracker.Notification{
			Repo:        r.Repo,
			PreviousTag: r.PreviousTag,
			Tag:         r.Tag,
			Status:      r.Status,
			Error:       r.Error,
			At:          time.UnixMilli(r.CreatedAt).UTC(),
		})
	}
	return out, nil
}
