package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists in-app notifications.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new notification Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the notifications table.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Record{}); err != nil {
		return fmt.Errorf("auto-migrate notifications: %w", err)
	}
	return nil
}

// Deliver writes a notification into the user's inbox.
func (s *Store) Deliver(n Notification) error {
	record := &Record{
		ID:        uuid.New().String(),
		UserID:    n.UserID,
		ProjectID: n.ProjectID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		LinkURL:   n.LinkURL,
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}
	return nil
}

// ListForUser returns the user's notifications, newest first.
func (s *Store) ListForUser(userID string, unreadOnly bool, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := s.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit)
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return records, nil
}

// MarkRead marks a notification as read.
func (s *Store) MarkRead(id string) error {
	now := time.Now()
	result := s.db.Model(&Record{}).Where("id = ? AND read = ?", id, false).
		Updates(map[string]any{"read": true, "read_at": &now})
	if result.Error != nil {
		return fmt.Errorf("mark notification read: %w", result.Error)
	}
	return nil
}
