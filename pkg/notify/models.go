// Package notify delivers best-effort user notifications. The engine hands a
// notification to a Sink and never depends on delivery succeeding.
package notify

import (
	"context"
	"time"
)

// Notification types emitted by the NCR engine.
const (
	TypeNCRAssigned     = "ncr_assigned"
	TypeNCRRaised       = "ncr_raised"
	TypeNCRReviewed     = "ncr_reviewed"
	TypeRevisionNeeded  = "ncr_revision_requested"
	TypeRectifyRejected = "ncr_rectification_rejected"
	TypeNCRReassigned   = "ncr_reassigned"
	TypeClientNotified  = "ncr_client_notified"
)

// Notification is a single message for a single user.
type Notification struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	LinkURL   string `json:"linkUrl"`
}

// Sink accepts notifications. Implementations must not block the caller on
// delivery and must never surface delivery failures to it.
type Sink interface {
	Send(ctx context.Context, n Notification)
}

// Record is a GORM model for a delivered in-app notification.
type Record struct {
	ID        string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	UserID    string     `gorm:"column:user_id;index:idx_notif_user_time,priority:1;not null"`
	ProjectID string     `gorm:"column:project_id;index;not null"`
	Type      string     `gorm:"column:type;not null"`
	Title     string     `gorm:"column:title;not null"`
	Message   string     `gorm:"column:message;not null"`
	LinkURL   string     `gorm:"column:link_url"`
	Read      bool       `gorm:"column:read;default:false;not null"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"column:created_at;index:idx_notif_user_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (Record) TableName() string { return "notifications" }
