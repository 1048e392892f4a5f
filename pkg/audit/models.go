// Package audit provides an append-only audit log for compliance traceability.
package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONAny is a custom GORM type for map[string]any stored as JSON.
type JSONAny map[string]any

// Scan implements the sql.Scanner interface for JSONAny.
func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case string:
		bytes = []byte(v)
	case []byte:
		bytes = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(bytes, m)
}

// Value implements the driver.Valuer interface for JSONAny.
func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ProjectID  string    `gorm:"column:project_id;index:idx_audit_project_time,priority:1;not null"`
	Actor      string    `gorm:"column:actor;index;not null"`
	Action     string    `gorm:"column:action;not null"`
	EntityType string    `gorm:"column:entity_type;index:idx_audit_entity,priority:1;not null"`
	EntityID   string    `gorm:"column:entity_id;index:idx_audit_entity,priority:2;not null"`
	Outcome    string    `gorm:"column:outcome;not null"` // success, failure, denied
	Changes    JSONAny   `gorm:"column:changes;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_audit_project_time,priority:2;autoCreateTime"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }

// Event is the API-facing audit event.
type Event struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId"`
	Actor      string         `json:"actor"`
	Action     string         `json:"action"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Outcome    string         `json:"outcome"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

// EventList is a paginated list of audit events.
type EventList struct {
	Events        []Event `json:"events"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
	TotalSize     int     `json:"totalSize"`
}

// ToEvent converts a record to the API type.
func ToEvent(rec EventRecord) Event {
	return Event{
		ID:         rec.ID,
		ProjectID:  rec.ProjectID,
		Actor:      rec.Actor,
		Action:     rec.Action,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Outcome:    rec.Outcome,
		Changes:    map[string]any(rec.Changes),
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}
