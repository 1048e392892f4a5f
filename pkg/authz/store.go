package authz

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// MembershipRecord is a GORM model for a user's membership on a project.
type MembershipRecord struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	ProjectID string    `gorm:"column:project_id;uniqueIndex:idx_member_project_user,priority:1;not null"`
	UserID    string    `gorm:"column:user_id;uniqueIndex:idx_member_project_user,priority:2;index;not null"`
	Role      string    `gorm:"column:role;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName returns the GORM table name.
func (MembershipRecord) TableName() string { return "project_memberships" }

// MembershipStore is a GORM-backed Authorizer reading project memberships.
type MembershipStore struct {
	db *gorm.DB
}

// NewMembershipStore creates a new MembershipStore.
func NewMembershipStore(db *gorm.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// AutoMigrate creates or updates the membership table.
func (s *MembershipStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&MembershipRecord{}); err != nil {
		return fmt.Errorf("auto-migrate project_memberships: %w", err)
	}
	return nil
}

// Add upserts a membership for a user on a project.
func (s *MembershipStore) Add(record *MembershipRecord) error {
	if err := s.db.Save(record).Error; err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// HasProjectAccess reports whether the user holds any role on the project.
func (s *MembershipStore) HasProjectAccess(ctx context.Context, userID, projectID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&MembershipRecord{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check project access: %w", err)
	}
	return count > 0, nil
}

// HasRole reports whether the user holds one of the given roles on the project.
func (s *MembershipStore) HasRole(ctx context.Context, userID, projectID string, roles ...Role) (bool, error) {
	if len(roles) == 0 {
		return s.HasProjectAccess(ctx, userID, projectID)
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&MembershipRecord{}).
		Where("project_id = ? AND user_id = ? AND role IN ?", projectID, userID, roleStrings(roles)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check role: %w", err)
	}
	return count > 0, nil
}

// MembersWithRoles returns user IDs of members holding one of the given roles.
func (s *MembershipStore) MembersWithRoles(ctx context.Context, projectID string, roles ...Role) ([]string, error) {
	var userIDs []string
	query := s.db.WithContext(ctx).Model(&MembershipRecord{}).
		Where("project_id = ?", projectID)
	if len(roles) > 0 {
		query = query.Where("role IN ?", roleStrings(roles))
	}
	if err := query.Distinct().Pluck("user_id", &userIDs).Error; err != nil {
		return nil, fmt.Errorf("list members with roles: %w", err)
	}
	return userIDs, nil
}

// RoleOf returns the user's role on the project, or "" when not a member.
func (s *MembershipStore) RoleOf(ctx context.Context, userID, projectID string) (Role, error) {
	var record MembershipRecord
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get role: %w", err)
	}
	return Role(record.Role), nil
}

func roleStrings(roles []Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
