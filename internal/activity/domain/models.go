// Package domain contains persistence models for business activity events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Type is the closed set of recognized business events. Anything else is
// rejected at the boundary.
type Type string

const (
	TypeEmailSent     Type = "email_sent"
	TypeMeetingBooked Type = "meeting_booked"
)

func (t Type) Valid() bool {
	switch t {
	case TypeEmailSent, TypeMeetingBooked:
		return true
	default:
		return false
	}
}

// ActivityRecord stores one business event tied to a campaign. Append-only.
type ActivityRecord struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type       Type              `gorm:"type:text;not null;index" json:"type"`
	CampaignID *string           `gorm:"type:text" json:"campaign_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	OccurredAt time.Time         `gorm:"not null;index" json:"occurred_at"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (ActivityRecord) TableName() string { return "activity_records" }
