// Package domain contains persistence models for metered AI usage.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Purpose classifies what a metered AI call was spent on. Unrecognized
// values are rejected at the boundary.
type Purpose string

const (
	PurposeEmailGeneration Purpose = "email_generation"
	PurposeSubjectLine     Purpose = "subject_line"
	PurposePersonalization Purpose = "personalization"
	PurposeAnalysis        Purpose = "analysis"
	PurposeOther           Purpose = "other"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeEmailGeneration, PurposeSubjectLine, PurposePersonalization, PurposeAnalysis, PurposeOther:
		return true
	default:
		return false
	}
}

// UsageRecord stores a single metered AI invocation. GenerationID is the
// provider-assigned identifier for one billed call and is the upsert key:
// a repeated write for the same generation updates cost and token fields
// instead of inserting a duplicate.
type UsageRecord struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	GenerationID     string            `gorm:"type:text;not null;uniqueIndex" json:"generation_id"`
	CampaignID       *string           `gorm:"type:text" json:"campaign_id,omitempty"`
	EmailID          *string           `gorm:"type:text" json:"email_id,omitempty"`
	Model            string            `gorm:"type:text;not null" json:"model"`
	PromptTokens     int64             `gorm:"not null" json:"prompt_tokens"`
	CompletionTokens int64             `gorm:"not null" json:"completion_tokens"`
	TotalTokens      int64             `gorm:"not null" json:"total_tokens"`
	CostUSD          float64           `gorm:"type:numeric(12,6);not null" json:"cost_usd"`
	Purpose          Purpose           `gorm:"type:text;not null" json:"purpose"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }
