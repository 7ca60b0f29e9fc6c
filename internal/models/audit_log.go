package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditAction string

const (
	AuditActionSegregate AuditAction = "segregate"
	AuditActionExpire    AuditAction = "expire"
)

type SegregationAudit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	CollectionID *uint   `gorm:"index" json:"collection_id"`
	CentreID     *string `gorm:"size:50;index" json:"centre_id"`

	ActorUserID *uint  `json:"actor_user_id"`
	ActorRole   string `gorm:"size:20" json:"actor_role"`

	Action      AuditAction    `gorm:"size:20" json:"action"`
	Description string         `gorm:"size:255" json:"description"`
	Payload     datatypes.JSON `json:"payload"`
}

func (SegregationAudit) TableName() string { return "segregation_audit" }
