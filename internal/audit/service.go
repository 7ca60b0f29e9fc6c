package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"bloodbank-backend/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type LogOptions struct {
	CollectionID *uint
	CentreID     *string
	ActorUserID  *uint
	ActorRole    string
	Action       models.AuditAction
	Description  string
	Payload      any
}

// Service writes segregation_audit rows.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NewEntry builds the row for opts. A nil payload is stored as JSON null.
func NewEntry(opts LogOptions) (models.SegregationAudit, error) {
	payload := datatypes.JSON("null")
	if opts.Payload != nil {
		b, err := json.Marshal(opts.Payload)
		if err != nil {
			return models.SegregationAudit{}, fmt.Errorf("marshal audit payload: %w", err)
		}
		payload = datatypes.JSON(b)
	}

	return models.SegregationAudit{
		CollectionID: opts.CollectionID,
		CentreID:     opts.CentreID,
		ActorUserID:  opts.ActorUserID,
		ActorRole:    opts.ActorRole,
		Action:       opts.Action,
		Description:  opts.Description,
		Payload:      payload,
	}, nil
}

func (s *Service) WriteLog(ctx context.Context, opts LogOptions) error {
	entry, err := NewEntry(opts)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
