package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/events"
)

const (
	DefaultAuditLimit = 50
	MaxAuditLimit     = 200
)

// AuditService appends task lifecycle events to the audit log and serves
// the newest-first audit query.
type AuditService struct {
	db     *gorm.DB
	clock  clockwork.Clock
	logger *zap.Logger
}

func NewAuditService(gormDB *gorm.DB, clock clockwork.Clock, logger *zap.Logger) *AuditService {
	return &AuditService{db: gormDB, clock: clock, logger: logger}
}

type auditData struct {
	TaskData      map[string]interface{} `json:"task_data,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Source        string                 `json:"source,omitempty"`
}

// Record appends one audit record for ev.
func (s *AuditService) Record(ctx context.Context, ev events.TaskEvent) (*db.AuditLog, error) {
	return s.RecordTx(s.db.WithContext(ctx), ev)
}

// RecordTx appends the record using tx, so it commits together with the
// caller's other writes.
func (s *AuditService) RecordTx(tx *gorm.DB, ev events.TaskEvent) (*db.AuditLog, error) {
	raw, err := json.Marshal(auditData{TaskData: ev.TaskData, CorrelationID: ev.CorrelationID, Source: ev.Metadata.Source})
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit data: %w", err)
	}
	record := &db.AuditLog{
		UserID:    ev.UserID,
		EventType: ev.EventType,
		EventData: datatypes.JSON(raw),
		Timestamp: s.clock.Now().UTC(),
	}
	if ev.TaskID != "" {
		taskID := ev.TaskID
		record.TaskID = &taskID
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to write audit record: %w", err)
	}
	s.logger.Debug("Audit record written",
		zap.String("event_type", ev.EventType),
		zap.String("task_id", ev.TaskID),
		zap.String("correlation_id", ev.CorrelationID),
	)
	return record, nil
}

// AuditQuery selects audit records of one user.
type AuditQuery struct {
	UserID    string
	EventType string
	Limit     int
	Offset    int
}

// List returns a page of the user's audit records, newest first, and the
// total number of matching records.
func (s *AuditService) List(ctx context.Context, q AuditQuery) ([]db.AuditLog, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultAuditLimit
	}
	if limit > MaxAuditLimit {
		limit = MaxAuditLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	base := func() *gorm.DB {
		query := s.db.WithContext(ctx).Model(&db.AuditLog{}).Where("user_id = ?", q.UserID)
		if q.EventType != "" {
			query = query.Where("event_type = ?", q.EventType)
		}
		return query
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit records: %w", err)
	}
	var records []db.AuditLog
	if err := base().Order("timestamp DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list audit records: %w", err)
	}
	return records, total, nil
}
