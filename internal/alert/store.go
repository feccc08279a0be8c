package alert

import (
	"fmt"
	"time"

	"metricagent/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the durable alert lifecycle log. Write failures propagate to
// the caller; read and cleanup failures degrade to empty results so a
// broken history query never stops alert evaluation.
type Store interface {
	// Save inserts a new open lifecycle row.
	Save(record *models.AlertRecord) error
	// UpdateState updates the open row for alertID. A non-nil
	// resolvedAt closes the row. Updating a non-open row is a no-op.
	UpdateState(alertID string, state string, resolvedAt *time.Time) error
	// UpdateNotification sets last_notified_at and increments the
	// notification count on the open row for alertID.
	UpdateNotification(alertID string, notifiedAt time.Time) error
	// GetActive returns all open rows in triggered or active state.
	GetActive() []models.AlertRecord
	// GetByRule returns the most recent rows for a rule, newest first.
	GetByRule(ruleName string, limit int) []models.AlertRecord
	// Cleanup deletes resolved rows triggered before the retention
	// window and returns the number deleted.
	Cleanup(retentionDays int) int64
	// Close releases the underlying storage handle.
	Close() error
}

// GormStore implements Store on a gorm database handle.
type GormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewGormStore(db *gorm.DB, log *zap.Logger) *GormStore {
	return &GormStore{db: db, log: log}
}

func (s *GormStore) Save(record *models.AlertRecord) error {
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to save alert %s: %w", record.AlertID, err)
	}
	s.log.Debug("saved alert record", zap.String("alert_id", record.AlertID))
	return nil
}

func (s *GormStore) UpdateState(alertID string, state string, resolvedAt *time.Time) error {
	updates := map[string]interface{}{"state": state}
	if resolvedAt != nil {
		updates["resolved_at"] = resolvedAt
	}

	err := s.db.Model(&models.AlertRecord{}).
		Where("alert_id = ? AND resolved_at IS NULL", alertID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update alert state %s: %w", alertID, err)
	}
	s.log.Debug("updated alert state",
		zap.String("alert_id", alertID),
		zap.String("state", state),
	)
	return nil
}

func (s *GormStore) UpdateNotification(alertID string, notifiedAt time.Time) error {
	err := s.db.Model(&models.AlertRecord{}).
		Where("alert_id = ? AND resolved_at IS NULL", alertID).
		Updates(map[string]interface{}{
			"last_notified_at":   notifiedAt,
			"notification_count": gorm.Expr("notification_count + 1"),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update notification info %s: %w", alertID, err)
	}
	return nil
}

func (s *GormStore) GetActive() []models.AlertRecord {
	var records []models.AlertRecord
	err := s.db.
		Where("state IN ? AND resolved_at IS NULL", []string{models.StateTriggered, models.StateActive}).
		Order("triggered_at DESC").
		Find(&records).Error
	if err != nil {
		s.log.Error("failed to query active alerts", zap.Error(err))
		return []models.AlertRecord{}
	}
	return records
}

func (s *GormStore) GetByRule(ruleName string, limit int) []models.AlertRecord {
	var records []models.AlertRecord
	err := s.db.
		Where("rule_name = ?", ruleName).
		Order("triggered_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		s.log.Error("failed to query alerts by rule",
			zap.String("rule", ruleName),
			zap.Error(err),
		)
		return []models.AlertRecord{}
	}
	return records
}

func (s *GormStore) Cleanup(retentionDays int) int64 {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.
		Where("state = ? AND triggered_at < ?", models.StateResolved, cutoff).
		Delete(&models.AlertRecord{})
	if result.Error != nil {
		s.log.Error("failed to cleanup old alerts", zap.Error(result.Error))
		return 0
	}
	if result.RowsAffected > 0 {
		s.log.Info("cleaned up old alerts",
			zap.Int64("deleted", result.RowsAffected),
			zap.Int("retention_days", retentionDays),
		)
	}
	return result.RowsAffected
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
