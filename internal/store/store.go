package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"smart-bin-backend/internal/model"
)

// Store defines the interface for all bin persistence operations.
type Store interface {
	// GetStatus returns the latest status of a device or ErrNotFound.
	GetStatus(ctx context.Context, deviceID string) (model.Status, error)
	// SaveStatus writes status if the stored version still equals expectedVersion
	// (0 means the status must not exist yet). The stored version becomes
	// expectedVersion+1. It returns ErrVersionConflict otherwise.
	SaveStatus(ctx context.Context, status model.Status, expectedVersion int64) error
	// PutStatus overwrites a status unconditionally.
	PutStatus(ctx context.Context, status model.Status) error
	ListStatuses(ctx context.Context) ([]model.Status, error)

	AppendReadings(ctx context.Context, readings ...model.Reading) error
	// RecentReadings returns the newest limit readings of a device, oldest first.
	RecentReadings(ctx context.Context, deviceID string, limit int) ([]model.Reading, error)
	ReadingsSince(ctx context.Context, since time.Time) ([]model.Reading, error)

	// PutCommand stores the pending command of a device, replacing any previous one.
	PutCommand(ctx context.Context, cmd model.Command) error
	// TakeCommand reads and deletes the pending command of a device or returns ErrNotFound.
	TakeCommand(ctx context.Context, deviceID string) (model.Command, error)
}

// GormStore implements the Store interface using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for the handlers that work on
// gorm-only tables (push subscriptions).
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func (s *GormStore) GetStatus(ctx context.Context, deviceID string) (model.Status, error) {
	var status model.Status
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).First(&status).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Status{}, ErrNotFound
	}
	if err != nil {
		return model.Status{}, fmt.Errorf("failed to load status for %s: %w", deviceID, err)
	}
	return status, nil
}

// SaveStatus performs an optimistic compare-and-swap on the version column.
func (s *GormStore) SaveStatus(ctx context.Context, status model.Status, expectedVersion int64) error {
	status.Version = expectedVersion + 1

	if expectedVersion == 0 {
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&status)
		if res.Error != nil {
			return fmt.Errorf("failed to create status for %s: %w", status.DeviceID, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrVersionConflict
		}
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&model.Status{}).
		Where("device_id = ? AND version = ?", status.DeviceID, expectedVersion).
		Updates(statusColumns(status))
	if res.Error != nil {
		return fmt.Errorf("failed to update status for %s: %w", status.DeviceID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *GormStore) PutStatus(ctx context.Context, status model.Status) error {
	if status.Version == 0 {
		status.Version = 1
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"fill_percentage": status.FillPercentage,
			"is_full":         status.IsFull,
			"temp_c":          status.TempC,
			"humidity_pct":    status.HumidityPct,
			"lat":             status.Lat,
			"lon":             status.Lon,
			"last_updated":    status.LastUpdated,
			"version":         gorm.Expr("bin_status.version + 1"),
		}),
	}).Create(&status).Error
	if err != nil {
		return fmt.Errorf("failed to put status for %s: %w", status.DeviceID, err)
	}
	return nil
}

func (s *GormStore) ListStatuses(ctx context.Context) ([]model.Status, error) {
	var statuses []model.Status
	if err := s.db.WithContext(ctx).Order("device_id").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("failed to list statuses: %w", err)
	}
	return statuses, nil
}

func (s *GormStore) AppendReadings(ctx context.Context, readings ...model.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	if len(readings) > 1 {
		log.Printf("Batch inserting %d readings...", len(readings))
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&readings, 500).Error; err != nil {
		return fmt.Errorf("failed to append readings: %w", err)
	}
	return nil
}

func (s *GormStore) RecentReadings(ctx context.Context, deviceID string, limit int) ([]model.Reading, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	var readings []model.Reading
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", deviceID, err)
	}

	reverse(readings)
	return readings, nil
}

func (s *GormStore) ReadingsSince(ctx context.Context, since time.Time) ([]model.Reading, error) {
	var readings []model.Reading
	err := s.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history since %s: %w", since.Format(time.RFC3339), err)
	}
	return readings, nil
}

func (s *GormStore) PutCommand(ctx context.Context, cmd model.Command) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"action", "created_at"}),
	}).Create(&cmd).Error
	if err != nil {
		return fmt.Errorf("failed to store command for %s: %w", cmd.DeviceID, err)
	}
	return nil
}

// TakeCommand reads and deletes the command in one transaction. Only the
// transaction whose delete removed the row returns it.
func (s *GormStore) TakeCommand(ctx context.Context, deviceID string) (model.Command, error) {
	var cmd model.Command
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", deviceID).First(&cmd).Error; err != nil {
			return err
		}
		res := tx.Where("device_id = ?", deviceID).Delete(&model.Command{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Command{}, ErrNotFound
	}
	if err != nil {
		return model.Command{}, fmt.Errorf("failed to take command for %s: %w", deviceID, err)
	}
	return cmd, nil
}

func statusColumns(status model.Status) map[string]any {
	return map[string]any{
		"fill_percentage": status.FillPercentage,
		"is_full":         status.IsFull,
		"temp_c":          status.TempC,
		"humidity_pct":    status.HumidityPct,
		"lat":             status.Lat,
		"lon":             status.Lon,
		"last_updated":    status.LastUpdated,
		"version":         status.Version,
	}
}

func reverse(readings []model.Reading) {
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}
}
