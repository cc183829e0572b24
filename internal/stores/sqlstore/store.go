// Package sqlstore keeps the entry collection in a MySQL table with the same load-all and
// replace-all contract as the JSON file store
package sqlstore

import (
	"context"
	"fmt"

	"github.com/ethanbaker/riskwatch/pkg/entry"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store handles entry persistence using GORM
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New opens the database at dsn and migrates the entry table
func New(dsn string, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return NewWithDB(db, log)
}

// NewWithDB wraps an open connection and migrates the entry table
func NewWithDB(db *gorm.DB, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{db: db, logger: log.Named("sqlstore")}
	if err := s.db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return s, nil
}

// Load returns every entry in saved order
func (s *Store) Load(ctx context.Context) ([]entry.Entry, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Order("position").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	entries := make([]entry.Entry, 0, len(records))
	for _, r := range records {
		e, err := r.toEntry()
		if err != nil {
			s.logger.Warn("skipping unreadable row", zap.Int("position", r.Position), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Save replaces the table contents with entries in one transaction
func (s *Store) Save(ctx context.Context, entries []entry.Entry) error {
	records := make([]Record, 0, len(entries))
	for i, e := range entries {
		r, err := toRecord(e, i+1)
		if err != nil {
			return err
		}
		records = append(records, r)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Record{}).Error; err != nil {
			return fmt.Errorf("failed to clear entries: %w", err)
		}
		if len(records) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(records, 200).Error; err != nil {
			return fmt.Errorf("failed to write entries: %w", err)
		}
		return nil
	})
}

// Close closes the database connection
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from gorm.DB: %w", err)
	}
	return sqlDB.Close()
}
