// Package store persists captured conversations in an embedded SQLite
// database: an append-only interactions table plus a confirmed set derived
// from it by review.
package store

import (
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when an interaction id matches no row.
var ErrNotFound = errors.New("interaction not found")

// Store wraps the SQLite handle. Safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the database at path and migrates both
// tables.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Interaction{}, &ConfirmedInteraction{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// InsertBatch writes a batch of interactions. A row whose id already exists
// in either table is skipped, keeping persistence at-most-once per response
// id. Returns the number of rows actually inserted.
func (s *Store) InsertBatch(batch []Interaction) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	fresh := make([]Interaction, 0, len(batch))
	for _, row := range batch {
		var confirmed int64
		s.db.Model(&ConfirmedInteraction{}).Where("id = ?", row.ID).Count(&confirmed)
		if confirmed > 0 {
			log.WithField("id", row.ID).Debug("skipping already-confirmed interaction")
			continue
		}
		var existing int64
		s.db.Model(&Interaction{}).Where("id = ?", row.ID).Count(&existing)
		if existing > 0 {
			log.WithField("id", row.ID).Debug("rejecting duplicate interaction id")
			continue
		}
		fresh = append(fresh, row)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh)
	if result.Error != nil {
		return 0, fmt.Errorf("insert batch: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// Get returns one interaction by id.
func (s *Store) Get(id string) (Interaction, error) {
	var row Interaction
	err := s.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Interaction{}, ErrNotFound
	}
	if err != nil {
		return Interaction{}, err
	}
	return row, nil
}

// List returns interactions newest first.
func (s *Store) List(limit, offset int) ([]Interaction, error) {
	var rows []Interaction
	q := s.db.Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListConfirmed returns confirmed interactions newest first by confirmation
// time.
func (s *Store) ListConfirmed(limit, offset int) ([]ConfirmedInteraction, error) {
	var rows []ConfirmedInteraction
	q := s.db.Order("confirmed_timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes an interaction by id.
func (s *Store) Delete(id string) error {
	result := s.db.Where("id = ?", id).Delete(&Interaction{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Confirm moves an interaction into the confirmed set: copy then delete,
// under one transaction so the id never exists in both tables.
func (s *Store) Confirm(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var row Interaction
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		confirmed := ConfirmedInteraction{
			ID:                row.ID,
			Model:             row.Model,
			Conversation:      row.Conversation,
			OriginalTimestamp: row.Timestamp,
		}
		if err := tx.Create(&confirmed).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Interaction{}).Error
	})
}

// Counts returns the sizes of both tables.
func (s *Store) Counts() (interactions, confirmed int64, err error) {
	if err = s.db.Model(&Interaction{}).Count(&interactions).Error; err != nil {
		return
	}
	err = s.db.Model(&ConfirmedInteraction{}).Count(&confirmed).Error
	return
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
