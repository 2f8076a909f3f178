package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taxledger/core/types"
)

var (
	ErrDuplicateOperation = errors.New("journal: operation already applied")
	ErrReceiptNotFound    = errors.New("journal: receipt not found")
)

// Journal is the append-only SQL record of applied operations and the events
// they published.
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to dsn. postgres:// and postgresql:// URLs use the Postgres
// driver; anything else is treated as a SQLite path or DSN.
func Open(dsn string) (*Journal, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("journal: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB) (*Journal, error) {
	if db == nil {
		return nil, fmt.Errorf("journal: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HasOperation reports whether an operation with hash was already applied.
func (j *Journal) HasOperation(ctx context.Context, hash string) (bool, error) {
	var count int64
	if err := j.db.WithContext(ctx).Model(&Receipt{}).Where("op_hash = ?", hash).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Record stores receipt together with its events in one transaction and
// returns the assigned event records.
func (j *Journal) Record(ctx context.Context, receipt Receipt, evts []*types.Event) ([]EventRecord, error) {
	if strings.TrimSpace(receipt.OpHash) == "" {
		return nil, fmt.Errorf("journal: receipt hash required")
	}
	now := j.now().UTC()
	var records []EventRecord
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Receipt{}).Where("op_hash = ?", receipt.OpHash).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateOperation
		}
		next, err := lastSequence(tx)
		if err != nil {
			return err
		}
		records = make([]EventRecord, 0, len(evts))
		for _, evt := range evts {
			if evt == nil {
				continue
			}
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			next++
			records = append(records, EventRecord{
				ID:         uuid.New(),
				Sequence:   next,
				OpHash:     receipt.OpHash,
				Type:       evt.Type,
				Attributes: string(attrs),
				CreatedAt:  now,
			})
		}
		receipt.ID = uuid.New()
		receipt.EventCount = len(records)
		receipt.CreatedAt = now
		if err := tx.Create(&receipt).Error; err != nil {
			return err
		}
		if len(records) > 0 {
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Forget removes the receipt for hash and the events recorded with it. The
// node uses it to undo a Record whose state change could not be made durable.
func (j *Journal) Forget(ctx context.Context, hash string) error {
	return j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("op_hash = ?", hash).Delete(&EventRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("op_hash = ?", hash).Delete(&Receipt{}).Error
	})
}

func lastSequence(tx *gorm.DB) (uint64, error) {
	var last uint64
	if err := tx.Model(&EventRecord{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return 0, err
	}
	return last, nil
}

// LastSequence returns the highest assigned event sequence.
func (j *Journal) LastSequence(ctx context.Context) (uint64, error) {
	return lastSequence(j.db.WithContext(ctx))
}

// Events returns up to limit events with a sequence above after, optionally
// filtered by type.
func (j *Journal) Events(ctx context.Context, after uint64, limit int, eventType string) ([]EventRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := j.db.WithContext(ctx).Where("sequence > ?", after)
	if trimmed := strings.TrimSpace(eventType); trimmed != "" {
		query = query.Where("type = ?", trimmed)
	}
	var out []EventRecord
	if err := query.Order("sequence asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Receipt returns the receipt for an applied operation.
func (j *Journal) Receipt(ctx context.Context, hash string) (*Receipt, error) {
	var receipt Receipt
	err := j.db.WithContext(ctx).First(&receipt, "op_hash = ?", hash).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Decode returns the event in its attribute form.
func (r EventRecord) Decode() (*types.Event, error) {
	attrs := map[string]string{}
	if strings.TrimSpace(r.Attributes) != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, err
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}
