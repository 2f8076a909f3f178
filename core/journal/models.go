package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one published ledger event. Sequence numbers are contiguous
// and start at 1.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex;not null"`
	OpHash     string    `gorm:"size:66;index"`
	Type       string    `gorm:"size:64;index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// Receipt records an applied operation. The unique hash makes replays of the
// same signed envelope detectable.
type Receipt struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OpHash     string    `gorm:"size:66;uniqueIndex;not null"`
	Kind       string    `gorm:"size:64;index"`
	Sender     string    `gorm:"size:64;index"`
	Nonce      uint64
	StateRoot  string `gorm:"size:66"`
	EventCount int
	CreatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the journal.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &Receipt{})
}
