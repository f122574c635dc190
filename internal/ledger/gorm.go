package ledger

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProcessedEvent is one claimed key.
type ProcessedEvent struct {
	EventKey  string    `gorm:"primaryKey;size:512"`
	ClaimedAt time.Time `gorm:"index"`
}

func (ProcessedEvent) TableName() string {
	return "processed_events"
}

// Gorm keeps claims in a SQL table keyed by the claim key.
type Gorm struct {
	db *gorm.DB
}

// NewGorm migrates the claims table and returns the ledger.
func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&ProcessedEvent{}); err != nil {
		return nil, fmt.Errorf("migrate processed_events: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (g *Gorm) Claim(ctx context.Context, key string) (bool, error) {
	res := g.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ProcessedEvent{EventKey: key, ClaimedAt: time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("claim %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (g *Gorm) Seen(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := g.db.WithContext(ctx).Model(&ProcessedEvent{}).Where("event_key = ?", key).Count(&n).Error; err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return n > 0, nil
}

func (g *Gorm) Release(ctx context.Context, key string) error {
	if err := g.db.WithContext(ctx).Where("event_key = ?", key).Delete(&ProcessedEvent{}).Error; err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}

// Purge deletes claims older than the cutoff and returns how many went.
func (g *Gorm) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	res := g.db.WithContext(ctx).Where("claimed_at < ?", olderThan).Delete(&ProcessedEvent{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge processed_events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
