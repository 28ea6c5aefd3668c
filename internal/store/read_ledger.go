package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReadMark 已读通知的本地台账。Read 只进不退，
// 落地到本地库保证重启后依然单调。
type ReadMark struct {
	ID             string    `gorm:"primaryKey;type:varchar(36)"`
	NotificationID string    `gorm:"type:varchar(64);uniqueIndex:idx_readmark_noti;not null"`
	ReadAt         time.Time `gorm:"not null"`
}

func (ReadMark) TableName() string { return "read_marks" }

type ReadLedger interface {
	Mark(ctx context.Context, notificationID string) error
	Has(ctx context.Context, notificationID string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type readLedger struct {
	db *gorm.DB
}

func NewReadLedger(db *gorm.DB) (ReadLedger, error) {
	if err := db.AutoMigrate(&ReadMark{}); err != nil {
		return nil, err
	}
	return &readLedger{db: db}, nil
}

func (r *readLedger) Mark(ctx context.Context, notificationID string) error {
	m := &ReadMark{ID: uuid.New().String(), NotificationID: notificationID, ReadAt: time.Now()}
	// 幂等：重复标记不报错
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(m).Error
}

func (r *readLedger) Has(ctx context.Context, notificationID string) (bool, error) {
	var cnt int64
	if err := r.db.WithContext(ctx).
		Model(&ReadMark{}).
		Where("notification_id = ?", notificationID).
		Count(&cnt).Error; err != nil {
		return false, err
	}
	return cnt > 0, nil
}

func (r *readLedger) Count(ctx context.Context) (int64, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&ReadMark{}).Count(&cnt).Error
	return cnt, err
}
