package model

import "time"

// 永続化スロット（key→シリアライズ済みの値）
type KVEntry struct {
	Key       string    `gorm:"primaryKey;type:varchar(128)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (KVEntry) TableName() string {
	return "kv_entries"
}
