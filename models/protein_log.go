package models

import "time"

// ProteinLog is one recorded food item with its estimated protein content.
// Timestamps are milliseconds since epoch so day bucketing matches what the
// client renders.
type ProteinLog struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FoodName      string    `gorm:"not null" json:"foodName"`
	ProteinAmount float64   `gorm:"not null" json:"proteinAmount"` // grams
	Timestamp     int64     `gorm:"index;not null" json:"timestamp"`
	ImageURL      string    `json:"imageUrl,omitempty"` // set only for photo-originated entries
	CreatedAt     time.Time `json:"-"`
}
