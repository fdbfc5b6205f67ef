package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LogService owns the ordered protein-log and chat-message collections.
// Every mutating call persists before returning; reads are pure.
type LogService struct {
	db *gorm.DB
}

func NewLogService(db *gorm.DB) *LogService { return &LogService{db: db} }

// EntryPatch carries partial field changes for UpdateEntry. Nil fields are
// left untouched.
type EntryPatch struct {
	FoodName      *string
	ProteinAmount *float64
}

func (s *LogService) AddEntry(foodName string, proteinAmount float64, timestamp int64, imageURL string) (*models.ProteinLog, error) {
	foodName = strings.TrimSpace(foodName)
	if foodName == "" {
		return nil, &ValidationError{Field: "foodName", Reason: "must not be empty"}
	}
	if proteinAmount < 0 {
		return nil, &ValidationError{Field: "proteinAmount", Reason: "must not be negative"}
	}

	entry := &models.ProteinLog{
		ID:            uuid.NewString(),
		FoodName:      foodName,
		ProteinAmount: proteinAmount,
		Timestamp:     timestamp,
		ImageURL:      imageURL,
	}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to save log entry: %w", err)
	}
	return entry, nil
}

func (s *LogService) UpdateEntry(id string, patch EntryPatch) (*models.ProteinLog, error) {
	var entry models.ProteinLog
	if err := s.db.First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReferenceNotFoundError{ID: id}
		}
		return nil, err
	}

	if patch.FoodName != nil {
		name := strings.TrimSpace(*patch.FoodName)
		if name == "" {
			return nil, &ValidationError{Field: "foodName", Reason: "must not be empty"}
		}
		entry.FoodName = name
	}
	if patch.ProteinAmount != nil {
		if *patch.ProteinAmount < 0 {
			return nil, &ValidationError{Field: "proteinAmount", Reason: "must not be negative"}
		}
		entry.ProteinAmount = *patch.ProteinAmount
	}

	if err := s.db.Save(&entry).Error; err != nil {
		return nil, fmt.Errorf("failed to update log entry: %w", err)
	}
	return &entry, nil
}

// DeleteEntry removes the entry and prunes every chat message referencing it.
// Deleting an id that is already gone is a no-op.
func (s *LogService) DeleteEntry(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("log_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.ProteinLog{}).Error
	})
}

func (s *LogService) GetEntry(id string) (*models.ProteinLog, error) {
	var entry models.ProteinLog
	if err := s.db.First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ReferenceNotFoundError{ID: id}
		}
		return nil, err
	}
	return &entry, nil
}

func (s *LogService) AddMessage(role, text, logID string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		LogID:     logID,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := s.db.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}
	return msg, nil
}

func (s *LogService) ListEntries() ([]models.ProteinLog, error) {
	var entries []models.ProteinLog
	err := s.db.Order("timestamp ASC, created_at ASC").Find(&entries).Error
	return entries, err
}

func (s *LogService) ListMessages() ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := s.db.Order("timestamp ASC, created_at ASC").Find(&msgs).Error
	return msgs, err
}

func (s *LogService) EntriesForDay(day time.Time) ([]models.ProteinLog, error) {
	start, end := dayWindow(day)
	var entries []models.ProteinLog
	err := s.db.
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (s *LogService) MessagesForDay(day time.Time) ([]models.ChatMessage, error) {
	start, end := dayWindow(day)
	var msgs []models.ChatMessage
	err := s.db.
		Where("timestamp >= ? AND timestamp < ?", start, end).
		Order("timestamp ASC, created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (s *LogService) TotalProteinFor(day time.Time) (float64, error) {
	entries, err := s.EntriesForDay(day)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range entries {
		total += e.ProteinAmount
	}
	return total, nil
}

// DayBucket is one day's aggregate within the rolling 7-day window.
type DayBucket struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	TotalProtein float64 `json:"total_protein"`
	IsToday      bool    `json:"is_today"`
}

// WeeklyReport is the 7-day window ending at the reference day, oldest first.
type WeeklyReport struct {
	Buckets      []DayBucket `json:"buckets"`
	Total        float64     `json:"total"`
	DailyAverage float64     `json:"daily_average"`
}

func (s *LogService) WeeklyBuckets(referenceDay time.Time) (*WeeklyReport, error) {
	report := &WeeklyReport{Buckets: make([]DayBucket, 0, 7)}
	for i := 6; i >= 0; i-- {
		d := referenceDay.AddDate(0, 0, -i)
		total, err := s.TotalProteinFor(d)
		if err != nil {
			return nil, err
		}
		report.Buckets = append(report.Buckets, DayBucket{
			Date:         d.Format("2006-01-02"),
			TotalProtein: total,
			IsToday:      i == 0,
		})
		report.Total += total
	}
	report.DailyAverage = report.Total / 7
	return report, nil
}

// HistorySummary serializes a day's entries for the inference prompt so the
// model can resolve references like "change the chicken to 30g".
func (s *LogService) HistorySummary(day time.Time) (string, error) {
	entries, err := s.EntriesForDay(day)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("[%s] %s: %gg", e.ID, e.FoodName, e.ProteinAmount))
	}
	return strings.Join(parts, ", "), nil
}

// dayWindow returns the [start, end) millisecond bounds of the local calendar
// day containing t.
func dayWindow(t time.Time) (int64, int64) {
	t = t.Local()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start.UnixMilli(), start.Add(24 * time.Hour).UnixMilli()
}
