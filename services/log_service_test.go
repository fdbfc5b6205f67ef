package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T, path string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ProteinLog{}, &models.ChatMessage{}))
	return db
}

func newTestLogService(t *testing.T) *LogService {
	t.Helper()
	return NewLogService(openTestDB(t, filepath.Join(t.TempDir(), "test.db")))
}

func TestAddEntryValidation(t *testing.T) {
	svc := newTestLogService(t)

	_, err := svc.AddEntry("   ", 10, time.Now().UnixMilli(), "")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	_, err = svc.AddEntry("Eggs", -1, time.Now().UnixMilli(), "")
	assert.ErrorAs(t, err, &ve)
}

func TestAddEntryGeneratesUniqueIDs(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now().UnixMilli()

	a, err := svc.AddEntry("Eggs (2)", 12, now, "")
	require.NoError(t, err)
	b, err := svc.AddEntry("Chicken breast", 30, now, "")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTotalProteinForDay(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	_, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)
	_, err = svc.AddEntry("Eggs (2)", 12, now.UnixMilli(), "")
	require.NoError(t, err)
	_, err = svc.AddEntry("Tofu", 20, yesterday.UnixMilli(), "")
	require.NoError(t, err)

	total, err := svc.TotalProteinFor(now)
	require.NoError(t, err)
	assert.Equal(t, 42.0, total)

	total, err = svc.TotalProteinFor(yesterday)
	require.NoError(t, err)
	assert.Equal(t, 20.0, total)
}

func TestUpdateEntryReplacesAmount(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now()

	entry, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)

	grams := 40.0
	updated, err := svc.UpdateEntry(entry.ID, EntryPatch{ProteinAmount: &grams})
	require.NoError(t, err)
	assert.Equal(t, entry.ID, updated.ID)
	assert.Equal(t, "Chicken breast", updated.FoodName)
	assert.Equal(t, 40.0, updated.ProteinAmount)

	// 40, not 30+40: the update replaced the entry in place.
	total, err := svc.TotalProteinFor(now)
	require.NoError(t, err)
	assert.Equal(t, 40.0, total)
}

func TestUpdateEntryNotFound(t *testing.T) {
	svc := newTestLogService(t)

	name := "Eggs"
	_, err := svc.UpdateEntry("missing-id", EntryPatch{FoodName: &name})
	var nf *ReferenceNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing-id", nf.ID)
}

func TestDeleteEntryPrunesMessages(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now()

	entry, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)
	other, err := svc.AddEntry("Eggs (2)", 12, now.UnixMilli(), "")
	require.NoError(t, err)

	_, err = svc.AddMessage(models.RoleAssistant, "기록했어요!", entry.ID)
	require.NoError(t, err)
	_, err = svc.AddMessage(models.RoleAssistant, "기록했어요!", other.ID)
	require.NoError(t, err)
	_, err = svc.AddMessage(models.RoleUser, "닭가슴살 먹었어", "")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEntry(entry.ID))

	entries, err := svc.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, other.ID, entries[0].ID)

	msgs, err := svc.ListMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.NotEqual(t, entry.ID, m.LogID)
	}

	// second delete of the same id is a no-op
	assert.NoError(t, svc.DeleteEntry(entry.ID))
}

func TestRoundTripPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.db")
	svc := NewLogService(openTestDB(t, path))
	now := time.Now()

	first, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)
	second, err := svc.AddEntry("Eggs (2)", 12, now.UnixMilli()+1, "data:image/jpeg;base64,abcd")
	require.NoError(t, err)
	msg, err := svc.AddMessage(models.RoleAssistant, "기록했어요!", first.ID)
	require.NoError(t, err)

	// fresh handle on the same file stands in for an app restart
	restored := NewLogService(openTestDB(t, path))

	entries, err := restored.ListEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, first.FoodName, entries[0].FoodName)
	assert.Equal(t, first.ProteinAmount, entries[0].ProteinAmount)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, second.ImageURL, entries[1].ImageURL)

	msgs, err := restored.ListMessages()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.Equal(t, first.ID, msgs[0].LogID)
}

func TestWeeklyBuckets(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now()

	_, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)
	_, err = svc.AddEntry("Tofu", 20, now.AddDate(0, 0, -2).UnixMilli(), "")
	require.NoError(t, err)
	// outside the window
	_, err = svc.AddEntry("Steak", 50, now.AddDate(0, 0, -8).UnixMilli(), "")
	require.NoError(t, err)

	report, err := svc.WeeklyBuckets(now)
	require.NoError(t, err)
	require.Len(t, report.Buckets, 7)

	last := report.Buckets[6]
	assert.True(t, last.IsToday)
	assert.Equal(t, now.Format("2006-01-02"), last.Date)
	assert.Equal(t, 30.0, last.TotalProtein)

	assert.Equal(t, 20.0, report.Buckets[4].TotalProtein)
	assert.Equal(t, 50.0, report.Total)
	assert.InDelta(t, 50.0/7, report.DailyAverage, 1e-9)

	for _, b := range report.Buckets[:6] {
		assert.False(t, b.IsToday)
	}
}

func TestHistorySummary(t *testing.T) {
	svc := newTestLogService(t)
	now := time.Now()

	entry, err := svc.AddEntry("Chicken breast", 30, now.UnixMilli(), "")
	require.NoError(t, err)

	summary, err := svc.HistorySummary(now)
	require.NoError(t, err)
	assert.Equal(t, "["+entry.ID+"] Chicken breast: 30g", summary)

	empty, err := svc.HistorySummary(now.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestGetEntryNotFound(t *testing.T) {
	svc := newTestLogService(t)
	_, err := svc.GetEntry("nope")
	var nf *ReferenceNotFoundError
	assert.True(t, errors.As(err, &nf))
}
