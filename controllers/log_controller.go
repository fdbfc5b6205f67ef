package controllers

import (
	"net/http"
	"time"

	"backend/services"

	"github.com/gin-gonic/gin"
)

type LogController struct {
	logs *services.LogService
	hub  *services.RealtimeHub
}

func NewLogController(logs *services.LogService, hub *services.RealtimeHub) *LogController {
	return &LogController{logs: logs, hub: hub}
}

// queryDay parses the optional ?date=YYYY-MM-DD param. ok=false means the
// param was present but invalid and a 400 was already written.
func queryDay(c *gin.Context) (time.Time, bool, bool) {
	dateStr := c.Query("date")
	if dateStr == "" {
		return time.Time{}, false, true
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date format. Use YYYY-MM-DD"})
		return time.Time{}, false, false
	}
	return day, true, true
}

func (lc *LogController) GetLogs(c *gin.Context) {
	day, hasDay, ok := queryDay(c)
	if !ok {
		return
	}

	var err error
	var entries any
	if hasDay {
		entries, err = lc.logs.EntriesForDay(day)
	} else {
		entries, err = lc.logs.ListEntries()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

// DeleteLog removes an entry and its referencing messages. Idempotent:
// deleting an unknown id still returns 204.
func (lc *LogController) DeleteLog(c *gin.Context) {
	if err := lc.logs.DeleteEntry(c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if lc.hub != nil {
		lc.hub.BroadcastLogUpdated("delete")
	}
	c.Status(http.StatusNoContent)
}

func (lc *LogController) GetMessages(c *gin.Context) {
	day, hasDay, ok := queryDay(c)
	if !ok {
		return
	}

	var err error
	var msgs any
	if hasDay {
		msgs, err = lc.logs.MessagesForDay(day)
	} else {
		msgs, err = lc.logs.ListMessages()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (lc *LogController) GetDailySummary(c *gin.Context) {
	day, hasDay, ok := queryDay(c)
	if !ok {
		return
	}
	if !hasDay {
		day = time.Now()
	}

	entries, err := lc.logs.EntriesForDay(day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var total float64
	for _, e := range entries {
		total += e.ProteinAmount
	}

	c.JSON(http.StatusOK, gin.H{
		"date":          day.Format("2006-01-02"),
		"total_protein": total,
		"logs":          entries,
	})
}

func (lc *LogController) GetWeeklySummary(c *gin.Context) {
	report, err := lc.logs.WeeklyBuckets(time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}
