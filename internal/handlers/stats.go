package handlers

import (
	"net/http"
	"time"

	"github.com/ramevans/Medical-Platform/internal/models"
)

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalDevices   int64                        `json:"total_devices"`
	TotalUsers     int64                        `json:"total_users"`
	TotalReadings  int64                        `json:"total_readings"`
	ReadingsByKind map[models.ReadingKind]int64 `json:"readings_by_kind"`
	LastActivity   string                       `json:"last_activity"`
}

// Stats returns platform-wide totals for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	totalDevices, err := h.db.CountDevices(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count devices")
		return
	}

	totalUsers, err := h.db.CountUsers(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count users")
		return
	}

	byKind, err := h.db.CountReadingsByKind(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to count readings")
		return
	}
	var totalReadings int64
	for _, count := range byKind {
		totalReadings += count
	}

	lastReading, err := h.db.LatestReadingTime(ctx)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to get last activity")
		return
	}

	lastActivity := "no activity yet"
	if lastReading != nil {
		lastActivity = formatTimeAgo(*lastReading)
	}

	h.JSON(w, http.StatusOK, StatsResponse{
		TotalDevices:   totalDevices,
		TotalUsers:     totalUsers,
		TotalReadings:  totalReadings,
		ReadingsByKind: byKind,
		LastActivity:   lastActivity,
	})
}

// formatTimeAgo formats a time as a human-readable "X ago" string.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return formatInt(mins) + " minutes ago"
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return formatInt(hours) + " hours ago"
	default:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return formatInt(days) + " days ago"
	}
}

// formatInt converts an int to string without importing strconv.
func formatInt(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
