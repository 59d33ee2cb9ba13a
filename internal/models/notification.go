// Package models defines the payloads exchanged with the marketplace API.
package models

import "strconv"

// BadgeCap is the largest unread count shown literally.
const BadgeCap = 99

// NotificationStats is the notification-statistics payload.
type NotificationStats struct {
	Total      int            `json:"total"`
	Unread     int            `json:"unread"`
	Today      int            `json:"today"`
	ThisWeek   int            `json:"this_week"`
	ByType     map[string]int `json:"by_type"`
	ByPriority map[string]int `json:"by_priority"`
}

// Normalize clamps negative counts to zero and keeps Unread ≤ Total.
func (s NotificationStats) Normalize() NotificationStats {
	s.Total = max(s.Total, 0)
	s.Unread = min(max(s.Unread, 0), s.Total)
	s.Today = max(s.Today, 0)
	s.ThisWeek = max(s.ThisWeek, 0)
	s.ByType = clampCounts(s.ByType)
	s.ByPriority = clampCounts(s.ByPriority)
	return s
}

// Badge returns the counter text and whether the badge is visible.
func (s NotificationStats) Badge() (string, bool) {
	return BadgeText(s.Unread)
}

// BadgeText renders an unread count: hidden at zero, literal up to
// BadgeCap, "99+" above.
func BadgeText(unread int) (string, bool) {
	switch {
	case unread <= 0:
		return "", false
	case unread > BadgeCap:
		return strconv.Itoa(BadgeCap) + "+", true
	default:
		return strconv.Itoa(unread), true
	}
}

func clampCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = max(v, 0)
	}
	return out
}
