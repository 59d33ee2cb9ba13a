package models

import "testing"

func TestBadgeText(t *testing.T) {
	tests := []struct {
		unread  int
		want    string
		visible bool
	}{
		{0, "", false},
		{-3, "", false},
		{1, "1", true},
		{2, "2", true},
		{99, "99", true},
		{100, "99+", true},
		{150, "99+", true},
	}
	for _, tt := range tests {
		got, visible := BadgeText(tt.unread)
		if got != tt.want || visible != tt.visible {
			t.Errorf("BadgeText(%d) = (%q, %v), want (%q, %v)", tt.unread, got, visible, tt.want, tt.visible)
		}
	}
}

func TestNormalizeClampsUnread(t *testing.T) {
	s := NotificationStats{
		Total:      5,
		Unread:     9,
		Today:      -1,
		ByType:     map[string]int{"message": 3, "system": -2},
		ByPriority: nil,
	}.Normalize()
	if s.Unread != 5 {
		t.Errorf("unread = %d, want 5", s.Unread)
	}
	if s.Today != 0 {
		t.Errorf("today = %d, want 0", s.Today)
	}
	if s.ByType["system"] != 0 || s.ByType["message"] != 3 {
		t.Errorf("by_type = %v", s.ByType)
	}
	if s.ByPriority == nil {
		t.Error("by_priority should be non-nil after normalize")
	}
	if text, _ := s.Badge(); text != "5" {
		t.Errorf("badge = %q", text)
	}
}
