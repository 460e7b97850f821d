package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// vietnameseWeekdays is indexed by Monday-based weekday.
var vietnameseWeekdays = []string{
	"Thứ Hai", "Thứ Ba", "Thứ Tư", "Thứ Năm", "Thứ Sáu", "Thứ Bảy", "Chủ Nhật",
}

// priorityNames maps announcement priorities to their Vietnamese labels.
// Unknown priorities pass through unchanged.
var priorityNames = map[string]string{
	"urgent":    "Khẩn cấp",
	"important": "Quan trọng",
	"normal":    "Bình thường",
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// StripHTML removes markup tags, leaving plain text.
func StripHTML(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// FormatSchedule renders a calendar entry as the canonical Vietnamese text
// used for embedding and for direct schedule answers. Empty fields are
// omitted, one labeled line per field.
func FormatSchedule(s Schedule) string {
	var parts []string

	if !s.Date.IsZero() {
		dayOfWeek := s.DayOfWeek
		if dayOfWeek == "" {
			dayOfWeek = vietnameseWeekdays[(int(s.Date.Weekday())+6)%7]
		}
		parts = append(parts, fmt.Sprintf("Lịch công tác ngày %s (%s)",
			s.Date.Format("02/01/2006"), dayOfWeek))
	}

	switch {
	case s.StartTime != "" && s.EndTime != "":
		parts = append(parts, fmt.Sprintf("Thời gian: %s - %s", s.StartTime, s.EndTime))
	case s.StartTime != "":
		parts = append(parts, "Thời gian bắt đầu: "+s.StartTime)
	}

	if s.Content != "" {
		parts = append(parts, "Nội dung: "+s.Content)
	}
	if s.Location != "" {
		parts = append(parts, "Địa điểm: "+s.Location)
	}
	if s.Leader != "" {
		parts = append(parts, "Chủ trì: "+s.Leader)
	}
	if len(s.Participants) > 0 {
		parts = append(parts, "Thành phần tham dự: "+strings.Join(s.Participants, ", "))
	}
	if s.PreparingUnit != "" {
		parts = append(parts, "Đơn vị chuẩn bị: "+s.PreparingUnit)
	}
	if len(s.CooperatingUnits) > 0 {
		parts = append(parts, "Đơn vị phối hợp: "+strings.Join(s.CooperatingUnits, ", "))
	}
	if s.Notes != "" {
		parts = append(parts, "Ghi chú: "+s.Notes)
	}

	return strings.Join(parts, "\n")
}

// FormatNews renders a news article for embedding. HTML in the body is
// stripped.
func FormatNews(n News) string {
	var parts []string

	if n.Title != "" {
		parts = append(parts, "Tin tức: "+n.Title)
	}
	if n.Summary != "" {
		parts = append(parts, "Tóm tắt: "+n.Summary)
	}
	if n.Content != "" {
		parts = append(parts, "Nội dung: "+StripHTML(n.Content))
	}
	if n.Category != "" {
		parts = append(parts, "Danh mục: "+n.Category)
	}
	if !n.PublishedAt.IsZero() {
		parts = append(parts, "Ngày đăng: "+n.PublishedAt.Format("02/01/2006"))
	}

	return strings.Join(parts, "\n")
}

// FormatAnnouncement renders an announcement for embedding.
func FormatAnnouncement(a Announcement) string {
	var parts []string

	if a.Title != "" {
		parts = append(parts, "Thông báo: "+a.Title)
	}
	if a.Content != "" {
		parts = append(parts, "Nội dung: "+StripHTML(a.Content))
	}
	if a.Priority != "" {
		label, ok := priorityNames[a.Priority]
		if !ok {
			label = a.Priority
		}
		parts = append(parts, "Mức độ: "+label)
	}
	if !a.PublishedAt.IsZero() {
		parts = append(parts, "Ngày đăng: "+a.PublishedAt.Format("02/01/2006"))
	}

	return strings.Join(parts, "\n")
}

// FormatVietnameseDate renders a date with its Vietnamese weekday,
// "Thứ Năm, ngày 22/01/2026".
func FormatVietnameseDate(t time.Time) string {
	return fmt.Sprintf("%s, ngày %s",
		vietnameseWeekdays[(int(t.Weekday())+6)%7], t.Format("02/01/2006"))
}
