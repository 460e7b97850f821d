// Package dateparse resolves Vietnamese natural-language date expressions.
//
// The parser recognizes relative offsets ("3 ngày nữa"), named relative days
// ("hôm nay", "ngày mai"), week and month ranges ("tuần này", "tháng này"),
// explicit numeric dates ("25/01/2026", "ngày 25") and weekday names
// ("thứ năm"). Patterns are tried in strict precedence order; the first match
// wins. A query never combines multiple date cues.
//
// All resolved dates are truncated to midnight in the clock's location.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the two shapes an Expression can take.
type Kind int

const (
	// SingleDate is one calendar day.
	SingleDate Kind = iota

	// DateRange is an inclusive span of calendar days.
	DateRange
)

// Expression is a resolved date expression.
// For SingleDate only Date is set; for DateRange, Start and End.
// Matched holds the original phrase for diagnostics.
type Expression struct {
	Kind    Kind
	Date    time.Time
	Start   time.Time
	End     time.Time
	Matched string
}

// Predicate is an inclusive calendar-day filter compiled from an Expression,
// usable directly in a structured date query (date BETWEEN Start AND End).
// A single date compiles to Start == End.
type Predicate struct {
	Start time.Time
	End   time.Time
}

// WeekdayMode selects how a weekday name resolves when the named day is today.
// The original behavior is ambiguous; callers choose explicitly.
type WeekdayMode int

const (
	// WeekdayToday resolves "thứ năm" asked on a Thursday to today.
	WeekdayToday WeekdayMode = iota

	// WeekdayNextWeek resolves it to the same weekday next week.
	WeekdayNextWeek
)

// Parser parses Vietnamese date expressions against an injected clock.
type Parser struct {
	now         func() time.Time
	weekdayMode WeekdayMode
}

// Option configures a Parser.
type Option func(*Parser)

// WithNow sets the clock. Defaults to time.Now.
func WithNow(now func() time.Time) Option {
	return func(p *Parser) {
		p.now = now
	}
}

// WithWeekdayMode sets same-day weekday resolution. Defaults to WeekdayToday.
func WithWeekdayMode(mode WeekdayMode) Option {
	return func(p *Parser) {
		p.weekdayMode = mode
	}
}

// NewParser creates a Parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		now:         time.Now,
		weekdayMode: WeekdayToday,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Offset and explicit-date patterns. Matching runs on lowercased input.
var (
	reForwardOffset  = regexp.MustCompile(`(\d+)\s*ngày\s*(nữa|tới|sau|tiếp)`)
	reBackwardOffset = regexp.MustCompile(`(\d+)\s*ngày\s*trước`)
	reFullDate       = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})[/\-](\d{4})`)
	reShortDate      = regexp.MustCompile(`(\d{1,2})[/\-](\d{1,2})`)
	reDayOfMonth     = regexp.MustCompile(`ngày\s*(\d{1,2})`)
)

// relativeKind tags entries in the named-relative phrase table.
type relativeKind int

const (
	relDay relativeKind = iota
	relThisWeek
	relNextWeek
	relLastWeek
	relThisMonth
	relNextMonth
	relLastMonth
)

// relativePhrases is the ordered named-relative table. First match wins, so
// longer phrases sharing a prefix must come before shorter ones.
var relativePhrases = []struct {
	phrase string
	kind   relativeKind
	offset int // day offset, only for relDay
}{
	{"hôm nay", relDay, 0},
	{"hôm qua", relDay, -1},
	{"ngày mai", relDay, 1},
	{"ngày kia", relDay, 2},
	{"ngày mốt", relDay, 2},
	{"tuần này", relThisWeek, 0},
	{"tuần sau", relNextWeek, 0},
	{"tuần trước", relLastWeek, 0},
	{"tháng này", relThisMonth, 0},
	{"tháng sau", relNextMonth, 0},
	{"tháng trước", relLastMonth, 0},
}

// weekdayPhrases maps Vietnamese weekday names to a Monday-based index.
// Ordered table: abbreviations follow their full forms.
var weekdayPhrases = []struct {
	phrase string
	index  int
}{
	{"thứ hai", 0}, {"thứ 2", 0}, {"t2", 0},
	{"thứ ba", 1}, {"thứ 3", 1}, {"t3", 1},
	{"thứ tư", 2}, {"thứ 4", 2}, {"t4", 2},
	{"thứ năm", 3}, {"thứ 5", 3}, {"t5", 3},
	{"thứ sáu", 4}, {"thứ 6", 4}, {"t6", 4},
	{"thứ bảy", 5}, {"thứ 7", 5}, {"t7", 5},
	{"chủ nhật", 6}, {"cn", 6},
}

// vietnameseWeekdays is indexed by Monday-based weekday.
var vietnameseWeekdays = []string{
	"Thứ Hai", "Thứ Ba", "Thứ Tư", "Thứ Năm", "Thứ Sáu", "Thứ Bảy", "Chủ Nhật",
}

// Parse resolves the first date expression found in text.
// Returns false when no pattern matches; the caller must then treat the query
// as date-unaugmented.
func (p *Parser) Parse(text string) (Expression, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	today := midnight(p.now())

	// 1. Numeric forward offset: "N ngày nữa/tới/sau/tiếp".
	if m := reForwardOffset.FindStringSubmatch(lower); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			return singleDate(today.AddDate(0, 0, days), m[0]), true
		}
	}

	// 2. Numeric backward offset: "N ngày trước".
	if m := reBackwardOffset.FindStringSubmatch(lower); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			return singleDate(today.AddDate(0, 0, -days), m[0]), true
		}
	}

	// 3. Named relative days, weeks and months.
	for _, entry := range relativePhrases {
		if !strings.Contains(lower, entry.phrase) {
			continue
		}
		return p.resolveRelative(entry.kind, entry.offset, today, entry.phrase), true
	}

	// 4. Explicit numeric dates. Invalid days fall through, not fail.
	if m := reFullDate.FindStringSubmatch(lower); m != nil {
		if d, ok := makeDate(atoi(m[3]), atoi(m[2]), atoi(m[1]), today.Location()); ok {
			return singleDate(d, m[0]), true
		}
	}
	if m := reShortDate.FindStringSubmatch(lower); m != nil {
		if d, ok := makeDate(today.Year(), atoi(m[2]), atoi(m[1]), today.Location()); ok {
			return singleDate(d, m[0]), true
		}
	}
	if m := reDayOfMonth.FindStringSubmatch(lower); m != nil {
		if d, ok := makeDate(today.Year(), int(today.Month()), atoi(m[1]), today.Location()); ok {
			return singleDate(d, m[0]), true
		}
	}

	// 5. Weekday names resolve to the next occurrence.
	for _, entry := range weekdayPhrases {
		if !strings.Contains(lower, entry.phrase) {
			continue
		}
		ahead := (entry.index - mondayIndex(today) + 7) % 7
		if ahead == 0 && p.weekdayMode == WeekdayNextWeek {
			ahead = 7
		}
		return singleDate(today.AddDate(0, 0, ahead), entry.phrase), true
	}

	return Expression{}, false
}

// resolveRelative expands a named-relative table entry. Weeks run Monday
// through Sunday; months cover the full calendar month.
func (p *Parser) resolveRelative(kind relativeKind, offset int, today time.Time, phrase string) Expression {
	switch kind {
	case relDay:
		return singleDate(today.AddDate(0, 0, offset), phrase)
	case relThisWeek, relNextWeek, relLastWeek:
		start := today.AddDate(0, 0, -mondayIndex(today))
		if kind == relNextWeek {
			start = start.AddDate(0, 0, 7)
		} else if kind == relLastWeek {
			start = start.AddDate(0, 0, -7)
		}
		return dateRange(start, start.AddDate(0, 0, 6), phrase)
	default: // relThisMonth, relNextMonth, relLastMonth
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		if kind == relNextMonth {
			first = first.AddDate(0, 1, 0)
		} else if kind == relLastMonth {
			first = first.AddDate(0, -1, 0)
		}
		last := first.AddDate(0, 1, -1)
		return dateRange(first, last, phrase)
	}
}

// Enhance appends the resolved date in human-readable form to the query text,
// giving the embedding an explicit date to anchor on.
func (e Expression) Enhance(query string) string {
	if e.Kind == DateRange {
		return fmt.Sprintf("%s (Khoảng thời gian: từ %s đến %s)",
			query, FormatVietnamese(e.Start), FormatVietnamese(e.End))
	}
	return fmt.Sprintf("%s (Ngày cần tìm: %s)", query, FormatVietnamese(e.Date))
}

// Predicate compiles the expression into an inclusive calendar-day filter.
func (e Expression) Predicate() Predicate {
	if e.Kind == DateRange {
		return Predicate{Start: e.Start, End: e.End}
	}
	return Predicate{Start: e.Date, End: e.Date}
}

// FormatVietnamese renders a date as "Thứ Năm, ngày 22/01/2026".
func FormatVietnamese(t time.Time) string {
	return fmt.Sprintf("%s, ngày %02d/%02d/%d",
		vietnameseWeekdays[mondayIndex(t)], t.Day(), int(t.Month()), t.Year())
}

// CurrentDateContext renders the current date as context for the generator.
func CurrentDateContext(now time.Time) string {
	return "Hôm nay là " + FormatVietnamese(now) + "."
}

// midnight truncates t to the start of its calendar day.
func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// mondayIndex converts time.Weekday (Sunday=0) to a Monday-based index.
func mondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// makeDate builds a date and reports whether the components were valid.
// time.Date normalizes out-of-range days (32/01 becomes 01/02), so the
// round-trip check rejects them.
func makeDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func singleDate(d time.Time, matched string) Expression {
	return Expression{Kind: SingleDate, Date: d, Matched: matched}
}

func dateRange(start, end time.Time, matched string) Expression {
	return Expression{Kind: DateRange, Start: start, End: end, Matched: matched}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
