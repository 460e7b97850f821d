// Package intent classifies Vietnamese user queries ahead of retrieval.
//
// Classification is keyword-based by design: it must be instant and run before
// any model call, so the pipeline can short-circuit greetings and route
// schedule questions to structured lookup. Matching is substring-based on the
// lowercased query, which over-matches occasionally; that trade-off favors
// recall for schedule questions.
package intent

import (
	"strings"
	"unicode/utf8"
)

// Kind is the coarse query category driving pipeline routing.
type Kind int

const (
	// General goes through the full retrieval pipeline with caching.
	General Kind = iota

	// Greeting short-circuits to a canned response, no retrieval.
	Greeting

	// Schedule enables date resolution and structured schedule lookup,
	// and disables the query cache.
	Schedule
)

// String returns the category name for logging.
func (k Kind) String() string {
	switch k {
	case Greeting:
		return "greeting"
	case Schedule:
		return "schedule"
	default:
		return "general"
	}
}

// GreetingKind narrows a Greeting query to pick the canned response.
type GreetingKind int

const (
	GreetingHello GreetingKind = iota
	GreetingThanks
	GreetingFarewell
	GreetingIdentity
	GreetingCapability
	GreetingOther
)

// greetingPatterns is checked for both the short-query and the
// leading-greeting rules. Ordered, longer phrases before their prefixes.
var greetingPatterns = []string{
	"xin chào", "chào bạn", "chào", "hello", "hi", "hey",
	"cảm ơn", "thank", "thanks", "tạm biệt", "bye",
	"bạn là ai", "bạn tên gì", "ai đó", "bạn có thể làm gì",
	"bạn khỏe", "khỏe không", "ơi", "ê", "này",
}

// greetingKinds maps phrase groups to the response category, checked in order.
var greetingKinds = []struct {
	phrases []string
	kind    GreetingKind
}{
	{[]string{"xin chào", "chào bạn", "chào", "hello", "hi", "hey"}, GreetingHello},
	{[]string{"cảm ơn", "thank", "thanks"}, GreetingThanks},
	{[]string{"tạm biệt", "bye", "goodbye"}, GreetingFarewell},
	{[]string{"bạn là ai", "bạn tên gì", "ai đó"}, GreetingIdentity},
	{[]string{"bạn có thể làm gì", "giúp gì", "hỗ trợ gì"}, GreetingCapability},
}

// scheduleKeywords mark a query as schedule-related on their own.
var scheduleKeywords = []string{
	"lịch", "lịch công tác", "lịch họp", "lịch làm việc",
	"cuộc họp", "họp gì", "sự kiện", "hoạt động gì",
	"có gì", "làm gì", "diễn ra", "tổ chức",
}

// timeSchedulePhrases are time-plus-activity compounds that imply a schedule
// question without naming a schedule keyword.
var timeSchedulePhrases = []string{
	"hôm nay có", "ngày mai có", "tuần này có", "tuần sau có",
	"hôm nay làm", "ngày mai làm", "có lịch", "có họp",
	"lịch gì", "họp gì", "gì không",
}

// Classify routes a query. Greeting takes precedence over Schedule: a bare
// "chào bạn" must never reach retrieval even though "chào" is short.
func Classify(query string) Kind {
	if IsGreeting(query) {
		return Greeting
	}
	if IsScheduleQuery(query) {
		return Schedule
	}
	return General
}

// IsGreeting reports whether the query is a greeting or casual chat rather
// than an information request. Two rules:
//
//  1. Short queries (under 15 characters) containing any greeting phrase.
//  2. Queries that equal a greeting phrase, or start with one followed by
//     fewer than 10 characters of remaining content.
func IsGreeting(query string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return false
	}

	if utf8.RuneCountInString(lower) < 15 {
		for _, g := range greetingPatterns {
			if strings.Contains(lower, g) {
				return true
			}
		}
	}

	for _, g := range greetingPatterns {
		if lower != g && !strings.HasPrefix(lower, g+" ") {
			continue
		}
		remaining := strings.TrimSpace(strings.ReplaceAll(lower, g, ""))
		if utf8.RuneCountInString(remaining) < 10 {
			return true
		}
	}

	return false
}

// IsScheduleQuery reports whether the query asks about the working calendar.
func IsScheduleQuery(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range scheduleKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	for _, phrase := range timeSchedulePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ClassifyGreeting picks the canned-response category for a greeting query.
func ClassifyGreeting(query string) GreetingKind {
	lower := strings.ToLower(strings.TrimSpace(query))
	for _, group := range greetingKinds {
		for _, g := range group.phrases {
			if strings.Contains(lower, g) {
				return group.kind
			}
		}
	}
	return GreetingOther
}
