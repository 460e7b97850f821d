package intent

import "testing"

func TestIsGreeting(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"plain hello", "xin chào", true},
		{"short casual", "chào bạn", true},
		{"english hi", "hi", true},
		{"thanks", "cảm ơn nhé", true},
		{"farewell", "tạm biệt", true},
		{"identity", "bạn là ai", true},
		{"greeting with short tail", "chào bạn nhé", true},
		{"greeting with real question", "xin chào, hôm nay có lịch công tác gì không", false},
		{"schedule question", "lịch công tác tuần này", false},
		{"document question", "quy chế đào tạo của trường", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsGreeting(tt.query); got != tt.want {
				t.Errorf("IsGreeting(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestIsScheduleQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"explicit keyword", "lịch công tác ngày mai", true},
		{"meeting", "cuộc họp với ban giám hiệu", true},
		{"event", "sự kiện tuần sau", true},
		{"time compound", "hôm nay có gì không", true},
		{"implicit compound", "ngày mai làm việc ở đâu", true},
		{"news question", "tin tức mới nhất của trường", false},
		{"document question", "quy chế tuyển sinh năm nay", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsScheduleQuery(tt.query); got != tt.want {
				t.Errorf("IsScheduleQuery(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		query string
		want  Kind
	}{
		{"xin chào", Greeting},
		{"lịch công tác hôm nay", Schedule},
		{"tin tức mới nhất", General},
		// Greeting wins over schedule when both could match.
		{"chào bạn", Greeting},
	}
	for _, tt := range tests {
		if got := Classify(tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestClassifyGreeting(t *testing.T) {
	tests := []struct {
		query string
		want  GreetingKind
	}{
		{"xin chào", GreetingHello},
		{"cảm ơn nhiều", GreetingThanks},
		{"tạm biệt nhé", GreetingFarewell},
		{"bạn là ai", GreetingIdentity},
		{"bạn có thể làm gì", GreetingCapability},
		{"ơi", GreetingOther},
	}
	for _, tt := range tests {
		if got := ClassifyGreeting(tt.query); got != tt.want {
			t.Errorf("ClassifyGreeting(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if Greeting.String() != "greeting" || Schedule.String() != "schedule" || General.String() != "general" {
		t.Error("Kind.String() mismatch")
	}
}
