package app

import (
	"log/slog"
	"testing"

	"github.com/vhoang/troly/internal/config"
	"github.com/vhoang/troly/internal/dateparse"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWeekdayMode(t *testing.T) {
	if got := weekdayMode(&config.Config{}); got != dateparse.WeekdayToday {
		t.Errorf("default mode = %v, want WeekdayToday", got)
	}
	if got := weekdayMode(&config.Config{WeekdayNextWeek: true}); got != dateparse.WeekdayNextWeek {
		t.Errorf("mode = %v, want WeekdayNextWeek", got)
	}
}

func TestOllamaAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434", "http://localhost:11434"},
		{"https://ollama.tbu.edu.vn", "https://ollama.tbu.edu.vn"},
	}
	for _, tt := range tests {
		if got := ollamaAddress(tt.in); got != tt.want {
			t.Errorf("ollamaAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
