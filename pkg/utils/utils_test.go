package utils

import "testing"

func TestParseVideoInput(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		expectedTitle string
		expectedURL   string
	}{
		{
			name:          "title and url with separator",
			text:          "My Video | https://example.com/a.mp4",
			expectedTitle: "My Video",
			expectedURL:   "https://example.com/a.mp4",
		},
		{
			name:          "separator with extra whitespace",
			text:          "  Concert 2024   |   https://example.com/concert.mp4  ",
			expectedTitle: "Concert 2024",
			expectedURL:   "https://example.com/concert.mp4",
		},
		{
			name:          "bare url derives title from last segment",
			text:          "https://example.com/b.mp4",
			expectedTitle: "b.mp4",
			expectedURL:   "https://example.com/b.mp4",
		},
		{
			name:          "empty last segment falls back to default title",
			text:          "https://example.com/",
			expectedTitle: "Video",
			expectedURL:   "https://example.com/",
		},
		{
			name:          "percent-encoded segment is decoded",
			text:          "https://example.com/My%20Video.mp4",
			expectedTitle: "My Video.mp4",
			expectedURL:   "https://example.com/My%20Video.mp4",
		},
		{
			name:          "nested path uses only the last segment",
			text:          "https://cdn.example.com/v/2024/clip.mp4",
			expectedTitle: "clip.mp4",
			expectedURL:   "https://cdn.example.com/v/2024/clip.mp4",
		},
		{
			name:          "unparsable url falls back to default title",
			text:          "https://example.com/%zz",
			expectedTitle: "Video",
			expectedURL:   "https://example.com/%zz",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, url := ParseVideoInput(tt.text)
			if title != tt.expectedTitle {
				t.Errorf("ParseVideoInput(%q) title = %q, want %q", tt.text, title, tt.expectedTitle)
			}
			if url != tt.expectedURL {
				t.Errorf("ParseVideoInput(%q) url = %q, want %q", tt.text, url, tt.expectedURL)
			}
		})
	}
}

func TestHasURLScheme(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected bool
	}{
		{
			name:     "https link",
			text:     "https://example.com/video.mp4",
			expected: true,
		},
		{
			name:     "http link",
			text:     "check this http://example.com/a.mp4",
			expected: true,
		},
		{
			name:     "plain text",
			text:     "hello there",
			expected: false,
		},
		{
			name:     "scheme-less host",
			text:     "example.com/video.mp4",
			expected: false,
		},
		{
			name:     "empty",
			text:     "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := HasURLScheme(tt.text)
			if result != tt.expected {
				t.Errorf("HasURLScheme(%q) = %v, want %v", tt.text, result, tt.expected)
			}
		})
	}
}

func TestTruncateTitle(t *testing.T) {
	if got := TruncateTitle("short", 30); got != "short" {
		t.Errorf("expected short title unchanged, got %q", got)
	}

	long := "a very long video title that keeps going and going"
	got := TruncateTitle(long, 30)
	if len([]rune(got)) != 33 {
		t.Errorf("expected 30 runes plus ellipsis, got %q (%d runes)", got, len([]rune(got)))
	}
	if got[:5] != "a ver" {
		t.Errorf("expected truncation to keep the prefix, got %q", got)
	}
}
