package sanitize

import (
	"io"
	"log/slog"
	"testing"
)

func TestSanitizer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sanitizer := NewSanitizer([]string{"script", "iframe"}, logger)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Strips paired script element",
			input:    `before<script>alert("x")</script>after`,
			expected: "beforeafter",
		},
		{
			name:     "Strips element with attributes",
			input:    `<script type="text/javascript">x()</script>text`,
			expected: "text",
		},
		{
			name:     "Case insensitive",
			input:    `<SCRIPT>x()</SCRIPT>ok`,
			expected: "ok",
		},
		{
			name:     "Strips lone open tag",
			input:    `a<iframe src="evil">b`,
			expected: "ab",
		},
		{
			name:     "Leaves other markup alone",
			input:    `<p>How do I use <code>context.Context</code>?</p>`,
			expected: `<p>How do I use <code>context.Context</code>?</p>`,
		},
		{
			name:     "Plain text untouched",
			input:    "why is my goroutine leaking",
			expected: "why is my goroutine leaking",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.expected {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
