package sanitize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Sanitizer strips a configured set of HTML elements from question content
// before persistence. The element list is configuration; the service makes
// no further policy decisions about markup.
type Sanitizer struct {
	elementPatterns []*regexp.Regexp
	logger          *slog.Logger
}

// NewSanitizer creates a Sanitizer that removes the given HTML elements,
// including their content for paired tags and any stray open or close tags.
func NewSanitizer(elements []string, logger *slog.Logger) *Sanitizer {
	patterns := make([]*regexp.Regexp, 0, 2*len(elements))
	for _, element := range elements {
		element = strings.TrimSpace(strings.ToLower(element))
		if element == "" {
			continue
		}
		quoted := regexp.QuoteMeta(element)
		// Paired form with body, then any leftover lone tags.
		patterns = append(patterns,
			regexp.MustCompile(fmt.Sprintf(`(?is)<\s*%s\b[^>]*>.*?<\s*/\s*%s\s*>`, quoted, quoted)),
			regexp.MustCompile(fmt.Sprintf(`(?is)<\s*/?\s*%s\b[^>]*/?\s*>`, quoted)),
		)
	}
	return &Sanitizer{
		elementPatterns: patterns,
		logger:          logger,
	}
}

// Sanitize returns the content with all configured elements removed.
func (s *Sanitizer) Sanitize(content string) string {
	for _, pattern := range s.elementPatterns {
		content = pattern.ReplaceAllString(content, "")
	}
	return content
}
