package domain

import (
	"strings"
	"time"
)

// Question represents a question record within the system.
type Question struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	AskerID     string     `json:"asker_id"`
	TagSlugs    []string   `json:"tag_slugs"`
	ViewCount   int64      `json:"view_count"`
	AnswerCount int64      `json:"answer_count"`
	Seq         int64      `json:"-"` // per-question mutation sequence, bumped on every committed write
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NormalizeTagSlugs lowercases and trims the given slugs and collapses
// duplicates, preserving first-seen order for display.
func NormalizeTagSlugs(slugs []string) []string {
	if len(slugs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(slugs))
	out := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		slug = strings.ToLower(strings.TrimSpace(slug))
		if slug == "" {
			continue
		}
		if _, ok := seen[slug]; ok {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, slug)
	}
	return out
}

// DiffTagSets returns the symmetric difference between two normalized tag
// sets: slugs present only in next (added) and slugs present only in
// prev (removed).
func DiffTagSets(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]struct{}, len(prev))
	for _, slug := range prev {
		prevSet[slug] = struct{}{}
	}
	nextSet := make(map[string]struct{}, len(next))
	for _, slug := range next {
		nextSet[slug] = struct{}{}
	}

	for _, slug := range next {
		if _, ok := prevSet[slug]; !ok {
			added = append(added, slug)
		}
	}
	for _, slug := range prev {
		if _, ok := nextSet[slug]; !ok {
			removed = append(removed, slug)
		}
	}
	return added, removed
}
