package domain

import (
	"reflect"
	"testing"
)

func TestNormalizeTagSlugs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "Duplicates Collapse",
			in:   []string{"go", "rust", "go"},
			want: []string{"go", "rust"},
		},
		{
			name: "Case Folds To Lowercase",
			in:   []string{"Go", "RUST", "go"},
			want: []string{"go", "rust"},
		},
		{
			name: "Whitespace And Empties Dropped",
			in:   []string{" go ", "", "  "},
			want: []string{"go"},
		},
		{
			name: "Display Order Preserved",
			in:   []string{"systems", "caching", "go"},
			want: []string{"systems", "caching", "go"},
		},
		{
			name: "Empty Input",
			in:   nil,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTagSlugs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeTagSlugs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDiffTagSets(t *testing.T) {
	tests := []struct {
		name        string
		prev        []string
		next        []string
		wantAdded   []string
		wantRemoved []string
	}{
		{
			name:        "Symmetric Difference",
			prev:        []string{"go", "rust"},
			next:        []string{"rust", "systems"},
			wantAdded:   []string{"systems"},
			wantRemoved: []string{"go"},
		},
		{
			name:        "No Change",
			prev:        []string{"go", "rust"},
			next:        []string{"rust", "go"},
			wantAdded:   nil,
			wantRemoved: nil,
		},
		{
			name:        "All Added",
			prev:        nil,
			next:        []string{"go"},
			wantAdded:   []string{"go"},
			wantRemoved: nil,
		},
		{
			name:        "All Removed",
			prev:        []string{"go", "caching"},
			next:        nil,
			wantAdded:   nil,
			wantRemoved: []string{"go", "caching"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			added, removed := DiffTagSets(tt.prev, tt.next)
			if !reflect.DeepEqual(added, tt.wantAdded) {
				t.Errorf("added = %v, want %v", added, tt.wantAdded)
			}
			if !reflect.DeepEqual(removed, tt.wantRemoved) {
				t.Errorf("removed = %v, want %v", removed, tt.wantRemoved)
			}
		})
	}
}
