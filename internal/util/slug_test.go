package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTagSlug(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Slow Burn", "slow-burn"},
		{"slow_burn", "slow-burn"},
		{"READ-LATER", "read-later"},
		{"🔖 Reading!", "reading"},
		{"  multi   word ", "multi-word"},
		{"--leading--", "leading"},
		{"go/golang", "go-golang"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTagSlug(tt.input), "input: %q", tt.input)
	}
}

func TestNormalizeTagSlugs_DropsEmptyAndDuplicates(t *testing.T) {
	got := NormalizeTagSlugs([]string{"Go", "go", "  ", "Rust!", "rust"})
	assert.Equal(t, []string{"go", "rust"}, got)
}
