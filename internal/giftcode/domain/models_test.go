package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidDuration(t *testing.T) {
	for _, months := range []int{1, 3, 6, 12} {
		assert.True(t, ValidDuration(months), "months=%d", months)
	}
	for _, months := range []int{0, 2, 4, 5, 7, 11, 13, 24, -1} {
		assert.False(t, ValidDuration(months), "months=%d", months)
	}
}

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := NewCode()
		assert.Len(t, code, 12)
		for _, r := range code {
			assert.Contains(t, codeAlphabet, string(r))
		}
		seen[code] = true
	}
	assert.Len(t, seen, 50)
}
