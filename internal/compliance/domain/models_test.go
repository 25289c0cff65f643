package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLabelForScoreBoundaries(t *testing.T) {
	assert.Equal(t, StatusActive, LabelForScore(100))
	assert.Equal(t, StatusActive, LabelForScore(81))
	assert.Equal(t, StatusAtRisk, LabelForScore(80))
	assert.Equal(t, StatusAtRisk, LabelForScore(51))
	assert.Equal(t, StatusBroken, LabelForScore(50))
	assert.Equal(t, StatusBroken, LabelForScore(0))
}

func TestStreakDays(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, StreakDays(nil, now))

	sameDay := time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, StreakDays(&sameDay, now))

	weekAgo := time.Date(2026, 3, 3, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 8, StreakDays(&weekAgo, now))

	future := now.Add(48 * time.Hour)
	assert.Equal(t, 0, StreakDays(&future, now))
}

func TestViolationTypeValid(t *testing.T) {
	assert.True(t, ViolationAttempt.Valid())
	assert.True(t, ViolationManualDisable.Valid())
	assert.False(t, ViolationType("uninstall").Valid())
	assert.False(t, ViolationType("").Valid())
}
