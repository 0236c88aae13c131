package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISOWeekRange(t *testing.T) {
	start, end, err := isoWeekRange(2026, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, time.January, 11, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, time.Monday, start.Weekday())
	assert.Equal(t, time.Sunday, end.Weekday())
}

func TestISOWeekRange_Week1SpansYearBoundary(t *testing.T) {
	start, _, err := isoWeekRange(2026, 1)
	require.NoError(t, err)
	// ISO week 1 of 2026 starts in December 2025.
	assert.Equal(t, time.Date(2025, time.December, 29, 0, 0, 0, 0, time.UTC), start)
}

func TestISOWeekRange_RejectsMissingWeek53(t *testing.T) {
	// 2025 has 52 ISO weeks.
	_, _, err := isoWeekRange(2025, 53)
	assert.Error(t, err)

	// 2026 has 53.
	_, _, err = isoWeekRange(2026, 53)
	assert.NoError(t, err)
}

func TestISOWeekRange_RejectsOutOfRange(t *testing.T) {
	_, _, err := isoWeekRange(2026, 0)
	assert.Error(t, err)
	_, _, err = isoWeekRange(2026, 54)
	assert.Error(t, err)
}
