package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransitionDate(t *testing.T) {
	parsed, err := ParseTransitionDate("User initiated (2026-08-30 14:05:00 GMT)")
	require.NoError(t, err)
	assert.Equal(t, 2026, parsed.Year())
	assert.Equal(t, time.August, parsed.Month())
	assert.Equal(t, 30, parsed.Day())
	assert.Equal(t, 14, parsed.Hour())
}

func TestParseTransitionDate_NoDate(t *testing.T) {
	_, err := ParseTransitionDate("User initiated")
	require.Error(t, err)

	_, err = ParseTransitionDate("")
	require.Error(t, err)
}

func TestFormatRunningTime(t *testing.T) {
	assert.Equal(t, "3h", FormatRunningTime(3*time.Hour+20*time.Minute))
	assert.Equal(t, "0h", FormatRunningTime(10*time.Minute))
	assert.Equal(t, "2d 5h", FormatRunningTime(53*time.Hour))
}
