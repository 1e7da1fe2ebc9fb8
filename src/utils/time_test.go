package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("parses a calendar date", func(t *testing.T) {
		parsed, err := ParseDate("2024-05-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), parsed)
	})

	t.Run("parses a full timestamp", func(t *testing.T) {
		parsed, err := ParseDate("2024-05-01T08:30:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC), parsed)
	})

	t.Run("rejects other formats", func(t *testing.T) {
		_, err := ParseDate("05/01/2024")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unrecognized date")
	})
}

func TestMinMaxTime(t *testing.T) {
	earlier := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	assert.Equal(t, earlier, GetMinTime(earlier, later))
	assert.Equal(t, earlier, GetMinTime(later, earlier))
	assert.Equal(t, later, GetMaxTime(earlier, later))
	assert.Equal(t, later, GetMaxTime(later, earlier))
}
