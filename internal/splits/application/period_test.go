package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	splits "attorney-splits/internal/splits/domain"
)

func TestParseMonth(t *testing.T) {
	now := time.Date(2024, 7, 20, 8, 0, 0, 0, time.UTC)

	p, err := ParseMonth("", now)
	require.NoError(t, err)
	assert.Equal(t, "2024-07", p.Label())

	p, err = ParseMonth(" 2023-12 ", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), p.End)

	_, err = ParseMonth("July", now)
	require.Error(t, err)
	assert.Equal(t, splits.KindInvalidInput, splits.KindOf(err))
}

func TestPreviousMonthWrapsYear(t *testing.T) {
	p := PreviousMonth(time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2023-12", p.Label())

	p = PreviousMonth(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02", p.Label())
}
