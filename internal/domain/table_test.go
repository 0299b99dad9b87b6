package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTable(t *testing.T) {
	frozen := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	defer SetClock(nil)

	axis := hourlyAxis(2)
	consolidated := Consolidated{
		Models: []string{"gfs025"},
		Times:  axis,
		Columns: map[string][]*float64{
			"temperature_2m_p10":                {ptr(9.0), ptr(10.0)},
			"temperature_2m_median":             {ptr(10.0), ptr(11.0)},
			"temperature_2m_p90":                {ptr(11.0), ptr(12.0)},
			"precipitation_probability":         {ptr(0.5), nil},
			"precipitation_conditional_average": {ptr(0.35), nil},
		},
	}

	t.Run("deterministic column order from variable order", func(t *testing.T) {
		table := consolidated.BuildTable(time.UTC, []string{"precipitation", "temperature_2m"})

		assert.Equal(t, []string{
			"precipitation_probability", "precipitation_conditional_average",
			"temperature_2m_p10", "temperature_2m_median", "temperature_2m_p90",
		}, table.Columns)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, 0.5, *table.Rows[0][0])
		assert.Equal(t, 10.0, *table.Rows[0][3])
		assert.Nil(t, table.Rows[1][0], "undefined cells survive as holes")
		assert.Equal(t, frozen, table.GeneratedAt)
	})

	t.Run("absent variables skipped", func(t *testing.T) {
		table := consolidated.BuildTable(time.UTC, []string{"cape", "temperature_2m"})

		assert.Equal(t, []string{"temperature_2m_p10", "temperature_2m_median", "temperature_2m_p90"}, table.Columns)
	})

	t.Run("timestamps converted to local timezone", func(t *testing.T) {
		zurich, err := time.LoadLocation("Europe/Zurich")
		require.NoError(t, err)

		table := consolidated.BuildTable(zurich, []string{"temperature_2m"})

		for i, ts := range table.Times {
			assert.Equal(t, zurich, ts.Location())
			assert.True(t, ts.Equal(axis[i]), "conversion must not shift the instant")
		}
	})

	t.Run("nil location defaults to UTC", func(t *testing.T) {
		table := consolidated.BuildTable(nil, []string{"temperature_2m"})

		assert.Equal(t, time.UTC, table.Times[0].Location())
	})
}

func TestSummaryTable(t *testing.T) {
	axis := hourlyAxis(2)
	summary := summaryOf("gfs025", axis, map[string][]*float64{
		"temperature_2m_p10":    {ptr(9.0), ptr(10.0)},
		"temperature_2m_median": {ptr(10.0), ptr(11.0)},
		"temperature_2m_p90":    {ptr(11.0), ptr(12.0)},
	})

	table := summary.SummaryTable(time.UTC, []string{"temperature_2m"})

	assert.Equal(t, []string{"gfs025"}, table.Models)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 10.0, *table.Rows[0][1])
	assert.Equal(t, 12.0, *table.Rows[1][2])
}
