package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunChangeDetector(t *testing.T) {
	processed := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	newer := processed.Add(6 * time.Hour)

	t.Run("never processed is stale", func(t *testing.T) {
		d := NewRunChangeDetector()

		assert.True(t, d.Check("gfs025", time.Time{}, processed))
		assert.Equal(t, RunStale, d.State("gfs025"))
	})

	t.Run("newer run is stale", func(t *testing.T) {
		d := NewRunChangeDetector()

		assert.True(t, d.Check("gfs025", processed, newer))
		assert.Equal(t, RunStale, d.State("gfs025"))
	})

	t.Run("same run is up to date", func(t *testing.T) {
		d := NewRunChangeDetector()

		assert.False(t, d.Check("gfs025", processed, processed))
		assert.Equal(t, RunUpToDate, d.State("gfs025"))
	})

	t.Run("older run is up to date", func(t *testing.T) {
		d := NewRunChangeDetector()

		assert.False(t, d.Check("gfs025", newer, processed))
	})

	t.Run("mark processed returns to up to date", func(t *testing.T) {
		d := NewRunChangeDetector()
		d.Check("gfs025", time.Time{}, processed)

		d.MarkProcessed("gfs025")

		assert.Equal(t, RunUpToDate, d.State("gfs025"))
	})

	t.Run("models tracked independently", func(t *testing.T) {
		d := NewRunChangeDetector()
		d.Check("gfs025", time.Time{}, processed)
		d.Check("ecmwf_ifs025", processed, processed)

		assert.Equal(t, RunStale, d.State("gfs025"))
		assert.Equal(t, RunUpToDate, d.State("ecmwf_ifs025"))
	})
}

func TestRunStateString(t *testing.T) {
	assert.Equal(t, "up_to_date", RunUpToDate.String())
	assert.Equal(t, "stale", RunStale.String())
}
