package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRawSeries(t *testing.T) {
	run := ModelRun{Model: "gfs025", InitializedAt: time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)}
	axis := hourlyAxis(3)

	t.Run("aligned members accepted", func(t *testing.T) {
		raw, err := NewRawSeries(run, map[string][]MemberSeries{
			"temperature_2m": {
				{Member: 0, Times: axis, Values: []*float64{ptr(10.0), ptr(11.0), ptr(12.0)}},
				{Member: 1, Times: axis, Values: []*float64{ptr(10.5), nil, ptr(12.5)}},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, axis, raw.Times)
		assert.Equal(t, 2, raw.MemberCount("temperature_2m"))
	})

	t.Run("misaligned timestamp axis rejected", func(t *testing.T) {
		shifted := make([]time.Time, len(axis))
		copy(shifted, axis)
		shifted[1] = shifted[1].Add(30 * time.Minute)

		_, err := NewRawSeries(run, map[string][]MemberSeries{
			"temperature_2m": {
				{Member: 0, Times: axis, Values: []*float64{ptr(10.0), ptr(11.0), ptr(12.0)}},
				{Member: 1, Times: shifted, Values: []*float64{ptr(10.5), ptr(11.5), ptr(12.5)}},
			},
		})

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMisalignedMembers)
		assert.Contains(t, err.Error(), "gfs025")
	})

	t.Run("misalignment across variables rejected", func(t *testing.T) {
		_, err := NewRawSeries(run, map[string][]MemberSeries{
			"temperature_2m": {{Member: 0, Times: axis, Values: []*float64{ptr(10.0), ptr(11.0), ptr(12.0)}}},
			"pressure_msl":   {{Member: 0, Times: axis[:2], Values: []*float64{ptr(1013.0), ptr(1014.0)}}},
		})

		assert.ErrorIs(t, err, ErrMisalignedMembers)
	})

	t.Run("value count must match timestamp count", func(t *testing.T) {
		_, err := NewRawSeries(run, map[string][]MemberSeries{
			"temperature_2m": {{Member: 0, Times: axis, Values: []*float64{ptr(10.0)}}},
		})

		assert.ErrorIs(t, err, ErrMisalignedMembers)
	})

	t.Run("timestamps normalized to UTC", func(t *testing.T) {
		paris, err := time.LoadLocation("Europe/Paris")
		require.NoError(t, err)
		local := []time.Time{axis[0].In(paris), axis[1].In(paris), axis[2].In(paris)}

		raw, err := NewRawSeries(run, map[string][]MemberSeries{
			"temperature_2m": {{Member: 0, Times: local, Values: []*float64{ptr(10.0), ptr(11.0), ptr(12.0)}}},
		})

		require.NoError(t, err)
		for i, ts := range raw.Times {
			assert.Equal(t, time.UTC, ts.Location())
			assert.True(t, ts.Equal(axis[i]))
		}
	})
}
