package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ensemble-cast/internal/domain"
)

func ptr(v float64) *float64 { return &v }

func TestSerializeToMessage(t *testing.T) {
	generated := time.Date(2025, time.March, 1, 6, 30, 0, 0, time.UTC)
	t0 := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

	table := domain.Table{
		Models:      []string{"gfs_seamless", "icon_seamless"},
		GeneratedAt: generated,
		Columns:     []string{"temperature_2m_median", "precipitation_probability"},
		Times:       []time.Time{t0},
		Rows:        [][]*float64{{ptr(11.5), nil}},
	}

	msg, err := serializeToMessage(table)
	require.NoError(t, err)

	assert.Equal(t, []byte("2025-03-01T06:30:00Z"), msg.Key)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "models", msg.Headers[0].Key)
	assert.Equal(t, []byte("gfs_seamless,icon_seamless"), msg.Headers[0].Value)
	assert.Equal(t, "generated_at", msg.Headers[1].Key)
	assert.Equal(t, []byte("2025-03-01T06:30:00Z"), msg.Headers[1].Value)

	var payload tablePayload
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, table.Models, payload.Models)
	assert.Equal(t, table.Columns, payload.Columns)
	require.Len(t, payload.Rows, 1)
	require.NotNil(t, payload.Rows[0][0])
	assert.Equal(t, 11.5, *payload.Rows[0][0])
	assert.Nil(t, payload.Rows[0][1])
}
