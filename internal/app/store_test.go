package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RoboCtl/internal/model"
)

func TestStoreHistoryNewestFirst(t *testing.T) {
	s, err := OpenStore(filepath.Join(t.TempDir(), "hist", "telemetry.db"))
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(model.TelemetryRecord{
			At:        base.Add(time.Duration(i) * time.Second),
			Frame:     "[00012a]",
			Telemetry: model.TelemetryFrame{BatteryMilliVolts: uint16(100 + i)},
		}))
	}
	// same instant as the last one: insertion order wins
	require.NoError(t, s.Put(model.TelemetryRecord{
		At:        base.Add(2 * time.Second),
		Telemetry: model.TelemetryFrame{BatteryMilliVolts: 999},
	}))

	latest, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(999), latest.Telemetry.BatteryMilliVolts)

	recs, err := s.History(3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, uint16(999), recs[0].Telemetry.BatteryMilliVolts)
	assert.Equal(t, uint16(102), recs[1].Telemetry.BatteryMilliVolts)
	assert.Equal(t, uint16(101), recs[2].Telemetry.BatteryMilliVolts)
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")
	s, err := OpenStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(model.TelemetryRecord{At: time.Now(), Telemetry: model.TelemetryFrame{BatteryMilliVolts: 7}}))
	require.NoError(t, s.Close())

	s, err = OpenStore(path)
	require.NoError(t, err)
	defer s.Close()
	latest, ok, err := s.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(7), latest.Telemetry.BatteryMilliVolts)
}
