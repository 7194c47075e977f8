package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilReplayIsNoop(t *testing.T) {
	var m *Replay
	assert.NotPanics(t, func() {
		m.ObserveEvent("deposit", OutcomeApplied)
		m.ObserveMalformedRow()
		m.AccountOpened()
		m.AccountLocked()
	})
}

func TestReplayCounters(t *testing.T) {
	m := NewReplay()
	m.ObserveEvent("deposit", OutcomeApplied)
	m.ObserveEvent("deposit", OutcomeApplied)
	m.ObserveEvent("withdrawal", "insufficient_funds")
	m.AccountOpened()
	m.ObserveMalformedRow()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("deposit", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsProcessed.WithLabelValues("withdrawal", "insufficient_funds")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Accounts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MalformedRows))
}

func TestNewReplayIsolated(t *testing.T) {
	a, b := NewReplay(), NewReplay()
	a.AccountOpened()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Accounts))
}

func TestWriteTextfile(t *testing.T) {
	m := NewReplay()
	m.ObserveEvent("dispute", OutcomeApplied)
	m.ReplayDuration.Observe(0.2)

	path := filepath.Join(t.TempDir(), "txreplay.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `txreplay_events_total{kind="dispute",outcome="applied"} 1`)
	assert.Contains(t, string(data), "txreplay_duration_seconds_count 1")
}
