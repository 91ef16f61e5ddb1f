package util

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Add("sweep", "@every 1m", func() {}))
	require.NoError(t, s.Add("nightly", "0 3 * * *", func() {}))
	assert.Equal(t, 2, s.Len())

	err := s.Add("broken", "not a schedule", func() {})
	assert.ErrorContains(t, err, "broken")
	assert.Equal(t, 2, s.Len())
}

func TestScheduler_StopWaits(t *testing.T) {
	s := NewScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Start()

	select {
	case <-s.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not complete")
	}
}

func TestParseLevel(t *testing.T) {
	lvl, ok := parseLevel("WARN")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, ok = parseLevel("loud")
	assert.False(t, ok)
}
