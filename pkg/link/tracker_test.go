package link

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type recordingMetric struct {
	deleted []prometheus.Labels
}

func (m *recordingMetric) DeletePartialMatch(labels prometheus.Labels) int {
	m.deleted = append(m.deleted, labels)
	return 1
}

func TestPeerTrackerPurge(t *testing.T) {
	m := &recordingMetric{}
	tracker := NewPeerTracker([]Metric{m}, time.Minute)

	tracker.Seen("aa:bb")
	require.Contains(t, tracker.Peers(), "aa:bb")

	require.Equal(t, 0, tracker.Purge(time.Now()))
	require.Empty(t, m.deleted)

	require.Equal(t, 1, tracker.Purge(time.Now().Add(2*time.Minute)))
	require.Equal(t, []prometheus.Labels{{"peer": "aa:bb"}}, m.deleted)
	require.Empty(t, tracker.Peers())
}

func TestPeerTrackerRun(t *testing.T) {
	tracker := NewPeerTracker(nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go tracker.Run(ctx, 5*time.Millisecond)

	tracker.Seen("peer")
	require.Eventually(t, func() bool {
		return len(tracker.Peers()) == 0
	}, time.Second, 5*time.Millisecond)
}
