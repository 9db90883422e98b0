package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNodeTrackerCleansVanishedNodes(t *testing.T) {
	tracker := NewNodeTracker(10 * time.Millisecond)
	NodeAvailabilityGauge.WithLabelValues("http://gone:9200").Set(1)
	NodeAvailabilityGauge.WithLabelValues("http://alive:9200").Set(1)
	tracker.Seen("http://gone:9200", "http://alive:9200")
	assert.Equal(t, 2, tracker.Known())

	time.Sleep(20 * time.Millisecond)
	tracker.Seen("http://alive:9200")
	tracker.CleanMetrics()

	assert.Equal(t, 1, tracker.Known())
	// already deleted by the eviction
	assert.False(t, NodeAvailabilityGauge.DeleteLabelValues("http://gone:9200"))
	assert.True(t, NodeAvailabilityGauge.DeleteLabelValues("http://alive:9200"))
}

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "error", Result(errors.New("boom")))
}
