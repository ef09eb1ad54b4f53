package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCycleObservations(t *testing.T) {
	m := New()

	m.ObserveCycle("success", 2*time.Second)
	m.ObserveCycle("success", time.Second)
	m.ObserveCycle("upstream_failure", time.Second)
	m.DroppedTick()
	m.ObserveCommit(12, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cyclesTotal.WithLabelValues("upstream_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedTicks))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.eventsAppended))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastSuccessUnix))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveCycle("success", time.Second)
		m.ObserveCommit(1, time.Now())
		m.DroppedTick()
		m.ObserveUpstreamAttempt("success")
		m.EventsPublished(1)
		m.EventsIndexed(1)
	})
}
