package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollector_SeparateRegistries(t *testing.T) {
	// Two collectors with the same namespace must not collide on separate registries.
	a := NewCollector("rescue_map", prometheus.NewRegistry())
	b := NewCollector("rescue_map", prometheus.NewRegistry())
	require.NotNil(t, a)
	require.NotNil(t, b)
}

func TestCollector_RecordParseLines(t *testing.T) {
	c := NewCollector("rescue_map", prometheus.NewRegistry())

	c.RecordParseLines("survivor", 3)
	c.RecordParseLines("survivor", 2)
	c.RecordParseLines("skipped", 0)

	assert.Equal(t, 5.0, testutil.ToFloat64(c.ParseLinesTotal.WithLabelValues("survivor")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.ParseLinesTotal.WithLabelValues("skipped")))
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("rescue_map", prometheus.NewRegistry())

	c.RecordParseError("file_not_found")
	c.RecordAggregateError("statistics")
	c.RecordRenderError("floor_distribution")
	c.RecordAPIRequest("/api/map", "GET", "200")
	c.RecordDBError("exec_error")
	c.UpdateDBConnectionPool(1, 2, 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ParseErrorsTotal.WithLabelValues("file_not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.AggregateErrorsTotal.WithLabelValues("statistics")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.RenderErrorsTotal.WithLabelValues("floor_distribution")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/map", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DBErrorsTotal.WithLabelValues("exec_error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.DBConnectionPool.WithLabelValues("total")))
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("rescue_map", prometheus.NewRegistry())

	timer := c.NewTimer(c.ParseDuration)
	time.Sleep(time.Millisecond)
	d := timer.ObserveDuration()

	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(c.ParseDuration))
}
