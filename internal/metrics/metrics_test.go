package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("test_endpoint", "2xx")
	})

	before := testutil.ToFloat64(reservationOps.WithLabelValues("create", "ok"))
	IncReservationOp("create", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationOps.WithLabelValues("create", "ok")))

	IncConflict("PC 094")
	assert.GreaterOrEqual(t, testutil.ToFloat64(conflicts.WithLabelValues("PC 094")), 1.0)

	sweptBefore := testutil.ToFloat64(sweepDeleted)
	AddSweepDeleted(3)
	AddSweepDeleted(0)
	assert.Equal(t, sweptBefore+3, testutil.ToFloat64(sweepDeleted))
}
