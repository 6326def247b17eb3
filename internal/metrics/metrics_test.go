package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg, "test")

	p.ClaimOutcome("claimed")
	p.ClaimOutcome("already-claimed")
	p.ClaimOutcome("already-claimed")
	p.Transition("accept")
	p.ActionsFallback()
	p.EligibilityCheck("")
	p.EligibilityCheck("coverage-area-mismatch")
	p.NotificationFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(p.claims.WithLabelValues("claimed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.claims.WithLabelValues("already-claimed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.transitions.WithLabelValues("accept")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.fallbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.eligibility.WithLabelValues("eligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.notifyFailure))

	count, err := testutil.GatherAndCount(reg)
	assert.NoError(t, err)
	assert.Equal(t, 7, count)
}
