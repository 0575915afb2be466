package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusRecorder(t *testing.T) {
	r := PrometheusRecorder{}

	before := testutil.ToFloat64(PlacementSlotChanges.WithLabelValues("commit", "ok"))
	r.SlotChange("commit", "ok")
	r.SlotChange("commit", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(PlacementSlotChanges.WithLabelValues("commit", "ok")))

	beforeOp := testutil.ToFloat64(PlacementOperations.WithLabelValues("accept_placement", "CAPACITY_EXCEEDED"))
	r.Operation("accept_placement", "CAPACITY_EXCEEDED")
	assert.Equal(t, beforeOp+1, testutil.ToFloat64(PlacementOperations.WithLabelValues("accept_placement", "CAPACITY_EXCEEDED")))

	beforeComp := testutil.ToFloat64(PlacementCompensations.WithLabelValues("decide_withdrawal", "reverted"))
	r.Compensation("decide_withdrawal", "reverted")
	assert.Equal(t, beforeComp+1, testutil.ToFloat64(PlacementCompensations.WithLabelValues("decide_withdrawal", "reverted")))
}
