package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(runsTotal.WithLabelValues("b", "success"))
	blanksBefore := testutil.ToFloat64(blankPages)

	ObserveRun("b", "success", 120*time.Millisecond, 2, 3)

	if got := testutil.ToFloat64(runsTotal.WithLabelValues("b", "success")) - before; got != 1 {
		t.Errorf("runs delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(blankPages) - blanksBefore; got != 3 {
		t.Errorf("blank pages delta = %v, want 3", got)
	}
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth("stream", 7)
	if got := testutil.ToFloat64(queueDepth.WithLabelValues("stream")); got != 7 {
		t.Errorf("queue depth = %v, want 7", got)
	}
}
