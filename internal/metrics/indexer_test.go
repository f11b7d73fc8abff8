package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveIndexOp(t *testing.T) {
	before := testutil.ToFloat64(IndexOperationsTotal.WithLabelValues(OpIndex, StatusOK))
	ObserveIndexOp(OpIndex, StatusOK)
	after := testutil.ToFloat64(IndexOperationsTotal.WithLabelValues(OpIndex, StatusOK))
	if after-before != 1 {
		t.Errorf("expected counter to grow by 1, got %f", after-before)
	}
}

func TestObserveReindex(t *testing.T) {
	ObserveReindex("metrics_test", 4500, 2*time.Second)

	docs := testutil.ToFloat64(ReindexDocumentsTotal.WithLabelValues("metrics_test"))
	if docs != 4500 {
		t.Errorf("documents = %f, want 4500", docs)
	}
	if testutil.CollectAndCount(ReindexDuration) == 0 {
		t.Error("expected reindex duration observations")
	}
}
