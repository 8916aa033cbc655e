package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"scount"
)

func TestReporterObserve(t *testing.T) {
	r := NewReporter("plain")
	c := scount.NewPlainCounter(0)

	for i := 0; i < 10; i++ {
		c.FetchAdd(1, 0)
	}

	r.Observe(c, 10, 100*time.Millisecond)

	if got := testutil.ToFloat64(r.rootAccess); got != 10 {
		t.Errorf("rootAccess: got %v, want 10", got)
	}
	if got := testutil.ToFloat64(r.maxAccess); got != 10 {
		t.Errorf("maxAccess: got %v, want 10", got)
	}
	if got := testutil.ToFloat64(r.accessRatio); got != 1 {
		t.Errorf("accessRatio: got %v, want 1", got)
	}
}
