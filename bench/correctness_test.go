package bench

import "testing"

func TestRunCorrectnessPlain(t *testing.T) {
	res, err := RunCorrectness("plain", 4, 2000, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Errorf("correctness failed: %v", res.Failures)
	}
	if res.TrackedTotal != res.CounterTotal {
		t.Errorf("tracked %d != counter %d", res.TrackedTotal, res.CounterTotal)
	}
}

func TestRunCorrectnessStump(t *testing.T) {
	res, err := RunCorrectness("stump", 8, 2000, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Errorf("correctness failed: %v", res.Failures)
	}
}

func TestRunCorrectnessFunnel(t *testing.T) {
	res, err := RunCorrectness("funnel", 8, 2000, 99)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Passed {
		t.Errorf("correctness failed: %v", res.Failures)
	}
}

func TestFindOverlapDetectsDuplicate(t *testing.T) {
	claims := [][]claimedRange{
		{{0, 1}, {1, 2}},
		{{1, 2}, {2, 3}}, // [1,2) repeated
	}
	if got := findOverlap(claims); got == "" {
		t.Error("expected an overlap to be reported")
	}
}

func TestFindOverlapAcceptsDisjointRanges(t *testing.T) {
	claims := [][]claimedRange{
		{{0, 1}, {2, 3}},
		{{1, 2}, {3, 4}},
	}
	if got := findOverlap(claims); got != "" {
		t.Errorf("unexpected overlap: %s", got)
	}
}

func TestNewCounterRejectsUnknownVariant(t *testing.T) {
	if _, err := newCounter("bogus", 4, DefaultConfig()); err == nil {
		t.Error("expected an error for an unknown variant")
	}
}
