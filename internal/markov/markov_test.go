package markov

import (
	"testing"
)

func TestObserveAndPredictRanking(t *testing.T) {
	m := New()
	// 1→2 twice, 1→3 once.
	m.Observe([]int{1, 2})
	m.Observe([]int{1, 2})
	m.Observe([]int{1, 3})

	got := m.Predict(1, TopK)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
	if got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected [2 3], got %v", got)
	}
}

func TestPredictTieBreaksOnLowerID(t *testing.T) {
	m := New()
	m.Observe([]int{1, 5})
	m.Observe([]int{1, 3})

	got := m.Predict(1, TopK)
	if len(got) != 2 || got[0] != 3 || got[1] != 5 {
		t.Fatalf("equal weights should rank ascending id, got %v", got)
	}
}

func TestPredictBoundsAndUnknown(t *testing.T) {
	m := New()
	for to := 1; to <= 5; to++ {
		m.Boost(9, to, float64(to))
	}

	got := m.Predict(9, 3)
	if len(got) != 3 {
		t.Fatalf("expected top-3, got %v", got)
	}
	if got[0] != 5 || got[1] != 4 || got[2] != 3 {
		t.Fatalf("expected [5 4 3], got %v", got)
	}

	if m.Predict(42, 3) != nil {
		t.Fatal("unseen source id should predict nothing")
	}
}

func TestObserveDoublingIsIdempotentOnRanking(t *testing.T) {
	m := New()
	seq := []int{1, 2, 3, 2, 4}
	m.Observe(seq)
	before := m.Predict(2, TopK)

	m.Observe(seq)
	after := m.Predict(2, TopK)

	if len(before) != len(after) {
		t.Fatalf("ranking length changed: %v vs %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("doubling all counts changed ranking: %v vs %v", before, after)
		}
	}
}

func TestBoostCreatesAndCountsEdges(t *testing.T) {
	m := New()
	m.Boost(1, 2, 0.5)
	m.Boost(1, 2, 0.5)
	m.Boost(2, 3, 1)

	if w := m.Weight(1, 2); w != 1.0 {
		t.Fatalf("expected weight 1.0, got %f", w)
	}
	if m.Mappings() != 2 {
		t.Fatalf("expected 2 edges, got %d", m.Mappings())
	}
}

func TestReset(t *testing.T) {
	m := New()
	m.Observe([]int{1, 2, 3})
	m.Reset()

	if m.Mappings() != 0 {
		t.Fatalf("expected 0 edges after reset, got %d", m.Mappings())
	}
	if m.Predict(1, TopK) != nil {
		t.Fatal("expected no predictions after reset")
	}
}
