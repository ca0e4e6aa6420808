package matching

import (
	"testing"
)

func TestPrivateIndex(t *testing.T) {
	const n1, n2, size = 4, 3, 100
	m := Matching{Left: []int{0, 2}, Right: []int{1, 0}}

	left, right, err := PrivateIndex(n1, n2, m, size)
	if err != nil {
		t.Fatalf("PrivateIndex: %v", err)
	}
	if len(left) != n1 || len(right) != n2 {
		t.Fatalf("got %d/%d keys, want %d/%d", len(left), len(right), n1, n2)
	}

	// Matched pairs share a key; everything else is distinct.
	if left[0] != right[1] {
		t.Errorf("matched pair (0, 1) has keys %d and %d", left[0], right[1])
	}
	if left[2] != right[0] {
		t.Errorf("matched pair (2, 0) has keys %d and %d", left[2], right[0])
	}
	seen := map[int]int{}
	for _, k := range append(append([]int{}, left...), right...) {
		if k < size || k >= 3*size {
			t.Errorf("key %d outside [%d, %d)", k, size, 3*size)
		}
		seen[k]++
	}
	for k, count := range seen {
		if count > 2 {
			t.Errorf("key %d used %d times", k, count)
		}
	}
	shared := 0
	for _, count := range seen {
		if count == 2 {
			shared++
		}
	}
	if shared != m.Len() {
		t.Errorf("%d shared keys, want %d", shared, m.Len())
	}
}

func TestPrivateIndexRejectsBadInput(t *testing.T) {
	if _, _, err := PrivateIndex(4, 3, Matching{}, 2); err == nil {
		t.Error("undersized range accepted")
	}
	dup := Matching{Left: []int{0, 0}, Right: []int{0, 1}}
	if _, _, err := PrivateIndex(4, 3, dup, 100); err == nil {
		t.Error("repeated left index accepted")
	}
	oob := Matching{Left: []int{9}, Right: []int{0}}
	if _, _, err := PrivateIndex(4, 3, oob, 100); err == nil {
		t.Error("out-of-range index accepted")
	}
}

func TestEvaluate(t *testing.T) {
	leftIDs := []string{"a", "b", "c", "d"}
	rightIDs := []string{"c", "a", "x"}
	m := Matching{Left: []int{0, 2}, Right: []int{1, 2}} // (a, a) correct, (c, x) wrong

	rep, err := Evaluate(leftIDs, rightIDs, m)
	if err != nil {
		t.Fatal(err)
	}
	if rep.TruePositives != 1 || rep.FalsePositives != 1 {
		t.Errorf("tp/fp = %d/%d, want 1/1", rep.TruePositives, rep.FalsePositives)
	}
	if rep.Precision != 0.5 {
		t.Errorf("precision = %v, want 0.5", rep.Precision)
	}
	// Two IDs (a, c) exist on both sides; one was recovered.
	if rep.Recall != 0.5 {
		t.Errorf("recall = %v, want 0.5", rep.Recall)
	}
}

func TestEvaluateEmptyMatching(t *testing.T) {
	rep, err := Evaluate([]string{"a"}, []string{"a"}, Matching{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Precision != 0 || rep.Recall != 0 || rep.TruePositives != 0 {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestEvaluateRejectsOutOfRange(t *testing.T) {
	m := Matching{Left: []int{5}, Right: []int{0}}
	if _, err := Evaluate([]string{"a"}, []string{"a"}, m); err == nil {
		t.Error("out-of-range pair accepted")
	}
}
