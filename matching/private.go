package matching

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PrivateIndex assigns anonymous join keys to every row of both
// datasets: matched pairs share one key, unmatched rows get keys drawn
// from the same fixed range, so the two outputs are indistinguishable
// and leak nothing about which rows found a counterpart. It requires a
// strict one-to-one matching.
//
// Keys are sampled without replacement from [sizeAssumed, 3·sizeAssumed)
// using a cryptographic draw; sizeAssumed must be at least the size of
// either dataset.
func PrivateIndex(n1, n2 int, m Matching, sizeAssumed int) (left, right []int, err error) {
	if sizeAssumed < n1 || sizeAssumed < n2 {
		return nil, nil, fmt.Errorf("assumed size %d smaller than a dataset (%d, %d)", sizeAssumed, n1, n2)
	}
	if len(m.Left) != len(m.Right) {
		return nil, nil, fmt.Errorf("matching sides differ in length (%d vs %d)", len(m.Left), len(m.Right))
	}
	seenL := make(map[int]struct{}, len(m.Left))
	seenR := make(map[int]struct{}, len(m.Right))
	for k := range m.Left {
		i, j := m.Left[k], m.Right[k]
		if i < 0 || i >= n1 || j < 0 || j >= n2 {
			return nil, nil, fmt.Errorf("matched pair (%d, %d) out of range", i, j)
		}
		if _, ok := seenL[i]; ok {
			return nil, nil, fmt.Errorf("left index %d matched more than once", i)
		}
		if _, ok := seenR[j]; ok {
			return nil, nil, fmt.Errorf("right index %d matched more than once", j)
		}
		seenL[i] = struct{}{}
		seenR[j] = struct{}{}
	}

	inner := m.Len()
	outer := n1 + n2 - inner
	pool, err := samplePool(2*sizeAssumed, outer)
	if err != nil {
		return nil, nil, err
	}

	left = make([]int, n1)
	right = make([]int, n2)
	for i := range left {
		left[i] = -1
	}
	for j := range right {
		right[j] = -1
	}
	for k := range m.Left {
		left[m.Left[k]] = sizeAssumed + pool[k]
		right[m.Right[k]] = sizeAssumed + pool[k]
	}
	next := inner
	for i := range left {
		if left[i] < 0 {
			left[i] = sizeAssumed + pool[next]
			next++
		}
	}
	for j := range right {
		if right[j] < 0 {
			right[j] = sizeAssumed + pool[next]
			next++
		}
	}
	return left, right, nil
}

// samplePool draws k distinct values from [0, n) with a Fisher–Yates
// shuffle whose every swap index comes from crypto/rand.
func samplePool(n, k int) ([]int, error) {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := n - 1; i > 0; i-- {
		r, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return nil, fmt.Errorf("draw private index: %w", err)
		}
		j := int(r.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}

// Report summarizes match quality against ground-truth record IDs.
type Report struct {
	TruePositives  int
	FalsePositives int
	Precision      float64
	Recall         float64
}

// Evaluate counts true and false positives for a matching given the
// ground-truth ID of every row on each side. Recall is measured
// against the number of IDs present in both datasets.
func Evaluate(leftIDs, rightIDs []string, m Matching) (Report, error) {
	var rep Report
	for k := range m.Left {
		i, j := m.Left[k], m.Right[k]
		if i < 0 || i >= len(leftIDs) || j < 0 || j >= len(rightIDs) {
			return Report{}, fmt.Errorf("matched pair (%d, %d) out of range", i, j)
		}
		if leftIDs[i] == rightIDs[j] {
			rep.TruePositives++
		} else {
			rep.FalsePositives++
		}
	}

	counts := make(map[string]int, len(leftIDs))
	for _, id := range leftIDs {
		counts[id]++
	}
	possible := 0
	for _, id := range rightIDs {
		if counts[id] > 0 {
			counts[id]--
			possible++
		}
	}

	if matched := m.Len(); matched > 0 {
		rep.Precision = float64(rep.TruePositives) / float64(matched)
	}
	if possible > 0 {
		rep.Recall = float64(rep.TruePositives) / float64(possible)
	}
	return rep, nil
}
