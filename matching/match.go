// Package matching performs one-to-one assignment between the rows of
// two embedded datasets over their similarity matrix, honoring
// absolute and per-row similarity floors.
package matching

import (
	"errors"
	"sort"

	"recordlink/embedder"
)

// ErrEmptyInput reports a similarity matrix with no rows or columns.
// An all-ineligible matrix is not an error; it yields an empty
// matching.
var ErrEmptyInput = errors.New("matching: empty similarity matrix")

// Options control which cells are eligible for assignment.
type Options struct {
	// AbsCutoff is a global similarity floor; cells below it are
	// ineligible.
	AbsCutoff float64

	// RequireThresholds makes cell (i, j) ineligible unless its score
	// reaches both rows' acceptance thresholds.
	RequireThresholds bool
}

// DefaultOptions enables per-row thresholds with no absolute floor.
func DefaultOptions() Options {
	return Options{RequireThresholds: true}
}

// Matching pairs rows of the left dataset with rows of the right:
// each (Left[i], Right[i]) is an accepted pair, Left is strictly
// ascending and no index repeats on either side.
type Matching struct {
	Left  []int
	Right []int
}

// Len returns the number of matched pairs.
func (m Matching) Len() int { return len(m.Left) }

// filler cost assigned to ineligible cells. Any chain of eligible
// assignments outweighs it, so fillers are only chosen when nothing
// eligible remains; they are dropped from the result afterwards.
const ineligibleCost = 1e6

// Match computes a one-to-one matching over the eligible cells of a
// similarity matrix: among the assignments that pair the most eligible
// cells, it returns the one with the highest total similarity, so a
// single high-scoring pair can lose to two lower-scoring ones. Cells
// involving an empty (zero-norm) record are never eligible. The assignment itself is
// deterministic: equal-weight alternatives resolve to the smaller left
// index, then the smaller right index.
func Match(sim *embedder.SimilarityMatrix, opts Options) (Matching, error) {
	n1, n2 := sim.Rows, sim.Cols
	if n1 == 0 || n2 == 0 {
		return Matching{}, ErrEmptyInput
	}

	eligible := func(i, j int) bool {
		if sim.RowNorms[i] == 0 || sim.ColNorms[j] == 0 {
			return false
		}
		s := sim.At(i, j)
		if s < opts.AbsCutoff {
			return false
		}
		if opts.RequireThresholds {
			floor := sim.RowThresholds[i]
			if t := sim.ColThresholds[j]; t > floor {
				floor = t
			}
			if s < floor {
				return false
			}
		}
		return true
	}

	// The solver wants rows <= cols; transpose when the left side is
	// the larger one.
	transposed := n1 > n2
	rows, cols := n1, n2
	if transposed {
		rows, cols = n2, n1
	}
	cost := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		cost[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			ri, rj := i, j
			if transposed {
				ri, rj = j, i
			}
			if eligible(ri, rj) {
				cost[i][j] = -sim.At(ri, rj)
			} else {
				cost[i][j] = ineligibleCost
			}
		}
	}

	assigned := assign(cost)

	var out Matching
	for i, j := range assigned {
		left, right := i, j
		if transposed {
			left, right = j, i
		}
		if !eligible(left, right) {
			continue
		}
		out.Left = append(out.Left, left)
		out.Right = append(out.Right, right)
	}
	sort.Sort(byLeft(out))
	return out, nil
}

type byLeft Matching

func (m byLeft) Len() int           { return len(m.Left) }
func (m byLeft) Less(i, j int) bool { return m.Left[i] < m.Left[j] }
func (m byLeft) Swap(i, j int) {
	m.Left[i], m.Left[j] = m.Left[j], m.Left[i]
	m.Right[i], m.Right[j] = m.Right[j], m.Right[i]
}
