package matching

import "math"

// assign solves the rectangular minimum-cost assignment problem for an
// n×m cost matrix with n <= m, returning each row's assigned column.
// This is the shortest-augmenting-path formulation of Kuhn–Munkres
// with row and column potentials, O(n²m). Rows are introduced in index
// order and column scans break ties on the smaller index, so the
// solution is deterministic.
func assign(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])

	u := make([]float64, n+1)
	v := make([]float64, m+1)
	// p[j] is the row matched to column j, 1-based; p[0] holds the row
	// currently being placed.
	p := make([]int, m+1)
	way := make([]int, m+1)

	minv := make([]float64, m+1)
	used := make([]bool, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		for j := range minv {
			minv[j] = math.Inf(1)
			used[j] = false
		}
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] > 0 {
			result[p[j]-1] = j - 1
		}
	}
	return result
}
