package dispatch

import "math"

// solveAssignment finds a one-to-one assignment of rows to columns that
// minimizes total cost. The result maps each row to its column, or -1 when
// the row is left unassigned (only possible when rows outnumber columns).
func solveAssignment(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}
	m := len(cost[0])
	if m == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = -1
		}
		return out
	}

	if n <= m {
		return hungarian(cost)
	}

	// More rows than columns: solve the transpose and invert the mapping.
	t := make([][]float64, m)
	for j := range t {
		t[j] = make([]float64, n)
		for i := 0; i < n; i++ {
			t[j][i] = cost[i][j]
		}
	}
	colToRow := hungarian(t)
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	for j, i := range colToRow {
		out[i] = j
	}
	return out
}

// hungarian solves a rectangular n×m problem with n <= m using the
// shortest augmenting path method with potentials, O(n²m).
func hungarian(cost [][]float64) []int {
	n := len(cost)
	m := len(cost[0])

	// 1-indexed; column 0 is a virtual column used as the augmenting root.
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1) // p[j] = row matched to column j
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		used := make([]bool, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
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

	rowToCol := make([]int, n)
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			rowToCol[p[j]-1] = j - 1
		}
	}
	return rowToCol
}
