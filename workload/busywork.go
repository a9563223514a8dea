package workload

import "math/rand"

// The busy-work functions only exist to burn CPU for a predictable stretch;
// their numeric results are discarded. Sizes are chosen so one call takes a
// few milliseconds, keeping the phase deadline check responsive.

func lightWork() {
	matMul(96)
}

func mediumWork() {
	c := matMul(96)
	mulInPlace(c, randMatrix(96))
}

func heavyWork() {
	c := matMul(128)
	mulInPlace(c, randMatrix(128))
	mulInPlace(c, randMatrix(128))
}

func randMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		for j := range m[i] {
			m[i][j] = rand.Float64()
		}
	}
	return m
}

func matMul(n int) [][]float64 {
	a, b := randMatrix(n), randMatrix(n)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for k := 0; k < n; k++ {
			aik := a[i][k]
			for j := 0; j < n; j++ {
				out[i][j] += aik * b[k][j]
			}
		}
	}
	return out
}

func mulInPlace(a, b [][]float64) {
	n := len(a)
	tmp := make([]float64, n)
	for i := 0; i < n; i++ {
		copy(tmp, a[i])
		for j := 0; j < n; j++ {
			var sum float64
			for k := 0; k < n; k++ {
				sum += tmp[k] * b[k][j]
			}
			a[i][j] = sum
		}
	}
}
