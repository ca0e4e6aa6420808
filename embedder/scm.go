package embedder

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// TokenMatrix is the token-similarity matrix S of the Soft Cosine
// Measure: symmetric, one row and column per filter position. A nil
// *TokenMatrix stands for the identity, under which the measure
// reduces to ordinary cosine similarity over binary vectors.
type TokenMatrix struct {
	sym *mat.SymDense
}

// NewTokenMatrix wraps a symmetric matrix.
func NewTokenMatrix(sym *mat.SymDense) *TokenMatrix {
	return &TokenMatrix{sym: sym}
}

// TokenMatrixFromRows builds a TokenMatrix from dense rows, rejecting
// non-square or non-symmetric input.
func TokenMatrixFromRows(rows [][]float64) (*TokenMatrix, error) {
	n := len(rows)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("%w: similarity matrix row %d has %d columns, want %d", ErrInvalidConfig, i, len(row), n)
		}
	}
	const tol = 1e-9
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if math.Abs(rows[i][j]-rows[j][i]) > tol {
				return nil, fmt.Errorf("%w: similarity matrix is not symmetric at (%d, %d)", ErrInvalidConfig, i, j)
			}
			sym.SetSym(i, j, rows[i][j])
		}
	}
	return &TokenMatrix{sym: sym}, nil
}

// Dim returns the matrix dimension; zero for the identity stand-in.
func (t *TokenMatrix) Dim() int {
	if t == nil || t.sym == nil {
		return 0
	}
	return t.sym.SymmetricDim()
}

// At returns S[i, j].
func (t *TokenMatrix) At(i, j int) float64 {
	if t == nil || t.sym == nil {
		if i == j {
			return 1
		}
		return 0
	}
	return t.sym.At(i, j)
}

// Inner computes uᵀSv for the binary vectors described by two sorted
// index sets. The identity case is the intersection size.
func (t *TokenMatrix) Inner(a, b []uint32) float64 {
	if t == nil || t.sym == nil {
		return float64(intersectionSize(a, b))
	}
	var sum float64
	for _, i := range a {
		for _, j := range b {
			sum += t.sym.At(int(i), int(j))
		}
	}
	return sum
}

// Norm computes the SCM self-norm √(vᵀSv) of a sorted index set.
func (t *TokenMatrix) Norm(indices []uint32) float64 {
	if len(indices) == 0 {
		return 0
	}
	if t == nil || t.sym == nil {
		return math.Sqrt(float64(len(indices)))
	}
	quad := t.Inner(indices, indices)
	if quad <= 0 {
		return 0
	}
	return math.Sqrt(quad)
}

// intersectionSize counts common elements of two sorted slices.
func intersectionSize(a, b []uint32) int {
	var n, i, j int
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

// Trainer fits a token-similarity matrix from pre-matched embedded
// data. It accumulates joint index-frequency matrices for matched and
// shuffled (unmatched) row pairings; the fitted matrix is the
// element-wise log-ratio of the two, projected to the nearest
// positive-semi-definite matrix so that self-norms stay real.
type Trainer struct {
	size      int
	matched   *mat.Dense
	unmatched *mat.Dense
}

// NewTrainer returns a trainer for filters of the given width, with
// both frequency matrices initialised to the identity.
func NewTrainer(size int) *Trainer {
	return &Trainer{
		size:      size,
		matched:   identityDense(size),
		unmatched: identityDense(size),
	}
}

func identityDense(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// Update folds one pair of matched datasets into the frequency
// matrices and returns the refitted token matrix. The two index-set
// slices must hold known matches in the same order. Updates are
// cumulative, scaled by learningRate in (0, 1]; eps smooths the log
// ratio. The rng drives the shuffled non-match pairing; seed it
// explicitly for reproducible fits.
func (tr *Trainer) Update(x, y [][]uint32, rng *rand.Rand, learningRate, eps float64) (*TokenMatrix, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: matched datasets differ in length (%d vs %d)", ErrInvalidConfig, len(x), len(y))
	}
	if learningRate <= 0 || learningRate > 1 {
		return nil, fmt.Errorf("%w: learning rate %v outside (0, 1]", ErrInvalidConfig, learningRate)
	}
	if eps < 0 {
		return nil, fmt.Errorf("%w: negative eps %v", ErrInvalidConfig, eps)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: trainer requires a seeded rng", ErrInvalidConfig)
	}

	shuffled := make([][]uint32, len(y))
	for i, j := range rng.Perm(len(y)) {
		shuffled[i] = y[j]
	}

	addScaled(tr.matched, tr.jointFreq(x, y), learningRate)
	addScaled(tr.unmatched, tr.jointFreq(x, shuffled), learningRate)

	logRatio := mat.NewSymDense(tr.size, nil)
	for i := 0; i < tr.size; i++ {
		for j := i; j < tr.size; j++ {
			v := math.Log(tr.matched.At(i, j)+eps) - math.Log(tr.unmatched.At(i, j)+eps)
			logRatio.SetSym(i, j, v)
		}
	}
	return nearestPSD(logRatio, 1e-6)
}

// jointFreq counts index co-occurrences across paired rows and
// symmetrizes the result.
func (tr *Trainer) jointFreq(x, y [][]uint32) *mat.Dense {
	freq := mat.NewDense(tr.size, tr.size, nil)
	for n := range x {
		for _, i := range x[n] {
			for _, j := range y[n] {
				freq.Set(int(i), int(j), freq.At(int(i), int(j))+1)
			}
		}
	}
	sym := mat.NewDense(tr.size, tr.size, nil)
	sym.Add(freq, freq.T())
	sym.Scale(0.5, sym)
	return sym
}

func addScaled(dst, src *mat.Dense, scale float64) {
	var scaled mat.Dense
	scaled.Scale(scale, src)
	dst.Add(dst, &scaled)
}

// nearestPSD projects a symmetric matrix onto the positive
// semi-definite cone by clamping negative eigenvalues to eps.
func nearestPSD(sym *mat.SymDense, eps float64) (*TokenMatrix, error) {
	var es mat.EigenSym
	if !es.Factorize(sym, true) {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrInvalidConfig)
	}
	vals := es.Values(nil)
	for i, v := range vals {
		if v < 0 {
			vals[i] = eps
		}
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	n := len(vals)
	var scaled, projected mat.Dense
	scaled.Mul(&vecs, mat.NewDiagDense(n, vals))
	projected.Mul(&scaled, vecs.T())

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (projected.At(i, j)+projected.At(j, i))/2)
		}
	}
	return &TokenMatrix{sym: out}, nil
}
