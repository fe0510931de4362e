// Package cipher implements the HASCILL reference block cipher: modular
// arithmetic primitives, deterministic key derivation, and the four-phase
// per-block transform. It is the authoritative oracle the game server
// validates every player submission against.
package cipher

import "github.com/pkg/errors"

// ErrNoInverse is returned when a modular inverse does not exist because
// gcd(a, m) != 1.
var ErrNoInverse = errors.New("modarith: no modular inverse exists")

// ErrSingular is returned when a matrix has no inverse mod m (det == 0).
var ErrSingular = errors.New("modarith: matrix is singular mod m")

// mod returns a reduced into [0, m).
func mod(a, m int64) int64 {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// InvInt returns the modular inverse of a mod m via the extended Euclidean
// algorithm. Fails with ErrNoInverse when gcd(a, m) != 1.
func InvInt(a, m int64) (int64, error) {
	a = mod(a, m)
	g, x, _ := extGCD(a, m)
	if g != 1 {
		return 0, errors.Wrapf(ErrNoInverse, "gcd(%d, %d) = %d", a, m, g)
	}
	return mod(x, m), nil
}

// extGCD returns (g, x, y) such that a*x + b*y = g = gcd(a, b).
func extGCD(a, b int64) (g, x, y int64) {
	if b == 0 {
		return a, 1, 0
	}
	g, x1, y1 := extGCD(b, a%b)
	return g, y1, x1 - (a/b)*y1
}

// IsPrime reports whether p is prime using trial division. p is small in
// this cipher's parameter space (a few thousand at most), so trial
// division is simple and fast enough.
func IsPrime(p int64) bool {
	if p < 2 {
		return false
	}
	if p < 4 {
		return true
	}
	if p%2 == 0 {
		return false
	}
	for d := int64(3); d*d <= p; d += 2 {
		if p%d == 0 {
			return false
		}
	}
	return true
}

// NextPrimeWith returns the smallest prime p >= max(2, start) for which
// pred(p) holds.
func NextPrimeWith(start int64, pred func(p int64) bool) int64 {
	p := start
	if p < 2 {
		p = 2
	}
	for {
		if IsPrime(p) && pred(p) {
			return p
		}
		p++
	}
}

// Matrix is a square matrix stored row-major.
type Matrix [][]int64

// NewMatrix allocates an n x n matrix of zeros.
func NewMatrix(n int) Matrix {
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]int64, n)
	}
	return m
}

func (m Matrix) n() int { return len(m) }

// minor returns the (n-1)x(n-1) submatrix with row r and column c removed.
func (m Matrix) minor(r, c int) Matrix {
	n := m.n()
	out := NewMatrix(n - 1)
	oi := 0
	for i := 0; i < n; i++ {
		if i == r {
			continue
		}
		oj := 0
		for j := 0; j < n; j++ {
			if j == c {
				continue
			}
			out[oi][oj] = m[i][j]
			oj++
		}
		oi++
	}
	return out
}

// DetMod computes det(M) mod m via cofactor expansion along the first row.
func DetMod(m Matrix, mod_ int64) int64 {
	n := m.n()
	if n == 1 {
		return mod(m[0][0], mod_)
	}
	if n == 2 {
		return mod(m[0][0]*m[1][1]-m[0][1]*m[1][0], mod_)
	}
	var det int64
	sign := int64(1)
	for j := 0; j < n; j++ {
		cof := sign * m[0][j] * DetMod(m.minor(0, j), mod_)
		det = mod(det+cof, mod_)
		sign = -sign
	}
	return det
}

// AdjugateMod computes the classical adjugate (transpose of the cofactor
// matrix) of M mod m.
func AdjugateMod(m Matrix, mod_ int64) Matrix {
	n := m.n()
	adj := NewMatrix(n)
	if n == 1 {
		adj[0][0] = 1
		return adj
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			sign := int64(1)
			if (i+j)%2 != 0 {
				sign = -1
			}
			cof := sign * DetMod(m.minor(i, j), mod_)
			// Transpose: adjugate[j][i] = cofactor[i][j]
			adj[j][i] = mod(cof, mod_)
		}
	}
	return adj
}

// MatInverseMod returns the inverse of M mod m. Fails with ErrSingular
// when det(M) == 0 mod m.
func MatInverseMod(m Matrix, mod_ int64) (Matrix, error) {
	det := DetMod(m, mod_)
	if det == 0 {
		return nil, ErrSingular
	}
	detInv, err := InvInt(det, mod_)
	if err != nil {
		return nil, errors.Wrap(ErrSingular, "determinant not invertible")
	}
	adj := AdjugateMod(m, mod_)
	n := m.n()
	inv := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv[i][j] = mod(adj[i][j]*detInv, mod_)
		}
	}
	return inv, nil
}

// MatVecMul computes M*v mod m, reducing after each row's summation.
func MatVecMul(m Matrix, v []int64, mod_ int64) []int64 {
	n := m.n()
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		var sum int64
		for j := 0; j < n; j++ {
			sum += m[i][j] * v[j]
		}
		out[i] = mod(sum, mod_)
	}
	return out
}

// Sbox is the cipher's nonlinear substitution, x^3 mod m. Bijective on
// Z_m whenever gcd(3, m-1) == 1.
func Sbox(x, m int64) int64 {
	x = mod(x, m)
	return mod(x*x%m*x, m)
}

// SboxInv inverts Sbox via the cube-root exponent e = inv(3, m-1).
func SboxInv(y, m int64) (int64, error) {
	e, err := InvInt(3, m-1)
	if err != nil {
		return 0, errors.Wrap(err, "sbox has no inverse for this modulus")
	}
	return powMod(y, e, m), nil
}

func powMod(base, exp, m int64) int64 {
	base = mod(base, m)
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = mod(result*base, m)
		}
		base = mod(base*base, m)
		exp >>= 1
	}
	return result
}
