package cipher

import "github.com/pkg/errors"

// ErrDerivationExhausted is returned when no attempt in [0, maxDeriveAttempts)
// produces an invertible matrix.
var ErrDerivationExhausted = errors.New("cipher: parameter derivation exhausted all attempts")

const maxDeriveAttempts = 16

// Params holds the field parameters derived deterministically from a
// password. Regenerating Params from the same password and n always
// yields bit-identical values — the expansion function below has no
// source of entropy beyond its inputs.
type Params struct {
	N      int
	M      int64
	Matrix Matrix
	B      []int64
	IV     []int64
	KeySum int64
}

// DerivePrime computes the smallest prime m >= 257 satisfying
// (m-1) mod 3 != 0, seeded from the sum of password bytes.
func DerivePrime(password []byte) int64 {
	var sum int64
	for _, b := range password {
		sum += int64(b)
	}
	seed := 257 + mod(sum, 1000)
	return NextPrimeWith(seed, func(p int64) bool {
		return p >= 257 && (p-1)%3 != 0
	})
}

// expandBytes deterministically stretches seed into exactly need bytes.
// Byte i is seed[i mod len(seed)] XORed with a simple non-cryptographic
// mixing function of the index. This is explicitly not a CSPRNG — it only
// needs to be a pure, reproducible function of its inputs so that every
// client derives identical parameters from the same password.
func expandBytes(seed []byte, need int) []byte {
	out := make([]byte, need)
	for i := 0; i < need; i++ {
		sb := seed[i%len(seed)]
		mix := ((int(i)*31) ^ (int(sb) << 3)) & 0xFF
		out[i] = sb ^ byte(mix)
	}
	return out
}

// DeriveParams derives (M, b, IV) for block size n from password bytes and
// modulus m, trying successive attempt counters until M is invertible mod
// m. The attempt counter is part of the expansion's input, not a random
// seed, so every implementation deriving from the same (password, n, m)
// converges on the same attempt and the same parameters.
func DeriveParams(password []byte, n int, m int64) (Matrix, []int64, []int64, error) {
	need := n*n + 2*n
	for attempt := 0; attempt < maxDeriveAttempts; attempt++ {
		input := make([]byte, 0, len(password)+1)
		input = append(input, password...)
		input = append(input, byte(attempt))
		bytes := expandBytes(input, need)

		idx := 0
		mat := NewMatrix(n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				mat[i][j] = mod(int64(bytes[idx]), m)
				idx++
			}
		}
		b := make([]int64, n)
		for i := 0; i < n; i++ {
			b[i] = mod(int64(bytes[idx]), m)
			idx++
		}
		iv := make([]int64, n)
		for i := 0; i < n; i++ {
			iv[i] = mod(int64(bytes[idx]), m)
			idx++
		}

		if DetMod(mat, m) != 0 {
			return mat, b, iv, nil
		}
	}
	return nil, nil, nil, errors.Wrapf(ErrDerivationExhausted, "password=%q n=%d m=%d", password, n, m)
}

// KeySum returns (sum of password bytes) mod m.
func KeySum(password []byte, m int64) int64 {
	var sum int64
	for _, b := range password {
		sum += int64(b)
	}
	return mod(sum, m)
}

// DeriveAll produces a complete Params value for the given password and
// block size n.
func DeriveAll(password []byte, n int) (*Params, error) {
	m := DerivePrime(password)
	mat, b, iv, err := DeriveParams(password, n, m)
	if err != nil {
		return nil, errors.Wrap(err, "deriving cipher parameters")
	}
	return &Params{
		N:      n,
		M:      m,
		Matrix: mat,
		B:      b,
		IV:     iv,
		KeySum: KeySum(password, m),
	}, nil
}

// Tweak returns the per-block tweak vector t_i for block index i:
// t_i[j] = (key_sum + (i+1)(j+1)) mod m.
func (p *Params) Tweak(blockIndex int) []int64 {
	t := make([]int64, p.N)
	for j := 0; j < p.N; j++ {
		t[j] = mod(p.KeySum+int64(blockIndex+1)*int64(j+1), p.M)
	}
	return t
}
