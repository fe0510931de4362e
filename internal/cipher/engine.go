package cipher

import "github.com/pkg/errors"

// ErrInvalidPadding is returned when a ciphertext's trailing PKCS#7 padding
// is malformed.
var ErrInvalidPadding = errors.New("cipher: invalid PKCS#7 padding")

// Pkcs7Pad pads plaintext to a multiple of blockSize using PKCS#7: every
// pad byte equals the number of pad bytes added, and at least one byte of
// padding is always added (a full block of padding if the input is
// already block-aligned).
func Pkcs7Pad(plaintext []byte, blockSize int) []byte {
	padLen := blockSize - len(plaintext)%blockSize
	out := make([]byte, len(plaintext)+padLen)
	copy(out, plaintext)
	for i := len(plaintext); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

// Pkcs7Unpad strips PKCS#7 padding, validating the pad length and byte
// values. Fails with ErrInvalidPadding on malformed input.
func Pkcs7Unpad(padded []byte) ([]byte, error) {
	n := len(padded)
	if n == 0 {
		return nil, ErrInvalidPadding
	}
	padLen := int(padded[n-1])
	if padLen < 1 || padLen > n {
		return nil, ErrInvalidPadding
	}
	for i := n - padLen; i < n; i++ {
		if padded[i] != byte(padLen) {
			return nil, ErrInvalidPadding
		}
	}
	return padded[:n-padLen], nil
}

// ToBlocks splits a padded byte slice into n-sized int64 blocks.
func ToBlocks(padded []byte, n int) [][]int64 {
	blocks := make([][]int64, 0, len(padded)/n)
	for i := 0; i < len(padded); i += n {
		v := make([]int64, n)
		for j := 0; j < n; j++ {
			v[j] = int64(padded[i+j])
		}
		blocks = append(blocks, v)
	}
	return blocks
}

func addVec(a, b []int64, m int64) []int64 {
	out := make([]int64, len(a))
	for i := range a {
		out[i] = mod(a[i]+b[i], m)
	}
	return out
}

func subVec(a, b []int64, m int64) []int64 {
	out := make([]int64, len(a))
	for i := range a {
		out[i] = mod(a[i]-b[i], m)
	}
	return out
}

func sboxVec(v []int64, m int64) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = Sbox(x, m)
	}
	return out
}

func sboxInvVec(v []int64, m int64) ([]int64, error) {
	out := make([]int64, len(v))
	for i, y := range v {
		x, err := SboxInv(y, m)
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// PhaseA computes u = (v + prev + t) mod m.
func PhaseA(v, prev, t []int64, m int64) []int64 {
	return addVec(addVec(v, prev, m), t, m)
}

// PhaseB computes u' = sbox(u) elementwise.
func PhaseB(u []int64, m int64) []int64 {
	return sboxVec(u, m)
}

// PhaseC computes w = M . u' mod m.
func PhaseC(matrix Matrix, uPrime []int64, m int64) []int64 {
	return MatVecMul(matrix, uPrime, m)
}

// PhaseD computes c = (w + b + t) mod m.
func PhaseD(w, b, t []int64, m int64) []int64 {
	return addVec(addVec(w, b, m), t, m)
}

// EncryptBlock runs all four phases for block index i and returns the
// ciphertext block, which is also the chaining vector prev for block i+1.
func EncryptBlock(p *Params, blockIndex int, v, prev []int64) []int64 {
	t := p.Tweak(blockIndex)
	u := PhaseA(v, prev, t, p.M)
	uPrime := PhaseB(u, p.M)
	w := PhaseC(p.Matrix, uPrime, p.M)
	return PhaseD(w, p.B, t, p.M)
}

// DecryptBlock inverts EncryptBlock: D^-1, then C^-1 via M^-1, then B^-1
// via the cube-root exponent, then A^-1. Used by tests and by any
// future inverse-direction tooling; the live game never calls this
// directly (players reconstruct each phase forward, under the
// validator's supervision).
func DecryptBlock(p *Params, matInv Matrix, blockIndex int, c, prev []int64) ([]int64, error) {
	t := p.Tweak(blockIndex)
	w := subVec(subVec(c, p.B, p.M), t, p.M)
	uPrime := MatVecMul(matInv, w, p.M)
	u, err := sboxInvVec(uPrime, p.M)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt: inverting sbox")
	}
	v := subVec(subVec(u, prev, p.M), t, p.M)
	return v, nil
}

// Encrypt encrypts plaintext (ASCII bytes) under params p, PKCS#7-padding
// to a multiple of p.N first. Returns the ciphertext blocks.
func Encrypt(p *Params, plaintext []byte) [][]int64 {
	padded := Pkcs7Pad(plaintext, p.N)
	blocks := ToBlocks(padded, p.N)
	prev := p.IV
	out := make([][]int64, len(blocks))
	for i, v := range blocks {
		c := EncryptBlock(p, i, v, prev)
		out[i] = c
		prev = c
	}
	return out
}

// Decrypt inverts Encrypt, unpadding the recovered plaintext.
func Decrypt(p *Params, cipherBlocks [][]int64) ([]byte, error) {
	matInv, err := MatInverseMod(p.Matrix, p.M)
	if err != nil {
		return nil, errors.Wrap(err, "decrypt: matrix not invertible")
	}
	prev := p.IV
	padded := make([]byte, 0, len(cipherBlocks)*p.N)
	for i, c := range cipherBlocks {
		v, err := DecryptBlock(p, matInv, i, c, prev)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypt: block %d", i)
		}
		for _, x := range v {
			padded = append(padded, byte(x))
		}
		prev = c
	}
	return Pkcs7Unpad(padded)
}

// AsciiCodepoints returns the ASCII codepoints of s as int64 — the
// expected answer for the TPW/TMSG translation steps.
func AsciiCodepoints(s string) []int64 {
	out := make([]int64, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = int64(s[i])
	}
	return out
}
