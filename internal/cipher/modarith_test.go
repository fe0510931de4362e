package cipher

import "testing"

func TestInvIntRoundTrip(t *testing.T) {
	const m = int64(521)
	for a := int64(1); a < m; a++ {
		inv, err := InvInt(a, m)
		if err != nil {
			t.Fatalf("InvInt(%d, %d) error: %v", a, m, err)
		}
		if got := mod(a*inv, m); got != 1 {
			t.Fatalf("InvInt(%d, %d) = %d, a*inv mod m = %d, want 1", a, m, inv, got)
		}
	}
}

func TestInvIntNoInverse(t *testing.T) {
	if _, err := InvInt(4, 8); err == nil {
		t.Fatal("expected ErrNoInverse for gcd(4,8)=4")
	}
}

func TestIsPrime(t *testing.T) {
	primes := []int64{2, 3, 5, 7, 521, 1009}
	for _, p := range primes {
		if !IsPrime(p) {
			t.Errorf("IsPrime(%d) = false, want true", p)
		}
	}
	composites := []int64{0, 1, 4, 6, 9, 1000}
	for _, c := range composites {
		if IsPrime(c) {
			t.Errorf("IsPrime(%d) = true, want false", c)
		}
	}
}

func TestNextPrimeWithBelowFloor(t *testing.T) {
	p := NextPrimeWith(10, func(p int64) bool { return p >= 257 && (p-1)%3 != 0 })
	if p < 257 {
		t.Fatalf("NextPrimeWith(10, ...) = %d, want >= 257", p)
	}
}

func TestMatInverseModIdentity(t *testing.T) {
	const m = int64(521)
	mat := Matrix{
		{3, 5},
		{2, 7},
	}
	inv, err := MatInverseMod(mat, m)
	if err != nil {
		t.Fatalf("MatInverseMod error: %v", err)
	}
	// mat * inv should be the identity mod m.
	for i := 0; i < 2; i++ {
		row := MatVecMul(mat, []int64{inv[0][i], inv[1][i]}, m)
		for j := 0; j < 2; j++ {
			want := int64(0)
			if i == j {
				want = 1
			}
			if row[j] != want {
				t.Fatalf("mat*inv[%d][%d] = %d, want %d", j, i, row[j], want)
			}
		}
	}
}

func TestMatInverseModSingular(t *testing.T) {
	mat := Matrix{
		{1, 2},
		{2, 4},
	}
	if _, err := MatInverseMod(mat, 521); err == nil {
		t.Fatal("expected ErrSingular for a singular matrix")
	}
}

func TestSboxRoundTrip(t *testing.T) {
	const m = int64(521)
	for x := int64(0); x < m; x++ {
		y := Sbox(x, m)
		back, err := SboxInv(y, m)
		if err != nil {
			t.Fatalf("SboxInv(%d) error: %v", y, err)
		}
		if back != x {
			t.Fatalf("SboxInv(Sbox(%d)) = %d, want %d", x, back, x)
		}
	}
}
