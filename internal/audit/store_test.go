package audit

import (
	"testing"
	"time"
)

func TestFingerprintStableForSameInputs(t *testing.T) {
	start := time.Unix(0, 1700000000000000000)
	a := Fingerprint([]byte("PAZ9"), []byte("Hils"), start)
	b := Fingerprint([]byte("PAZ9"), []byte("Hils"), start)
	if a != b {
		t.Fatalf("expected stable fingerprint, got %q then %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected a 64-char hex-encoded BLAKE3-256 digest, got %q (%d chars)", a, len(a))
	}
}

func TestFingerprintChangesWithInputs(t *testing.T) {
	start := time.Unix(0, 1700000000000000000)
	base := Fingerprint([]byte("PAZ9"), []byte("Hils"), start)
	byPassword := Fingerprint([]byte("QAZ9"), []byte("Hils"), start)
	byMessage := Fingerprint([]byte("PAZ9"), []byte("Xils"), start)
	byStart := Fingerprint([]byte("PAZ9"), []byte("Hils"), start.Add(time.Nanosecond))

	for _, other := range []string{byPassword, byMessage, byStart} {
		if other == base {
			t.Fatalf("expected fingerprint to change, all equal to %q", base)
		}
	}
}

func TestStoreMethodsNilSafe(t *testing.T) {
	var s *Store
	s.Close()
	s.Record("deadbeef", "join", 1, map[string]interface{}{"client_id": 1})
}
