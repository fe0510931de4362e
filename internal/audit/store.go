// Package audit persists a best-effort trail of match events to
// Postgres for post-hoc review. It is never on the critical path of
// gameplay: every Record call logs and continues on failure, and a nil
// *Store degrades to a no-op so the server runs with or without a
// database configured.
package audit

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zeebo/blake3"
)

// Store is a pgx-backed sink for match_events rows.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Println("audit: connected to Postgres")
	return &Store{pool: pool}, nil
}

// Close releases the pool. Safe to call on a nil *Store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS match_events (
	id UUID PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	kind TEXT NOT NULL,
	team_id INT NOT NULL,
	fingerprint TEXT NOT NULL,
	detail JSONB
);
`

// InitSchema creates the match_events table if it does not already
// exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Record inserts one audit row tagged with fingerprint, the caller's
// per-match correlation handle (see Fingerprint). Failures are logged,
// not returned or panicked on — an audit outage must never interrupt
// gameplay. detail is marshaled to JSON; a nil detail stores SQL NULL.
func (s *Store) Record(fingerprint, kind string, teamID int, detail map[string]interface{}) {
	if s == nil || s.pool == nil {
		return
	}

	var detailJSON []byte
	if detail != nil {
		var err error
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			log.Printf("audit: marshaling detail for %s: %v", kind, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id := uuid.New()

	const insert = `INSERT INTO match_events (id, kind, team_id, fingerprint, detail) VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, insert, id, kind, teamID, fingerprint, detailJSON); err != nil {
		log.Printf("audit: recording %s for team %d: %v", kind, teamID, err)
	}
}

// Fingerprint derives the per-match correlation handle used to tie every
// audit row for one match back together: a BLAKE3 digest of the
// challenge password, the challenge message, and the match's start time,
// computed once when the match begins. It is not a security property of
// the cipher — just a stable handle an operator can grep a log line and
// a database row back to the same match by.
func Fingerprint(password, message []byte, startTime time.Time) string {
	var nanos [8]byte
	binary.BigEndian.PutUint64(nanos[:], uint64(startTime.UnixNano()))

	var buf []byte
	buf = append(buf, password...)
	buf = append(buf, message...)
	buf = append(buf, nanos[:]...)

	sum := blake3.Sum256(buf)
	return hex.EncodeToString(sum[:])
}
