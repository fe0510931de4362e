package match

import (
	"net"
	"testing"
	"time"

	"github.com/sebastiandperez/hascill-crypto-race/internal/cipher"
	"github.com/sebastiandperez/hascill-crypto-race/internal/game"
	"github.com/sebastiandperez/hascill-crypto-race/internal/wire"
)

func newTestController() *Controller {
	return New(Config{
		Password: []byte("PAZ9"),
		Message:  []byte("Hils"),
		Rotate:   RotatePhase,
	})
}

// testClient is the test-side half of a joined connection: a single
// goroutine owns the net.Pipe's client end and forwards every decoded
// frame onto a buffered channel, so Join's synchronous Sends never
// block and the test can inspect frames afterward without a second
// goroutine racing the same Read call.
type testClient struct {
	conn   net.Conn
	frames chan map[string]interface{}
}

func (tc *testClient) Close() { tc.conn.Close() }

// joinDraining joins team through a fresh net.Pipe pair and returns the
// resulting ClientConn plus a testClient the test can read assertions
// from via recvUntil.
func joinDraining(t *testing.T, m *Controller, team int) (*ClientConn, *testClient) {
	t.Helper()
	client, server := net.Pipe()
	tc := &testClient{conn: client, frames: make(chan map[string]interface{}, 64)}
	go func() {
		for {
			var v map[string]interface{}
			if err := wire.ReadFrame(client, &v); err != nil {
				close(tc.frames)
				return
			}
			tc.frames <- v
		}
	}()
	cc, err := m.Join(team, server)
	if err != nil {
		t.Fatalf("join team %d: %v", team, err)
	}
	return cc, tc
}

// recvUntil drains tc's frame channel, skipping any frame whose type
// isn't wantType, and returns the first match.
func recvUntil(t *testing.T, tc *testClient, wantType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 20; i++ {
		select {
		case frame, ok := <-tc.frames:
			if !ok {
				t.Fatalf("connection closed while waiting for frame type %q", wantType)
			}
			if frame["type"] == wantType {
				return frame
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame type %q", wantType)
		}
	}
	t.Fatalf("did not see frame type %q within 20 frames", wantType)
	return nil
}

func TestJoinRejectsOutOfRangeTeam(t *testing.T) {
	m := newTestController()
	_, server := net.Pipe()
	defer server.Close()

	if _, err := m.Join(0, server); err == nil {
		t.Fatal("expected error joining team 0")
	}
	if _, err := m.Join(7, server); err == nil {
		t.Fatal("expected error joining team 7")
	}
}

func TestJoinAssignsIncreasingClientIDs(t *testing.T) {
	m := newTestController()
	c1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()
	c2, tc2 := joinDraining(t, m, 1)
	defer tc2.Close()

	if c2.ID <= c1.ID {
		t.Fatalf("client IDs should increase: got %d then %d", c1.ID, c2.ID)
	}
}

func TestStartGateRequiresAllConnectedTeamsReady(t *testing.T) {
	m := newTestController()
	cc1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()
	cc2, tc2 := joinDraining(t, m, 2)
	defer tc2.Close()

	m.SetReady(cc1)
	m.mu.Lock()
	started := m.startFlag
	m.mu.Unlock()
	if started {
		t.Fatal("start gate should not trigger with team 2 not ready")
	}

	m.SetReady(cc2)
	m.mu.Lock()
	started = m.startFlag
	m.mu.Unlock()
	if !started {
		t.Fatal("start gate should trigger once every connected team is ready")
	}
}

func TestStepAnswerRejectsWrongTurn(t *testing.T) {
	m := newTestController()
	cc1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()
	cc2, tc2 := joinDraining(t, m, 1)
	defer tc2.Close()

	g, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	m.mu.Lock()
	team := m.teams[1]
	team.game = g
	team.turns.Seed([]int{cc1.ID, cc2.ID})
	m.mu.Unlock()

	m.StepAnswer(cc2, wire.StepAnswerMsg{Type: "step_answer", Phase: "TPW", Vector: []int64{80, 65, 90, 57}})

	frame := recvUntil(t, tc2, "error")
	if frame["msg"] != "not your turn" {
		t.Fatalf("expected not-your-turn error, got %v", frame)
	}
}

func TestStepAnswerFrozenDuringPause(t *testing.T) {
	m := newTestController()
	cc1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()

	g, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	m.mu.Lock()
	team := m.teams[1]
	team.game = g
	team.turns.Seed([]int{cc1.ID})
	m.mu.Unlock()
	m.Pause()

	m.StepAnswer(cc1, wire.StepAnswerMsg{Type: "step_answer", Phase: "TPW", Vector: []int64{80, 65, 90, 57}})
	frame := recvUntil(t, tc1, "error")
	if frame["msg"] != "match frozen" {
		t.Fatalf("expected frozen error, got %v", frame)
	}
}

func TestStepAnswerAcceptedAdvancesPhaseAndRotates(t *testing.T) {
	m := newTestController()
	cc1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()
	cc2, tc2 := joinDraining(t, m, 1)
	defer tc2.Close()

	g, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	m.mu.Lock()
	team := m.teams[1]
	team.game = g
	team.turns.Seed([]int{cc1.ID, cc2.ID})
	m.mu.Unlock()

	m.StepAnswer(cc1, wire.StepAnswerMsg{Type: "step_answer", Phase: "TPW", Vector: cipher.AsciiCodepoints("PAZ9")})

	ok := recvUntil(t, tc1, "ok")
	if ok["for"] != "TPW" {
		t.Fatalf("expected ok for TPW, got %v", ok)
	}

	m.mu.Lock()
	cur, _ := team.turns.Current()
	phase := team.game.CurrentPhase
	m.mu.Unlock()
	if cur != cc2.ID {
		t.Fatalf("turn should have rotated to client %d, got %d", cc2.ID, cur)
	}
	if phase != game.PhaseTMSG {
		t.Fatalf("expected phase TMSG after TPW accepted, got %s", phase)
	}
}

// TestStepAnswerRejectionRepushesOnlyToSubmitter drives a two-client team
// through a wrong-vector submission and asserts the re-pushed "step"
// frame lands only on the submitter, not on the teammate who wasn't
// holding the turn — per spec, only an accepted advance is broadcast to
// the whole team.
func TestStepAnswerRejectionRepushesOnlyToSubmitter(t *testing.T) {
	m := newTestController()
	cc1, tc1 := joinDraining(t, m, 1)
	defer tc1.Close()
	cc2, tc2 := joinDraining(t, m, 1)
	defer tc2.Close()

	g, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	m.mu.Lock()
	team := m.teams[1]
	team.game = g
	team.turns.Seed([]int{cc1.ID, cc2.ID})
	m.mu.Unlock()

	m.StepAnswer(cc1, wire.StepAnswerMsg{Type: "step_answer", Phase: "TPW", Vector: []int64{1, 2, 3, 4}})

	recvUntil(t, tc1, "error")
	stepFrame := recvUntil(t, tc1, "step")
	if stepFrame["phase"] != string(game.PhaseTPW) {
		t.Fatalf("expected re-pushed step still for TPW, got %v", stepFrame)
	}

	// tc2's channel still holds its own join-time frames (joined,
	// team_status, task, turn); drain all of it and assert none of
	// those, nor anything arriving afterward, is a step re-push.
drain:
	for {
		select {
		case frame, ok := <-tc2.frames:
			if !ok {
				break drain
			}
			if frame["type"] == "step" {
				t.Fatalf("teammate not holding the turn should not receive a step re-push, got %v", frame)
			}
		case <-time.After(200 * time.Millisecond):
			break drain
		}
	}
}

// TestBuildScoreboardStatsRequiresTwoReportingTeams asserts the stats
// block stays nil until at least two teams have recorded an error or a
// finish, and that the time spread is a simple max-min range once two
// teams have finished.
func TestBuildScoreboardStatsRequiresTwoReportingTeams(t *testing.T) {
	m := newTestController()
	m.mu.Lock()
	m.startTime = time.Now().Add(-10 * time.Second)

	g1, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	t1 := m.getOrCreateTeam(1)
	t1.game = g1
	m.mu.Unlock()

	m.mu.Lock()
	stats1 := m.buildScoreboardLocked().Stats
	m.mu.Unlock()
	if stats1 != nil {
		t.Fatalf("expected nil stats with no team reporting an error or a finish, got %+v", stats1)
	}

	g2, err := game.New(m.password, m.message, m.n)
	if err != nil {
		t.Fatalf("deriving game state: %v", err)
	}
	m.mu.Lock()
	t2 := m.getOrCreateTeam(2)
	t2.game = g2
	win1 := m.startTime.Add(2 * time.Second)
	win2 := m.startTime.Add(5 * time.Second)
	t1.winTime = &win1
	t2.winTime = &win2
	stats2 := m.buildScoreboardLocked().Stats
	m.mu.Unlock()

	if stats2 == nil {
		t.Fatal("expected stats once two teams have finish times")
	}
	if stats2.TimeSpread != 3 {
		t.Fatalf("expected max-min time spread of 3s, got %v", stats2.TimeSpread)
	}
}
